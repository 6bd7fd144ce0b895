// Package http carries the chi handler adapters and the server lifecycle
// shared by every component's routes.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/chainsafe/mvm-bridge/pkg/app/errors"
)

// HandlerFunc is an http handler that reports failures by returning them
type HandlerFunc func(http.ResponseWriter, *http.Request) error

// ErrorResponse is the body written for every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
	Field string `json:"field,omitempty"`
}

// HandleError adapts h to http.HandlerFunc, rendering a returned error
// with DefaultErrorHandler.
//
//	r.Post("/identity", apphttp.HandleError(h.register))
func HandleError(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			DefaultErrorHandler(w, err)
		}
	}
}

// DefaultErrorHandler renders err as an ErrorResponse. A ServiceError keeps
// its message, status and field. Anything else is reported as a 500 without
// leaking its text.
func DefaultErrorHandler(w http.ResponseWriter, err error) {
	resp := ErrorResponse{
		Error: "Unexpected Service Error",
		Code:  http.StatusInternalServerError,
	}

	var svcErr *apperrors.ServiceError
	if errors.As(err, &svcErr) {
		resp = ErrorResponse{
			Error: svcErr.Message,
			Code:  svcErr.StatusCode(),
			Field: svcErr.Field,
		}
	}

	_ = WriteJSON(w, resp.Code, &resp)
}

// WriteJSON writes v as a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
