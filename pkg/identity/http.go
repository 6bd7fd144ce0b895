package identity

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/mvm-bridge/pkg/app/errors"
	apphttp "github.com/chainsafe/mvm-bridge/pkg/app/http"
)

// RegisterRequest is the optional body of POST /register
type RegisterRequest struct {
	Address string `json:"address,omitempty"`
}

// Response is the public view of an identity
type Response struct {
	RegisteredIdentity
	TransferURL string `json:"transfer_url"`
}

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service Service
	logger  *zap.Logger
}

// RegisterRoutes registers HTTP endpoints for the identity service on the given chi router
func RegisterRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Post("/register", apphttp.HandleError(h.register))
	r.Get("/identity", apphttp.HandleError(h.current))
}

func (h *HTTP) register(w http.ResponseWriter, r *http.Request) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}

	var req RegisterRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return apperrors.BadRequestError(err, "invalid JSON")
		}
	}

	id, err := h.service.Register(r.Context(), req.Address)
	if err != nil {
		return err
	}
	return apphttp.WriteJSON(w, http.StatusOK, toResponse(id))
}

func (h *HTTP) current(w http.ResponseWriter, r *http.Request) error {
	id, err := h.service.Current(r.URL.Query().Get("address"))
	if err != nil {
		return err
	}
	return apphttp.WriteJSON(w, http.StatusOK, toResponse(id))
}

func toResponse(id *RegisteredIdentity) Response {
	return Response{RegisteredIdentity: id.Public(), TransferURL: id.TransferURL()}
}
