package transfer

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/mvm-bridge/pkg/app/errors"
	apphttp "github.com/chainsafe/mvm-bridge/pkg/app/http"
)

const maxWait = 20 * time.Second

// HTTP wraps the Manager to provide HTTP endpoints
type HTTP struct {
	manager *Manager
	logger  *zap.Logger
}

// RegisterRoutes registers HTTP endpoints for transfers on the given chi router
func RegisterRoutes(r chi.Router, manager *Manager, logger *zap.Logger) {
	h := &HTTP{
		manager: manager,
		logger:  logger,
	}

	r.Get("/transfers", apphttp.HandleError(h.list))
	r.Get("/assets/{assetID}/transfer", apphttp.HandleError(h.get))
	r.Post("/assets/{assetID}/transfer", apphttp.HandleError(h.submit))
	r.Delete("/assets/{assetID}/transfer", apphttp.HandleError(h.dismiss))
}

func (h *HTTP) list(w http.ResponseWriter, _ *http.Request) error {
	return apphttp.WriteJSON(w, http.StatusOK, h.manager.Snapshots())
}

// get returns the current snapshot. With ?wait=true it blocks until the
// intent leaves the in-flight states or the request ends.
func (h *HTTP) get(w http.ResponseWriter, r *http.Request) error {
	o, err := h.manager.For(chi.URLParam(r, "assetID"))
	if err != nil {
		return err
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if !wait {
		return apphttp.WriteJSON(w, http.StatusOK, o.Snapshot())
	}

	ctx, cancel := context.WithTimeout(r.Context(), maxWait)
	defer cancel()
	snap, _ := o.Wait(ctx)
	return apphttp.WriteJSON(w, http.StatusOK, snap)
}

func (h *HTTP) submit(w http.ResponseWriter, r *http.Request) error {
	o, err := h.manager.For(chi.URLParam(r, "assetID"))
	if err != nil {
		return err
	}

	var intent Intent
	if err := json.NewDecoder(r.Body).Decode(&intent); err != nil {
		return apperrors.BadRequestError(err, "invalid request body")
	}

	snap, err := o.Submit(r.Context(), intent)
	if err != nil {
		return err
	}
	return apphttp.WriteJSON(w, http.StatusAccepted, snap)
}

func (h *HTTP) dismiss(w http.ResponseWriter, r *http.Request) error {
	o, err := h.manager.For(chi.URLParam(r, "assetID"))
	if err != nil {
		return err
	}

	snap, err := o.Dismiss()
	if err != nil {
		return err
	}
	return apphttp.WriteJSON(w, http.StatusOK, snap)
}
