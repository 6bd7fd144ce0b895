package deposits

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/mvm-bridge/pkg/app/errors"
	apphttp "github.com/chainsafe/mvm-bridge/pkg/app/http"
	"github.com/chainsafe/mvm-bridge/pkg/mixin"
)

// FeedResponse is the aggregated deposit feed
type FeedResponse struct {
	Deposits      []mixin.Deposit `json:"deposits"`
	Subscriptions []RequestKey    `json:"subscriptions"`
}

// HTTP wraps the Engine to provide HTTP endpoints
type HTTP struct {
	engine *Engine
	logger *zap.Logger
}

// RegisterRoutes registers HTTP endpoints for the deposit feed on the given chi router
func RegisterRoutes(r chi.Router, engine *Engine, logger *zap.Logger) {
	h := &HTTP{
		engine: engine,
		logger: logger,
	}

	r.Get("/deposits", apphttp.HandleError(h.feed))
	r.Post("/deposits/refresh", apphttp.HandleError(h.refresh))
}

func (h *HTTP) feed(w http.ResponseWriter, _ *http.Request) error {
	return apphttp.WriteJSON(w, http.StatusOK, h.response())
}

func (h *HTTP) refresh(w http.ResponseWriter, r *http.Request) error {
	if err := h.engine.RefreshAssets(r.Context()); err != nil {
		if apperrors.CategoryOf(err) == apperrors.CategoryGeneralError {
			h.logger.Error("Failed to refresh deposit subscriptions", zap.Error(err))
			return apperrors.GeneralError(err)
		}
		return err
	}
	return apphttp.WriteJSON(w, http.StatusOK, h.response())
}

func (h *HTTP) response() FeedResponse {
	feed := h.engine.Feed()
	if feed == nil {
		feed = []mixin.Deposit{}
	}
	return FeedResponse{
		Deposits:      feed,
		Subscriptions: h.engine.ActiveKeys(),
	}
}
