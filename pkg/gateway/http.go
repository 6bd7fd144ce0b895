package gateway

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/mvm-bridge/pkg/app/errors"
	apphttp "github.com/chainsafe/mvm-bridge/pkg/app/http"
	"github.com/chainsafe/mvm-bridge/pkg/deposits"
)

// HTTP wraps the Gateway to provide HTTP endpoints
type HTTP struct {
	gateway *Gateway
	logger  *zap.Logger
}

// RegisterRoutes registers HTTP endpoints for the gateway on the given chi router
func RegisterRoutes(r chi.Router, gateway *Gateway, logger *zap.Logger) {
	h := &HTTP{
		gateway: gateway,
		logger:  logger,
	}

	r.Get("/assets/top", apphttp.HandleError(h.topAssets))
	r.Get("/assets", apphttp.HandleError(h.assets))
	r.Post("/assets/refetch", apphttp.HandleError(h.refetchAssets))
	r.Get("/assets/{assetID}", apphttp.HandleError(h.asset))
	r.Get("/assets/{assetID}/deposits", apphttp.HandleError(h.assetDeposits))
	r.Get("/users/{userID}", apphttp.HandleError(h.user))
}

func (h *HTTP) topAssets(w http.ResponseWriter, r *http.Request) error {
	whitelisted, _ := strconv.ParseBool(r.URL.Query().Get("whitelist"))
	if whitelisted {
		assets, err := h.gateway.WhitelistedTopAssets(r.Context())
		if err != nil {
			return err
		}
		return apphttp.WriteJSON(w, http.StatusOK, assets)
	}

	assets, err := h.gateway.TopAssets(r.Context())
	if err != nil {
		return err
	}
	return apphttp.WriteJSON(w, http.StatusOK, assets)
}

func (h *HTTP) assets(w http.ResponseWriter, r *http.Request) error {
	assets, err := h.gateway.AssetsOfIdentity(r.Context())
	if err != nil {
		return err
	}
	return apphttp.WriteJSON(w, http.StatusOK, assets)
}

func (h *HTTP) refetchAssets(w http.ResponseWriter, r *http.Request) error {
	assets, err := h.gateway.RefetchAssets(r.Context())
	if err != nil {
		return err
	}
	return apphttp.WriteJSON(w, http.StatusOK, assets)
}

func (h *HTTP) asset(w http.ResponseWriter, r *http.Request) error {
	asset, err := h.gateway.Asset(r.Context(), chi.URLParam(r, "assetID"))
	if err != nil {
		return err
	}
	return apphttp.WriteJSON(w, http.StatusOK, asset)
}

func (h *HTTP) assetDeposits(w http.ResponseWriter, r *http.Request) error {
	asset, err := h.gateway.Asset(r.Context(), chi.URLParam(r, "assetID"))
	if err != nil {
		return err
	}

	limit := deposits.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > deposits.DefaultLimit {
			return apperrors.ValidationError("limit", "must be between 1 and 500")
		}
	}

	records, err := h.gateway.Deposits(r.Context(), deposits.KeyOf(asset), limit)
	if err != nil {
		if errors.Is(err, ErrDisabled) {
			return apperrors.ResourceNotFoundError(err, "deposit address not resolved")
		}
		return err
	}
	return apphttp.WriteJSON(w, http.StatusOK, records)
}

func (h *HTTP) user(w http.ResponseWriter, r *http.Request) error {
	user, err := h.gateway.User(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		return err
	}
	return apphttp.WriteJSON(w, http.StatusOK, user)
}
