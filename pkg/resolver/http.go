package resolver

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/mvm-bridge/pkg/app/errors"
	apphttp "github.com/chainsafe/mvm-bridge/pkg/app/http"
	"github.com/chainsafe/mvm-bridge/pkg/auth"
)

// HTTP wraps the Resolver to provide HTTP endpoints
type HTTP struct {
	resolver *Resolver
	wallet   common.Address
	logger   *zap.Logger
}

// RegisterRoutes registers balance and contract endpoints on the given chi router.
// Balances default to the connected wallet.
func RegisterRoutes(r chi.Router, resolver *Resolver, wallet common.Address, logger *zap.Logger) {
	h := &HTTP{
		resolver: resolver,
		wallet:   wallet,
		logger:   logger,
	}

	r.Get("/assets/{assetID}/balance", apphttp.HandleError(h.balance))
	r.Get("/assets/{assetID}/contract", apphttp.HandleError(h.contract))
}

func (h *HTTP) balance(w http.ResponseWriter, r *http.Request) error {
	wallet := h.wallet
	if addr := r.URL.Query().Get("address"); addr != "" {
		if !auth.ValidateEVMAddress(addr) {
			return apperrors.ValidationError("address", "invalid wallet address")
		}
		wallet = common.HexToAddress(addr)
	}

	balance, err := h.resolver.BalanceOf(r.Context(), chi.URLParam(r, "assetID"), wallet)
	if err != nil {
		return err
	}
	return apphttp.WriteJSON(w, http.StatusOK, balance)
}

func (h *HTTP) contract(w http.ResponseWriter, r *http.Request) error {
	assetID := chi.URLParam(r, "assetID")
	addr, err := h.resolver.ContractOf(r.Context(), assetID)
	if err != nil {
		return err
	}
	return apphttp.WriteJSON(w, http.StatusOK, map[string]string{
		"asset_id": assetID,
		"contract": addr.Hex(),
	})
}
