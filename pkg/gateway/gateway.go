// Package gateway is the typed, cached accessor over the custodial asset API.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chainsafe/mvm-bridge/internal/metrics"
	apperrors "github.com/chainsafe/mvm-bridge/pkg/app/errors"
	"github.com/chainsafe/mvm-bridge/pkg/deposits"
	"github.com/chainsafe/mvm-bridge/pkg/identity"
	"github.com/chainsafe/mvm-bridge/pkg/mixin"
	"github.com/chainsafe/mvm-bridge/pkg/query"
)

// Query cache kinds
const (
	KindTopAssets = "top-assets"
	KindAsset     = "asset"
	KindAssets    = "assets"
	KindDeposits  = "deposits"
	KindUser      = "user"
)

// Cache policies per read
var (
	TopAssetsPolicy = query.Policy{CacheTime: query.Infinity, StaleTime: 5 * time.Minute}
	AssetPolicy     = query.Policy{CacheTime: query.Infinity, StaleTime: 5 * time.Minute}
	AssetsPolicy    = query.Policy{CacheTime: query.Infinity, StaleTime: query.Infinity}
	DepositsPolicy  = query.Policy{CacheTime: query.Infinity, StaleTime: 0}
	UserPolicy      = query.Policy{CacheTime: query.Infinity, StaleTime: 60 * time.Second}
)

var (
	// ErrDisabled is returned for deposit reads before the deposit address is known
	ErrDisabled = errors.New("deposit address not resolved")
	// ErrUserNotFound is returned when a custodial user does not exist
	ErrUserNotFound = errors.New("user not found")
)

// API is the custodial network client
type API interface {
	TopAssets(ctx context.Context) ([]mixin.Asset, error)
	Asset(ctx context.Context, ks *mixin.Keystore, assetID string) (*mixin.Asset, error)
	Assets(ctx context.Context, ks *mixin.Keystore) ([]mixin.Asset, error)
	ExternalTransactions(ctx context.Context, ks *mixin.Keystore, q mixin.DepositQuery) ([]mixin.Deposit, error)
	User(ctx context.Context, ks *mixin.Keystore, userID string) (*mixin.User, error)
}

// Sessions provides the registered identity of the connected wallet
type Sessions interface {
	Current(address string) (*identity.RegisteredIdentity, error)
}

// Gateway serves custodial reads through the query cache. Every descriptor
// it fetches is written to the shared asset index.
type Gateway struct {
	api       API
	sessions  Sessions
	cache     *query.Client
	index     *deposits.AssetIndex
	whitelist []string
	logger    *zap.Logger
}

var _ deposits.LastKnownSource = (*Gateway)(nil)

// New creates a gateway
func New(
	api API,
	sessions Sessions,
	cache *query.Client,
	index *deposits.AssetIndex,
	whitelist []string,
	logger *zap.Logger,
) *Gateway {
	return &Gateway{
		api:       api,
		sessions:  sessions,
		cache:     cache,
		index:     index,
		whitelist: whitelist,
		logger:    logger,
	}
}

// TopAssets returns the network's top assets. No identity is required.
func (g *Gateway) TopAssets(ctx context.Context) ([]mixin.Asset, error) {
	assets, err := query.Fetch(ctx, g.cache, query.Key{KindTopAssets}, TopAssetsPolicy, g.api.TopAssets)
	if err != nil {
		return assets, g.gatewayError("top_assets", err)
	}
	return assets, nil
}

// WhitelistedTopAssets returns the top assets whose id is whitelisted, in top order
func (g *Gateway) WhitelistedTopAssets(ctx context.Context) ([]mixin.Asset, error) {
	assets, err := g.TopAssets(ctx)
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]struct{}, len(g.whitelist))
	for _, id := range g.whitelist {
		allowed[strings.ToLower(id)] = struct{}{}
	}

	out := make([]mixin.Asset, 0, len(allowed))
	for _, a := range assets {
		if _, ok := allowed[strings.ToLower(a.AssetID)]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// Asset returns the descriptor of assetID for the registered identity
func (g *Gateway) Asset(ctx context.Context, assetID string) (mixin.Asset, error) {
	if err := validateID("asset_id", assetID); err != nil {
		return mixin.Asset{}, err
	}
	id, err := g.sessions.Current("")
	if err != nil {
		return mixin.Asset{}, err
	}

	asset, err := query.Fetch(ctx, g.cache, query.Key{KindAsset, id.UserID, assetID}, AssetPolicy,
		func(ctx context.Context) (mixin.Asset, error) {
			a, err := g.api.Asset(ctx, id.Keystore(), assetID)
			if err != nil {
				return mixin.Asset{}, err
			}
			return *a, nil
		})
	if err != nil {
		if mixin.IsNotFound(err) {
			return asset, apperrors.NotFoundError(err, "asset not found")
		}
		return asset, g.gatewayError("asset", err)
	}

	g.index.Put(asset)
	return asset, nil
}

// AssetsOfIdentity returns every asset of the registered identity. The list
// is only refetched through RefetchAssets.
func (g *Gateway) AssetsOfIdentity(ctx context.Context) ([]mixin.Asset, error) {
	return g.assets(ctx, false)
}

// RefetchAssets refetches the asset list of the registered identity
func (g *Gateway) RefetchAssets(ctx context.Context) ([]mixin.Asset, error) {
	return g.assets(ctx, true)
}

func (g *Gateway) assets(ctx context.Context, refetch bool) ([]mixin.Asset, error) {
	id, err := g.sessions.Current("")
	if err != nil {
		return nil, err
	}

	fetch := func(ctx context.Context) ([]mixin.Asset, error) {
		return g.api.Assets(ctx, id.Keystore())
	}
	key := query.Key{KindAssets, id.UserID}

	var assets []mixin.Asset
	if refetch {
		assets, err = query.Refetch(ctx, g.cache, key, AssetsPolicy, fetch)
	} else {
		assets, err = query.Fetch(ctx, g.cache, key, AssetsPolicy, fetch)
	}
	if err != nil {
		return assets, g.gatewayError("assets", err)
	}

	g.index.Put(assets...)
	return assets, nil
}

// Deposits returns the deposit history of one deposit address. A key with an
// asset id only returns that asset's deposits; an address key returns every
// asset received at the address. It is disabled until the destination is known.
func (g *Gateway) Deposits(ctx context.Context, key deposits.RequestKey, limit int) ([]mixin.Deposit, error) {
	if !key.Enabled() {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = deposits.DefaultLimit
	}
	id, err := g.sessions.Current("")
	if err != nil {
		return nil, err
	}

	records, err := query.Fetch(ctx, g.cache, depositsKey(id.UserID, key, limit), DepositsPolicy,
		func(ctx context.Context) ([]mixin.Deposit, error) {
			return g.api.ExternalTransactions(ctx, id.Keystore(), mixin.DepositQuery{
				AssetID:     key.AssetID,
				Destination: key.Destination,
				Tag:         key.Tag,
				Limit:       limit,
			})
		})
	if err != nil {
		return records, g.gatewayError("deposits", err)
	}
	return records, nil
}

// LastDeposits returns the deposit history last stored for key without
// calling the custodial API
func (g *Gateway) LastDeposits(key deposits.RequestKey, limit int) ([]mixin.Deposit, bool) {
	if !key.Enabled() {
		return nil, false
	}
	if limit <= 0 {
		limit = deposits.DefaultLimit
	}
	id, err := g.sessions.Current("")
	if err != nil {
		return nil, false
	}

	records, ok, err := query.Peek[[]mixin.Deposit](g.cache, depositsKey(id.UserID, key, limit))
	if err != nil {
		g.logger.Debug("Dropping undecodable deposits entry", zap.Error(err))
		return nil, false
	}
	return records, ok
}

func depositsKey(userID string, key deposits.RequestKey, limit int) query.Key {
	k := query.Key{KindDeposits, userID, key.Destination, key.Tag, strconv.Itoa(limit)}
	if key.AssetID != "" {
		k = append(k, key.AssetID)
	}
	return k
}

// WatchDeposits polls one deposit address every interval until ctx is done.
// fn receives every poll outcome; a failed poll is retried on the next tick.
func (g *Gateway) WatchDeposits(
	ctx context.Context,
	key deposits.RequestKey,
	interval time.Duration,
	fn func([]mixin.Deposit, error),
) error {
	if !key.Enabled() {
		return ErrDisabled
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		records, err := g.Deposits(ctx, key, deposits.DefaultLimit)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.DepositPolls.WithLabelValues("focused", result).Inc()
		fn(records, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// User looks up a custodial user by id
func (g *Gateway) User(ctx context.Context, userID string) (*mixin.User, error) {
	if err := validateID("recipient_user_id", userID); err != nil {
		return nil, err
	}
	id, err := g.sessions.Current("")
	if err != nil {
		return nil, err
	}

	user, err := query.Fetch(ctx, g.cache, query.Key{KindUser, id.UserID, userID}, UserPolicy,
		func(ctx context.Context) (*mixin.User, error) {
			return g.api.User(ctx, id.Keystore(), userID)
		})
	if err != nil {
		if mixin.IsNotFound(err) {
			return nil, apperrors.NotFoundError(errors.Join(ErrUserNotFound, err), "user not found")
		}
		return nil, g.gatewayError("user", err)
	}
	if user == nil || user.UserID == "" {
		return nil, apperrors.NotFoundError(ErrUserNotFound, "user not found")
	}
	return user, nil
}

// RestoreIndex seeds the asset index with descriptors of userID restored
// from persisted state, so the deposit feed resumes before any network call.
func (g *Gateway) RestoreIndex(userID string) int {
	var restored []mixin.Asset
	for _, e := range g.cache.Snapshot() {
		parts := strings.Split(e.Key, "/")
		if len(parts) < 2 || parts[1] != userID {
			continue
		}

		switch e.Kind {
		case KindAsset:
			var a mixin.Asset
			if err := json.Unmarshal(e.Data, &a); err == nil {
				restored = append(restored, a)
			}
		case KindAssets:
			var list []mixin.Asset
			if err := json.Unmarshal(e.Data, &list); err == nil {
				restored = append(restored, list...)
			}
		}
	}

	g.index.Put(restored...)
	return len(restored)
}

func (g *Gateway) gatewayError(op string, err error) error {
	if apperrors.CategoryOf(err) != apperrors.CategoryGeneralError {
		return err
	}
	metrics.ErrorsTotal.WithLabelValues("gateway", op).Inc()
	g.logger.Debug("Gateway read failed", zap.String("op", op), zap.Error(err))
	return apperrors.GatewayError(err, "custodial API request failed")
}

func validateID(field, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.ValidationError(field, "must be a UUID")
	}
	return nil
}
