// Package resolver maps custodial ids to MVM contracts and reads wallet balances.
package resolver

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chainsafe/mvm-bridge/internal/metrics"
	apperrors "github.com/chainsafe/mvm-bridge/pkg/app/errors"
	"github.com/chainsafe/mvm-bridge/pkg/auth"
	"github.com/chainsafe/mvm-bridge/pkg/query"
)

const (
	// NativeDecimals is the precision of the native asset on MVM
	NativeDecimals = 18
	// TokenDecimals is the precision of bridged asset contracts
	TokenDecimals = 8

	// KindContract is the query cache kind of registry lookups
	KindContract = "contract"
	// KindBalance is the query cache kind of wallet balances
	KindBalance = "balance"
)

var (
	// ContractPolicy caches registry lookups for a day
	ContractPolicy = query.Policy{CacheTime: query.Infinity, StaleTime: 24 * time.Hour}
	// BalancePolicy rereads the chain on every call and keeps the last
	// balance so it can be shown when a read fails
	BalancePolicy = query.Policy{CacheTime: query.Infinity, StaleTime: 0}
)

var (
	// ErrNotFound is returned when the registry maps an id to the empty address
	ErrNotFound = errors.New("contract not found in registry")
)

// Chain is the MVM read surface used by the resolver
type Chain interface {
	ContractOf(ctx context.Context, id string) (common.Address, error)
	NativeBalance(ctx context.Context, account common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, asset, account common.Address) (*big.Int, error)
}

// Balance is a wallet balance of one asset
type Balance struct {
	AssetID   string         `json:"asset_id"`
	Native    bool           `json:"native"`
	Contract  common.Address `json:"contract"`
	Raw       *big.Int       `json:"raw"`
	Formatted string         `json:"formatted"`
	Decimals  int32          `json:"decimals"`
	// Cached is set when the chain read failed and the last known balance
	// is returned instead
	Cached bool `json:"cached,omitempty"`
}

// Resolver resolves contract addresses through the query cache
type Resolver struct {
	chain         Chain
	cache         *query.Client
	nativeAssetID string
	logger        *zap.Logger
}

// New creates a resolver. nativeAssetID selects the native balance path.
func New(chain Chain, cache *query.Client, nativeAssetID string, logger *zap.Logger) *Resolver {
	return &Resolver{
		chain:         chain,
		cache:         cache,
		nativeAssetID: strings.ToLower(nativeAssetID),
		logger:        logger,
	}
}

// IsNative reports whether assetID is the chain's native currency
func (r *Resolver) IsNative(assetID string) bool {
	return strings.EqualFold(assetID, r.nativeAssetID)
}

// ContractOf returns the MVM contract of a custodial asset
func (r *Resolver) ContractOf(ctx context.Context, assetID string) (common.Address, error) {
	return r.lookup(ctx, "asset_id", assetID, "asset contract not found")
}

// UserContract returns the MVM proxy contract of a custodial user
func (r *Resolver) UserContract(ctx context.Context, userID string) (common.Address, error) {
	return r.lookup(ctx, "user_id", userID, "user contract not found")
}

func (r *Resolver) lookup(ctx context.Context, field, id, notFound string) (common.Address, error) {
	if _, err := uuid.Parse(id); err != nil {
		return common.Address{}, apperrors.ValidationError(field, "must be a UUID")
	}

	key := query.Key{KindContract, strings.ToLower(id)}
	hex, err := query.Fetch(ctx, r.cache, key, ContractPolicy, func(ctx context.Context) (string, error) {
		addr, err := r.chain.ContractOf(ctx, id)
		if err != nil {
			return "", err
		}
		// the empty address is never cached so a later bridging is picked up
		if auth.IsEmptyAddress(addr) {
			return "", ErrNotFound
		}
		return addr.Hex(), nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return common.Address{}, apperrors.NotFoundError(err, notFound)
		}
		metrics.ErrorsTotal.WithLabelValues("resolver", "contract").Inc()
		return common.Address{}, apperrors.ChainReadError(err, "registry read failed")
	}
	return common.HexToAddress(hex), nil
}

// BalanceOf returns the balance of wallet in assetID. The native asset is
// read as the account balance at 18 decimals; any other asset is read from
// its registry contract at 8 decimals once the contract resolves. When the
// chain cannot be reached the last known balance is returned with Cached set.
func (r *Resolver) BalanceOf(ctx context.Context, assetID string, wallet common.Address) (*Balance, error) {
	key := query.Key{KindBalance, strings.ToLower(assetID), wallet.Hex()}
	balance, err := query.Refetch(ctx, r.cache, key, BalancePolicy, func(ctx context.Context) (*Balance, error) {
		return r.readBalance(ctx, assetID, wallet)
	})
	if err != nil {
		if balance == nil || !apperrors.Is(err, apperrors.CategoryDependencyFailure) {
			return nil, err
		}
		r.logger.Warn("Serving cached balance",
			zap.String("asset_id", assetID),
			zap.String("wallet", wallet.Hex()),
			zap.Error(err))
		balance.Cached = true
		return balance, nil
	}
	return balance, nil
}

func (r *Resolver) readBalance(ctx context.Context, assetID string, wallet common.Address) (*Balance, error) {
	if r.IsNative(assetID) {
		raw, err := r.chain.NativeBalance(ctx, wallet)
		if err != nil {
			metrics.ErrorsTotal.WithLabelValues("resolver", "native_balance").Inc()
			return nil, apperrors.ChainReadError(err, "balance read failed")
		}
		return newBalance(assetID, true, common.Address{}, raw, NativeDecimals), nil
	}

	contract, err := r.ContractOf(ctx, assetID)
	if err != nil {
		return nil, err
	}

	raw, err := r.chain.TokenBalance(ctx, contract, wallet)
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("resolver", "token_balance").Inc()
		return nil, apperrors.ChainReadError(err, "balance read failed")
	}
	return newBalance(assetID, false, contract, raw, TokenDecimals), nil
}

func newBalance(assetID string, native bool, contract common.Address, raw *big.Int, decimals int32) *Balance {
	if raw == nil {
		raw = new(big.Int)
	}
	return &Balance{
		AssetID:   assetID,
		Native:    native,
		Contract:  contract,
		Raw:       raw,
		Formatted: Format(raw, decimals),
		Decimals:  decimals,
	}
}

// Format renders an on-chain integer amount with decimals
func Format(raw *big.Int, decimals int32) string {
	return decimal.NewFromBigInt(raw, -decimals).String()
}
