// Package bridge assembles the bridge client components and implements
// app.Runner for the local HTTP server.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/mvm-bridge/internal/metrics"
	"github.com/chainsafe/mvm-bridge/pkg/bridgeapi"
	"github.com/chainsafe/mvm-bridge/pkg/cachestore"
	"github.com/chainsafe/mvm-bridge/pkg/config"
	"github.com/chainsafe/mvm-bridge/pkg/deposits"
	"github.com/chainsafe/mvm-bridge/pkg/ethereum"
	"github.com/chainsafe/mvm-bridge/pkg/gateway"
	"github.com/chainsafe/mvm-bridge/pkg/identity"
	"github.com/chainsafe/mvm-bridge/pkg/keys"
	"github.com/chainsafe/mvm-bridge/pkg/mixin"
	"github.com/chainsafe/mvm-bridge/pkg/query"
	"github.com/chainsafe/mvm-bridge/pkg/resolver"
	"github.com/chainsafe/mvm-bridge/pkg/transfer"
)

// sessionKeyInfo is the HKDF info used to derive the session sealing key
const sessionKeyInfo = "session"

// Bridge holds every wired component of the client
type Bridge struct {
	Config   *config.Config
	Logger   *zap.Logger
	Wallet   *keys.Wallet
	Cache    *query.Client
	Index    *deposits.AssetIndex
	Identity identity.Service
	Gateway  *gateway.Gateway
	Resolver *resolver.Resolver
	Deposits *deposits.Engine
	Transfer *transfer.Manager

	ethClient  *ethereum.Client
	closeStore func() error
	stopSweep  context.CancelFunc
	closeOnce  sync.Once
	closeErr   error
}

// Build connects every dependency and restores persisted state. Nothing is
// fetched from the network until a component is used. The returned Bridge
// must be closed.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, approver keys.Approver) (*Bridge, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}

	walletKey, err := cfg.Wallet.WalletPrivateKey()
	if err != nil {
		return nil, err
	}
	wallet, err := keys.NewWallet(walletKey, keys.WithApprover(approver))
	if err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}
	masterKey, err := keys.DeriveMasterKey(wallet.PrivateKey(), sessionKeyInfo)
	if err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}

	b := &Bridge{
		Config: cfg,
		Logger: logger,
		Wallet: wallet,
		Index:  deposits.NewAssetIndex(),
	}

	store, closeStore, err := cachestore.Open(ctx, &cfg.Cache, logger)
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}
	b.closeStore = closeStore

	opts := []query.Option{query.WithLogger(logger)}
	if store != nil {
		opts = append(opts, query.WithStore(store))
	}
	b.Cache = query.New(opts...)
	if err := b.Cache.Restore(ctx); err != nil {
		logger.Warn("Failed to restore query cache, starting empty", zap.Error(err))
	}

	b.ethClient, err = ethereum.NewClient(&cfg.MVM, wallet, logger)
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("initialize MVM client: %w", err)
	}

	mixinClient := mixin.NewClient(cfg.Mixin.BaseURL,
		mixin.WithLogger(logger),
		mixin.WithHTTPClient(&http.Client{Timeout: cfg.Mixin.RequestTimeout}),
		mixin.WithTokenTTL(cfg.Mixin.TokenTTL))

	bridgeClient := bridgeapi.NewClient(cfg.Bridge.RegistrationURL, cfg.Bridge.ExtraURL,
		bridgeapi.WithLogger(logger),
		bridgeapi.WithHTTPClient(&http.Client{Timeout: cfg.Bridge.RequestTimeout}))

	svc := identity.NewService(wallet, bridgeClient, b.Cache, cfg.Bridge.ProxyTag, logger,
		identity.WithMasterKey(masterKey),
		identity.WithListener(b.onRegistered))
	b.Identity = identity.NewLog(svc, logger)

	b.Gateway = gateway.New(mixinClient, b.Identity, b.Cache, b.Index, cfg.Assets.Whitelist, logger)
	b.Resolver = resolver.New(b.ethClient, b.Cache, cfg.Assets.NativeAssetID, logger)

	b.Deposits = deposits.NewEngine(b.Gateway, b.Gateway, b.Index,
		deposits.WithInterval(cfg.Deposits.AggregateInterval),
		deposits.WithLimit(cfg.Deposits.Limit),
		deposits.WithLogger(logger))

	b.Transfer = transfer.NewManager(ctx, transfer.Dependencies{
		Sessions:  b.Identity,
		Users:     b.Gateway,
		Contracts: b.Resolver,
		Extras:    bridgeClient,
		Writer:    b.ethClient,
	}, transfer.Config{
		ExplorerURL:      cfg.MVM.ExplorerURL,
		RetryInterval:    cfg.Transfer.RetryInterval,
		MaxRetryInterval: cfg.Transfer.MaxRetryInterval,
	}, logger)

	return b, nil
}

// Start restores the asset index of the stored identity, starts deposit
// aggregation and the cache janitor.
func (b *Bridge) Start(ctx context.Context) {
	if id, err := b.Identity.Current(""); err == nil {
		n := b.Gateway.RestoreIndex(id.UserID)
		b.Logger.Info("Restored identity",
			zap.String("user_id", id.UserID),
			zap.Int("indexed_assets", n))
	}

	b.Deposits.Start(ctx)
	if _, err := b.Identity.Current(""); err == nil {
		b.Deposits.SetIdentity(true)
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	b.stopSweep = cancel
	go b.sweep(sweepCtx)
}

func (b *Bridge) onRegistered(id *identity.RegisteredIdentity) {
	b.Logger.Info("Identity registered, enabling deposit aggregation", zap.String("user_id", id.UserID))
	b.Deposits.SetIdentity(true)
}

// sweep drops expired cache entries on the configured interval
func (b *Bridge) sweep(ctx context.Context) {
	interval := b.Config.Cache.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := b.Cache.Sweep(ctx); n > 0 {
				b.Logger.Debug("Swept expired cache entries", zap.Int("count", n))
			}
			metrics.CacheEntries.Set(float64(len(b.Cache.Snapshot())))
		}
	}
}

// Close stops background work and releases connections. It is safe to call
// more than once.
func (b *Bridge) Close() error {
	b.closeOnce.Do(func() {
		if b.stopSweep != nil {
			b.stopSweep()
		}
		if b.Transfer != nil {
			b.Transfer.Close()
		}
		if b.Deposits != nil {
			b.Deposits.Stop()
		}
		if b.ethClient != nil {
			b.ethClient.Close()
		}
		if b.closeStore != nil {
			b.closeErr = b.closeStore()
		}
	})
	return b.closeErr
}
