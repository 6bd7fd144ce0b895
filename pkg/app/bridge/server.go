package bridge

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apphttp "github.com/chainsafe/mvm-bridge/pkg/app/http"
	"github.com/chainsafe/mvm-bridge/pkg/config"
	"github.com/chainsafe/mvm-bridge/pkg/deposits"
	"github.com/chainsafe/mvm-bridge/pkg/gateway"
	"github.com/chainsafe/mvm-bridge/pkg/identity"
	"github.com/chainsafe/mvm-bridge/pkg/keys"
	"github.com/chainsafe/mvm-bridge/pkg/resolver"
	"github.com/chainsafe/mvm-bridge/pkg/transfer"
)

const defaultRequestTimeout = 60 * time.Second

// Server holds cfg to init the bridge client server.
type Server struct {
	cfg      *config.Config
	approver keys.Approver
}

// NewServer initializes a new bridge client server. approver is consulted
// before every wallet signature; nil approves everything.
func NewServer(cfg *config.Config, approver keys.Approver) *Server {
	return &Server{cfg: cfg, approver: approver}
}

// Run builds every component and serves the HTTP API until an OS shutdown
// signal is received or the server fails.
func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("bridge config is nil")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting MVM bridge client",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("cache_backend", cfg.Cache.Backend),
	)

	b, err := Build(ctx, cfg, logger, s.approver)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	b.Start(ctx)

	router := NewRouter(b)
	err = apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)

	// Stop background work before deferred connection closes kick in.
	_ = b.Close()

	return err
}

// NewRouter mounts every component's endpoints
func NewRouter(b *Bridge) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(defaultRequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if b.Config.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
		b.Logger.Info("Metrics enabled", zap.String("path", "/metrics"))
	}

	identity.RegisterRoutes(r, b.Identity, b.Logger)
	gateway.RegisterRoutes(r, b.Gateway, b.Logger)
	resolver.RegisterRoutes(r, b.Resolver, b.Wallet.Address(), b.Logger)
	deposits.RegisterRoutes(r, b.Deposits, b.Logger)
	transfer.RegisterRoutes(r, b.Transfer, b.Logger)

	return r
}
