package transfer

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/mvm-bridge/pkg/app/errors"
)

// Manager keeps one orchestrator per asset
type Manager struct {
	ctx    context.Context
	deps   Dependencies
	cfg    Config
	logger *zap.Logger

	mu            sync.Mutex
	orchestrators map[string]*Orchestrator
}

// NewManager creates a manager whose orchestrators run on ctx
func NewManager(ctx context.Context, deps Dependencies, cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		ctx:           ctx,
		deps:          deps,
		cfg:           cfg,
		logger:        logger,
		orchestrators: make(map[string]*Orchestrator),
	}
}

// For returns the orchestrator of assetID, creating it on first use
func (m *Manager) For(assetID string) (*Orchestrator, error) {
	if _, err := uuid.Parse(assetID); err != nil {
		return nil, apperrors.ValidationError(assetField, "must be an asset id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orchestrators[assetID]
	if !ok {
		o = NewOrchestrator(m.ctx, assetID, m.deps, m.cfg, m.logger)
		m.orchestrators[assetID] = o
	}
	return o, nil
}

// Snapshots returns the view of every known orchestrator ordered by asset id
func (m *Manager) Snapshots() []Snapshot {
	m.mu.Lock()
	list := make([]*Orchestrator, 0, len(m.orchestrators))
	for _, o := range m.orchestrators {
		list = append(list, o)
	}
	m.mu.Unlock()

	out := make([]Snapshot, 0, len(list))
	for _, o := range list {
		out = append(out, o.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out
}

// Close stops every orchestrator
func (m *Manager) Close() {
	m.mu.Lock()
	list := make([]*Orchestrator, 0, len(m.orchestrators))
	for _, o := range m.orchestrators {
		list = append(list, o)
	}
	m.mu.Unlock()

	for _, o := range list {
		o.Close()
	}
}
