package deposits

import (
	"context"
	"sync"

	"github.com/chainsafe/mvm-bridge/pkg/mixin"
)

// MockSource is a mock implementation of Source that records every poll
type MockSource struct {
	DepositsFunc func(ctx context.Context, key RequestKey, limit int) ([]mixin.Deposit, error)

	mu    sync.Mutex
	calls map[RequestKey]int
}

func (m *MockSource) Deposits(ctx context.Context, key RequestKey, limit int) ([]mixin.Deposit, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[RequestKey]int)
	}
	m.calls[key]++
	m.mu.Unlock()

	if m.DepositsFunc != nil {
		return m.DepositsFunc(ctx, key, limit)
	}
	return nil, nil
}

// Calls returns the number of polls per request key
func (m *MockSource) Calls() map[RequestKey]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[RequestKey]int, len(m.calls))
	for k, v := range m.calls {
		out[k] = v
	}
	return out
}

// MockLister is a mock implementation of AssetLister
type MockLister struct {
	AssetsOfIdentityFunc func(ctx context.Context) ([]mixin.Asset, error)
}

func (m *MockLister) AssetsOfIdentity(ctx context.Context) ([]mixin.Asset, error) {
	if m.AssetsOfIdentityFunc != nil {
		return m.AssetsOfIdentityFunc(ctx)
	}
	return nil, nil
}

// MockLastKnownSource is a MockSource that also serves stored histories
type MockLastKnownSource struct {
	MockSource
	LastDepositsFunc func(key RequestKey, limit int) ([]mixin.Deposit, bool)
}

func (m *MockLastKnownSource) LastDeposits(key RequestKey, limit int) ([]mixin.Deposit, bool) {
	if m.LastDepositsFunc != nil {
		return m.LastDepositsFunc(key, limit)
	}
	return nil, false
}
