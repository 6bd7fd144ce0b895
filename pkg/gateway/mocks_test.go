package gateway

import (
	"context"
	"sync"

	apperrors "github.com/chainsafe/mvm-bridge/pkg/app/errors"
	"github.com/chainsafe/mvm-bridge/pkg/identity"
	"github.com/chainsafe/mvm-bridge/pkg/mixin"
)

// MockAPI is a mock implementation of API
type MockAPI struct {
	TopAssetsFunc            func(ctx context.Context) ([]mixin.Asset, error)
	AssetFunc                func(ctx context.Context, ks *mixin.Keystore, assetID string) (*mixin.Asset, error)
	AssetsFunc               func(ctx context.Context, ks *mixin.Keystore) ([]mixin.Asset, error)
	ExternalTransactionsFunc func(ctx context.Context, ks *mixin.Keystore, q mixin.DepositQuery) ([]mixin.Deposit, error)
	UserFunc                 func(ctx context.Context, ks *mixin.Keystore, userID string) (*mixin.User, error)

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockAPI) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
}

// Calls returns how many times method was called
func (m *MockAPI) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *MockAPI) TopAssets(ctx context.Context) ([]mixin.Asset, error) {
	m.record("TopAssets")
	if m.TopAssetsFunc != nil {
		return m.TopAssetsFunc(ctx)
	}
	return nil, nil
}

func (m *MockAPI) Asset(ctx context.Context, ks *mixin.Keystore, assetID string) (*mixin.Asset, error) {
	m.record("Asset")
	if m.AssetFunc != nil {
		return m.AssetFunc(ctx, ks, assetID)
	}
	return &mixin.Asset{AssetID: assetID}, nil
}

func (m *MockAPI) Assets(ctx context.Context, ks *mixin.Keystore) ([]mixin.Asset, error) {
	m.record("Assets")
	if m.AssetsFunc != nil {
		return m.AssetsFunc(ctx, ks)
	}
	return nil, nil
}

func (m *MockAPI) ExternalTransactions(ctx context.Context, ks *mixin.Keystore, q mixin.DepositQuery) ([]mixin.Deposit, error) {
	m.record("ExternalTransactions")
	if m.ExternalTransactionsFunc != nil {
		return m.ExternalTransactionsFunc(ctx, ks, q)
	}
	return nil, nil
}

func (m *MockAPI) User(ctx context.Context, ks *mixin.Keystore, userID string) (*mixin.User, error) {
	m.record("User")
	if m.UserFunc != nil {
		return m.UserFunc(ctx, ks, userID)
	}
	return &mixin.User{UserID: userID}, nil
}

// MockSessions is a mock implementation of Sessions
type MockSessions struct {
	Identity *identity.RegisteredIdentity
}

func (m *MockSessions) Current(string) (*identity.RegisteredIdentity, error) {
	if m.Identity == nil {
		return nil, apperrors.NotRegisteredError(identity.ErrNotRegistered)
	}
	return m.Identity, nil
}
