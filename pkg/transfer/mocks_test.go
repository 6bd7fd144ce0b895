package transfer

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainsafe/mvm-bridge/pkg/bridgeapi"
	"github.com/chainsafe/mvm-bridge/pkg/identity"
	"github.com/chainsafe/mvm-bridge/pkg/mixin"
)

type callCounter struct {
	mu    sync.Mutex
	calls map[string]int
}

func (c *callCounter) record(method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = make(map[string]int)
	}
	c.calls[method]++
}

// Calls returns how many times method was called
func (c *callCounter) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// MockSessions is a mock implementation of Sessions
type MockSessions struct {
	Identity *identity.RegisteredIdentity
	Err      error
}

func (m *MockSessions) Current(string) (*identity.RegisteredIdentity, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Identity, nil
}

// MockUsers is a mock implementation of Users
type MockUsers struct {
	callCounter
	UserFunc func(ctx context.Context, userID string) (*mixin.User, error)
}

func (m *MockUsers) User(ctx context.Context, userID string) (*mixin.User, error) {
	m.record("User")
	if m.UserFunc != nil {
		return m.UserFunc(ctx, userID)
	}
	return &mixin.User{UserID: userID}, nil
}

// MockContracts is a mock implementation of Contracts
type MockContracts struct {
	callCounter
	Native           string
	ContractOfFunc   func(ctx context.Context, assetID string) (common.Address, error)
	UserContractFunc func(ctx context.Context, userID string) (common.Address, error)
}

func (m *MockContracts) IsNative(assetID string) bool {
	return assetID == m.Native
}

func (m *MockContracts) ContractOf(ctx context.Context, assetID string) (common.Address, error) {
	m.record("ContractOf")
	if m.ContractOfFunc != nil {
		return m.ContractOfFunc(ctx, assetID)
	}
	return common.Address{}, nil
}

func (m *MockContracts) UserContract(ctx context.Context, userID string) (common.Address, error) {
	m.record("UserContract")
	if m.UserContractFunc != nil {
		return m.UserContractFunc(ctx, userID)
	}
	return common.Address{}, nil
}

// MockExtras is a mock implementation of Extras
type MockExtras struct {
	callCounter
	ExtraFunc func(ctx context.Context, req bridgeapi.ExtraRequest) (string, error)
}

func (m *MockExtras) Extra(ctx context.Context, req bridgeapi.ExtraRequest) (string, error) {
	m.record("Extra")
	if m.ExtraFunc != nil {
		return m.ExtraFunc(ctx, req)
	}
	return "0x", nil
}

// MockWriter is a mock implementation of Writer
type MockWriter struct {
	callCounter
	ReleaseFunc           func(ctx context.Context, receiver common.Address, extra []byte, value *big.Int) (common.Hash, error)
	TransferWithExtraFunc func(ctx context.Context, asset, receiver common.Address, amount *big.Int, extra []byte) (common.Hash, error)
}

func (m *MockWriter) Release(ctx context.Context, receiver common.Address, extra []byte, value *big.Int) (common.Hash, error) {
	m.record("Release")
	if m.ReleaseFunc != nil {
		return m.ReleaseFunc(ctx, receiver, extra, value)
	}
	return common.Hash{}, nil
}

func (m *MockWriter) TransferWithExtra(ctx context.Context, asset, receiver common.Address, amount *big.Int, extra []byte) (common.Hash, error) {
	m.record("TransferWithExtra")
	if m.TransferWithExtraFunc != nil {
		return m.TransferWithExtraFunc(ctx, asset, receiver, amount, extra)
	}
	return common.Hash{}, nil
}
