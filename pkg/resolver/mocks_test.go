package resolver

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MockChain is a mock implementation of Chain
type MockChain struct {
	ContractOfFunc    func(ctx context.Context, id string) (common.Address, error)
	NativeBalanceFunc func(ctx context.Context, account common.Address) (*big.Int, error)
	TokenBalanceFunc  func(ctx context.Context, asset, account common.Address) (*big.Int, error)

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockChain) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
}

// Calls returns how many times method was called
func (m *MockChain) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *MockChain) ContractOf(ctx context.Context, id string) (common.Address, error) {
	m.record("ContractOf")
	if m.ContractOfFunc != nil {
		return m.ContractOfFunc(ctx, id)
	}
	return common.Address{}, nil
}

func (m *MockChain) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	m.record("NativeBalance")
	if m.NativeBalanceFunc != nil {
		return m.NativeBalanceFunc(ctx, account)
	}
	return big.NewInt(0), nil
}

func (m *MockChain) TokenBalance(ctx context.Context, asset, account common.Address) (*big.Int, error) {
	m.record("TokenBalance")
	if m.TokenBalanceFunc != nil {
		return m.TokenBalanceFunc(ctx, asset, account)
	}
	return big.NewInt(0), nil
}
