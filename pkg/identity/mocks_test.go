package identity

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainsafe/mvm-bridge/pkg/bridgeapi"
)

// MockSigner is a mock implementation of Signer
type MockSigner struct {
	AddressValue    common.Address
	SignMessageFunc func(ctx context.Context, message string) ([]byte, error)
}

func (m *MockSigner) Address() common.Address {
	return m.AddressValue
}

func (m *MockSigner) SignMessage(ctx context.Context, message string) ([]byte, error) {
	if m.SignMessageFunc != nil {
		return m.SignMessageFunc(ctx, message)
	}
	return make([]byte, 65), nil
}

// MockBackend is a mock implementation of Backend
type MockBackend struct {
	RegisterFunc func(ctx context.Context, req bridgeapi.RegisterRequest) (*bridgeapi.User, error)
	calls        int
}

func (m *MockBackend) Register(ctx context.Context, req bridgeapi.RegisterRequest) (*bridgeapi.User, error) {
	m.calls++
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, req)
	}
	return nil, nil
}
