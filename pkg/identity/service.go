package identity

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/mvm-bridge/pkg/app/errors"
	"github.com/chainsafe/mvm-bridge/pkg/auth"
	"github.com/chainsafe/mvm-bridge/pkg/bridgeapi"
	"github.com/chainsafe/mvm-bridge/pkg/keys"
	"github.com/chainsafe/mvm-bridge/pkg/query"
)

// StaleTime is how long a registration is served before a revalidation is allowed
const StaleTime = 60 * time.Second

// CacheKind is the query cache kind of registration entries
const CacheKind = "register"

var (
	ErrNotRegistered  = errors.New("wallet is not registered")
	ErrWalletMismatch = errors.New("address is not the connected wallet")
	ErrNoSessionKey   = errors.New("registration returned no session key")
)

// Signer is the connected wallet
type Signer interface {
	Address() common.Address
	SignMessage(ctx context.Context, message string) ([]byte, error)
}

// Backend is the bridge registration endpoint
type Backend interface {
	Register(ctx context.Context, req bridgeapi.RegisterRequest) (*bridgeapi.User, error)
}

// Listener is notified after every successful registration
type Listener func(*RegisteredIdentity)

// Service defines the interface for identity registration
type Service interface {
	// Address returns the connected wallet address
	Address() string
	// Register signs the registration challenge and stores the issued identity
	Register(ctx context.Context, address string) (*RegisteredIdentity, error)
	// Current returns the stored identity of address
	Current(address string) (*RegisteredIdentity, error)
}

// Option configures the identity service
type Option func(*identityService)

// WithMasterKey seals session keys at rest with masterKey
func WithMasterKey(masterKey []byte) Option {
	return func(s *identityService) { s.masterKey = masterKey }
}

// WithListener registers l to be called after each successful registration
func WithListener(l Listener) Option {
	return func(s *identityService) { s.listeners = append(s.listeners, l) }
}

type identityService struct {
	signer    Signer
	backend   Backend
	cache     *query.Client
	proxyTag  string
	masterKey []byte
	logger    *zap.Logger

	mu        sync.Mutex
	listeners []Listener
}

// NewService creates a new identity service
func NewService(
	signer Signer,
	backend Backend,
	cache *query.Client,
	proxyTag string,
	logger *zap.Logger,
	opts ...Option,
) Service {
	s := &identityService{
		signer:   signer,
		backend:  backend,
		cache:    cache,
		proxyTag: proxyTag,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CacheKey is the query cache key of the registration of address
func CacheKey(address string) query.Key {
	return query.Key{CacheKind, auth.NormalizeAddress(address)}
}

func (s *identityService) Address() string {
	return s.signer.Address().Hex()
}

// Register runs the sign-and-register round trip for the connected wallet.
//
// The challenge is bound to the proxy tag and the wallet address; its keccak
// digest is signed with personal_sign and posted to the bridge backend. A
// rejected signature is recoverable: nothing is stored and the caller may
// register again.
func (s *identityService) Register(ctx context.Context, address string) (*RegisteredIdentity, error) {
	wallet := s.signer.Address()
	if address == "" {
		address = wallet.Hex()
	}
	if !auth.ValidateEVMAddress(address) {
		return nil, apperrors.ValidationError("address", "invalid wallet address")
	}
	if common.HexToAddress(address) != wallet {
		return nil, apperrors.BadRequestError(ErrWalletMismatch, "address is not the connected wallet")
	}

	message := auth.RegistrationMessage(s.proxyTag, wallet.Hex())
	sig, err := s.signer.SignMessage(ctx, message)
	if err != nil {
		if errors.Is(err, keys.ErrUserRejected) {
			return nil, apperrors.WalletRejection(err)
		}
		return nil, fmt.Errorf("failed to sign registration message: %w", err)
	}

	user, err := s.backend.Register(ctx, bridgeapi.RegisterRequest{
		PublicKey: wallet.Hex(),
		Signature: hex.EncodeToString(sig),
	})
	if err != nil {
		return nil, apperrors.GatewayError(err, "registration failed")
	}
	if user.Key.PrivateKey == "" {
		return nil, apperrors.GatewayError(ErrNoSessionKey, "registration failed")
	}

	registered := fromBackend(wallet.Hex(), user)
	stored, err := s.seal(registered)
	if err != nil {
		return nil, err
	}
	if _, err := s.cache.Set(ctx, CacheKey(wallet.Hex()), query.Policy{CacheTime: query.Infinity, StaleTime: StaleTime}, stored); err != nil {
		return nil, fmt.Errorf("failed to store identity: %w", err)
	}

	s.notify(registered)
	return registered, nil
}

// Current returns the identity registered for address. Identities restored
// from persisted state are served without a network call.
func (s *identityService) Current(address string) (*RegisteredIdentity, error) {
	if address == "" {
		address = s.signer.Address().Hex()
	}

	stored, ok, err := query.Peek[RegisteredIdentity](s.cache, CacheKey(address))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NotRegisteredError(ErrNotRegistered)
	}
	return s.open(&stored)
}

func (s *identityService) seal(r *RegisteredIdentity) (*RegisteredIdentity, error) {
	if len(s.masterKey) == 0 {
		return r, nil
	}
	sealed, err := keys.Seal([]byte(r.Key.PrivateKey), s.masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to seal session key: %w", err)
	}
	out := *r
	out.Key.PrivateKey = sealed
	out.Key.Sealed = true
	return &out, nil
}

func (s *identityService) open(r *RegisteredIdentity) (*RegisteredIdentity, error) {
	if !r.Key.Sealed {
		return r, nil
	}
	if len(s.masterKey) == 0 {
		return nil, apperrors.NotRegisteredError(fmt.Errorf("stored session key is sealed and no wallet key is available"))
	}
	plain, err := keys.Open(r.Key.PrivateKey, s.masterKey)
	if err != nil {
		// sealed by another wallet key
		return nil, apperrors.NotRegisteredError(fmt.Errorf("failed to open session key: %w", err))
	}
	r.Key.PrivateKey = string(plain)
	r.Key.Sealed = false
	return r, nil
}

func (s *identityService) notify(r *RegisteredIdentity) {
	s.mu.Lock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(r)
	}
}
