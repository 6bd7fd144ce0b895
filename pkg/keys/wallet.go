// Package keys holds the local wallet used to sign registration challenges
// and MVM transactions, and helpers to seal secrets at rest.
package keys

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrUserRejected is returned when the wallet holder declines a request
var ErrUserRejected = errors.New("user rejected the request")

// RequestKind identifies what the wallet is asked to approve
type RequestKind string

const (
	RequestSignMessage     RequestKind = "sign_message"
	RequestSendTransaction RequestKind = "send_transaction"
)

// ApprovalRequest describes a pending signature for the wallet holder
type ApprovalRequest struct {
	Kind    RequestKind
	From    common.Address
	To      *common.Address
	Value   *big.Int
	Message string
}

// Approver asks the wallet holder to confirm a request.
// Returning an error wrapping ErrUserRejected declines it.
type Approver func(ctx context.Context, req ApprovalRequest) error

// AutoApprove approves every request
func AutoApprove(context.Context, ApprovalRequest) error { return nil }

// Wallet is a secp256k1 signing wallet
type Wallet struct {
	key      *ecdsa.PrivateKey
	address  common.Address
	approver Approver
}

// WalletOption configures a Wallet
type WalletOption func(*Wallet)

// WithApprover sets the approval hook consulted before every signature
func WithApprover(a Approver) WalletOption {
	return func(w *Wallet) {
		if a != nil {
			w.approver = a
		}
	}
}

// NewWallet loads a wallet from a hex private key (with or without 0x)
func NewWallet(hexKey string, opts ...WalletOption) (*Wallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to load private key: %w", err)
	}
	return NewWalletFromKey(key, opts...), nil
}

// NewWalletFromKey wraps an existing private key
func NewWalletFromKey(key *ecdsa.PrivateKey, opts ...WalletOption) *Wallet {
	w := &Wallet{
		key:      key,
		address:  crypto.PubkeyToAddress(key.PublicKey),
		approver: AutoApprove,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// GenerateWallet creates a wallet with a fresh random key
func GenerateWallet(opts ...WalletOption) (*Wallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate secp256k1 key: %w", err)
	}
	return NewWalletFromKey(key, opts...), nil
}

// Address returns the wallet address
func (w *Wallet) Address() common.Address {
	return w.address
}

// PrivateKey exposes the signing key for key derivation
func (w *Wallet) PrivateKey() *ecdsa.PrivateKey {
	return w.key
}

// SignMessage produces an EIP-191 personal_sign signature over message.
// The returned signature is 65 bytes with v in {27, 28}.
func (w *Wallet) SignMessage(ctx context.Context, message string) ([]byte, error) {
	if err := w.approver(ctx, ApprovalRequest{
		Kind:    RequestSignMessage,
		From:    w.address,
		Message: message,
	}); err != nil {
		return nil, err
	}

	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), w.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// NewTransactor returns transact options whose signer asks the approver first
func (w *Wallet) NewTransactor(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(w.key, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}

	sign := opts.Signer
	opts.Signer = func(from common.Address, tx *types.Transaction) (*types.Transaction, error) {
		if err := w.approver(ctx, ApprovalRequest{
			Kind:  RequestSendTransaction,
			From:  from,
			To:    tx.To(),
			Value: tx.Value(),
		}); err != nil {
			return nil, err
		}
		return sign(from, tx)
	}
	opts.Context = ctx
	return opts, nil
}
