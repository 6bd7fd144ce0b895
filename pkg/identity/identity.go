// Package identity registers a wallet with the bridge backend and keeps the
// resulting session keystore in the query cache.
package identity

import (
	"github.com/chainsafe/mvm-bridge/pkg/bridgeapi"
	"github.com/chainsafe/mvm-bridge/pkg/mixin"
)

// TransferScheme is the custodial network deep link used by the QR flow
const TransferScheme = "mixin://transfer/"

// SessionKey is the custodial session key material issued on registration
type SessionKey struct {
	ClientID   string `json:"client_id"`
	SessionID  string `json:"session_id"`
	PrivateKey string `json:"private_key"`
	Sealed     bool   `json:"sealed,omitempty"`
}

// RegisteredIdentity is a wallet-bound custodial session
type RegisteredIdentity struct {
	Address   string     `json:"address"`
	UserID    string     `json:"user_id"`
	SessionID string     `json:"session_id"`
	FullName  string     `json:"full_name"`
	CreatedAt string     `json:"created_at"`
	Contract  string     `json:"contract"`
	Key       SessionKey `json:"key"`
}

// Keystore returns the credentials used to authenticate custodial API calls
func (r *RegisteredIdentity) Keystore() *mixin.Keystore {
	if r == nil {
		return nil
	}
	return &mixin.Keystore{
		ClientID:   r.Key.ClientID,
		SessionID:  r.Key.SessionID,
		PrivateKey: r.Key.PrivateKey,
	}
}

// TransferURL is the deep link a custodial wallet opens to pay this identity
func (r *RegisteredIdentity) TransferURL() string {
	return TransferURL(r.UserID)
}

// Public strips the key material
func (r *RegisteredIdentity) Public() RegisteredIdentity {
	out := *r
	out.Key = SessionKey{ClientID: r.Key.ClientID, SessionID: r.Key.SessionID}
	return out
}

// TransferURL builds the deep link for userID
func TransferURL(userID string) string {
	return TransferScheme + userID
}

func fromBackend(address string, u *bridgeapi.User) *RegisteredIdentity {
	return &RegisteredIdentity{
		Address:   address,
		UserID:    u.UserID,
		SessionID: u.SessionID,
		FullName:  u.FullName,
		CreatedAt: u.CreatedAt,
		Contract:  u.Contract,
		Key: SessionKey{
			ClientID:   u.Key.ClientID,
			SessionID:  u.Key.SessionID,
			PrivateKey: u.Key.PrivateKey,
		},
	}
}
