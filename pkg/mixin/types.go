// Package mixin is a thin client for the custodial messaging-network API
// used by the bridge: asset descriptors, deposit transactions and users.
package mixin

import (
	"fmt"
	"time"
)

// Asset is the custodial descriptor of an asset. Destination and tag form
// the deposit address of the registered identity for that asset.
type Asset struct {
	AssetID       string `json:"asset_id"`
	ChainID       string `json:"chain_id"`
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	IconURL       string `json:"icon_url"`
	Balance       string `json:"balance,omitempty"`
	Destination   string `json:"destination,omitempty"`
	Tag           string `json:"tag,omitempty"`
	PriceUSD      string `json:"price_usd,omitempty"`
	Confirmations int    `json:"confirmations,omitempty"`
}

// Deposit is a pending or completed external deposit transaction
type Deposit struct {
	TransactionID   string    `json:"transaction_id"`
	TransactionHash string    `json:"transaction_hash,omitempty"`
	AssetID         string    `json:"asset_id"`
	ChainID         string    `json:"chain_id,omitempty"`
	Amount          string    `json:"amount"`
	Destination     string    `json:"destination,omitempty"`
	Tag             string    `json:"tag,omitempty"`
	Sender          string    `json:"sender,omitempty"`
	Confirmations   int       `json:"confirmations"`
	Threshold       int       `json:"threshold"`
	State           string    `json:"state,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// User is a custodial network user
type User struct {
	UserID         string `json:"user_id"`
	IdentityNumber string `json:"identity_number,omitempty"`
	FullName       string `json:"full_name"`
	AvatarURL      string `json:"avatar_url,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// Keystore holds the session credentials of a registered identity
type Keystore struct {
	ClientID   string `json:"client_id"`
	SessionID  string `json:"session_id"`
	PrivateKey string `json:"private_key"`
}

// DepositQuery selects external transactions by deposit address
type DepositQuery struct {
	AssetID     string
	Destination string
	Tag         string
	Limit       int
	Offset      string
}

// APIError is the error envelope returned by the API
type APIError struct {
	Status      int    `json:"status"`
	Code        int    `json:"code"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mixin api error %d (status %d): %s", e.Code, e.Status, e.Description)
}

// Error codes used by the API
const (
	CodeUnauthorized = 401
	CodeNotFound     = 404
	CodeUserNotFound = 10404
)
