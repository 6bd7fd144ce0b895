package mixin

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeystore(t *testing.T) (*Keystore, ed25519.PublicKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return &Keystore{
		ClientID:   "8b9b1a1e-2a7e-4d4c-9d1a-7c1c7f0b2f11",
		SessionID:  "0c8b6a52-5d0e-4e0b-9f0e-3f1b1d2a9c44",
		PrivateKey: hex.EncodeToString(priv.Seed()),
	}, pub
}

func verifyToken(t *testing.T, header string, pub ed25519.PublicKey, method, uri string) {
	t.Helper()
	require.True(t, strings.HasPrefix(header, "Bearer "), "missing bearer token")

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims, func(tok *jwt.Token) (any, error) {
		return pub, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}))
	require.NoError(t, err)
	require.True(t, token.Valid)

	sum := sha256.Sum256([]byte(method + uri))
	assert.Equal(t, hex.EncodeToString(sum[:]), claims.Sig)
	assert.Equal(t, "FULL", claims.Scope)
	assert.NotEmpty(t, claims.ID)
}

func TestClient_TopAssetsUnauthenticated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/network/assets/top", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":[{"asset_id":"43d61dcd-e413-450d-80b8-101d5e903357","symbol":"ETH","name":"Ether"}]}`))
	}))
	defer srv.Close()

	assets, err := NewClient(srv.URL).TopAssets(context.Background())
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "ETH", assets[0].Symbol)
}

func TestClient_AssetAuthenticated(t *testing.T) {
	ks, pub := testKeystore(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		verifyToken(t, r.Header.Get("Authorization"), pub, http.MethodGet, r.URL.RequestURI())
		_, _ = w.Write([]byte(`{"data":{"asset_id":"43d61dcd-e413-450d-80b8-101d5e903357","symbol":"ETH","destination":"0xabc","tag":""}}`))
	}))
	defer srv.Close()

	asset, err := NewClient(srv.URL).Asset(context.Background(), ks, "43d61dcd-e413-450d-80b8-101d5e903357")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", asset.Destination)
}

func TestClient_ExternalTransactionsQuery(t *testing.T) {
	ks, pub := testKeystore(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/external/transactions", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "43d61dcd-e413-450d-80b8-101d5e903357", q.Get("asset"))
		assert.Equal(t, "0xabc", q.Get("destination"))
		assert.Equal(t, "memo-7", q.Get("tag"))
		assert.Equal(t, "500", q.Get("limit"))
		verifyToken(t, r.Header.Get("Authorization"), pub, http.MethodGet, r.URL.RequestURI())

		_, _ = w.Write([]byte(`{"data":[{"transaction_id":"tx-1","asset_id":"43d61dcd-e413-450d-80b8-101d5e903357","amount":"0.5","confirmations":3,"threshold":12,"created_at":"2022-05-01T10:00:00.123456789Z"}]}`))
	}))
	defer srv.Close()

	deposits, err := NewClient(srv.URL).ExternalTransactions(context.Background(), ks, DepositQuery{
		AssetID:     "43d61dcd-e413-450d-80b8-101d5e903357",
		Destination: "0xabc",
		Tag:         "memo-7",
		Limit:       500,
	})
	require.NoError(t, err)
	require.Len(t, deposits, 1)
	assert.Equal(t, "tx-1", deposits[0].TransactionID)
	assert.Equal(t, "0.5", deposits[0].Amount)
	assert.Equal(t, 3, deposits[0].Confirmations)
	assert.Equal(t, time.Date(2022, 5, 1, 10, 0, 0, 123456789, time.UTC), deposits[0].CreatedAt)
}

func TestClient_ErrorEnvelope(t *testing.T) {
	ks, _ := testKeystore(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"error":{"status":202,"code":10404,"description":"User not found."}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).User(context.Background(), ks, "b3b1e0a4-2d2f-4d0c-8c55-8c7a3d3a2f90")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).TopAssets(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Contains(t, apiErr.Description, "upstream exploded")
	assert.False(t, IsNotFound(err))
}

func TestClient_RequiresKeystore(t *testing.T) {
	c := NewClient("http://127.0.0.1:0")

	_, err := c.Assets(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoKeystore)
	_, err = c.User(context.Background(), nil, "x")
	require.ErrorIs(t, err, ErrNoKeystore)
}

func TestParsePrivateKey(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	fromSeed, err := ParsePrivateKey(hex.EncodeToString(priv.Seed()))
	require.NoError(t, err)
	assert.Equal(t, priv, fromSeed)

	_, err = ParsePrivateKey("")
	require.Error(t, err)
	_, err = ParsePrivateKey("abcd")
	require.Error(t, err)
}
