package bridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsafe/mvm-bridge/pkg/config"
	"github.com/chainsafe/mvm-bridge/pkg/keys"
)

const anvilKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func buildTestBridge(t *testing.T) *Bridge {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	t.Setenv(cfg.Wallet.PrivateKeyEnv, anvilKey)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	b, err := Build(ctx, cfg, zap.NewNop(), keys.AutoApprove)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBuild_RequiresWalletKey(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	t.Setenv(cfg.Wallet.PrivateKeyEnv, "")

	_, err = Build(context.Background(), cfg, zap.NewNop(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), cfg.Wallet.PrivateKeyEnv)
}

func TestRouter_MountsEveryComponent(t *testing.T) {
	b := buildTestBridge(t)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", b.Wallet.Address().Hex())

	router := NewRouter(b)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/identity", http.StatusUnauthorized},
		{http.MethodGet, "/assets", http.StatusUnauthorized},
		{http.MethodGet, "/assets/not-a-uuid", http.StatusBadRequest},
		{http.MethodGet, "/deposits", http.StatusOK},
		{http.MethodGet, "/transfers", http.StatusOK},
		{http.MethodGet, "/assets/c94ac88f-4671-3976-b60a-09064f1811e8/transfer", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestClose_IsIdempotent(t *testing.T) {
	b := buildTestBridge(t)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
}
