package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, int64(73927), cfg.MVM.ChainID)
	assert.Equal(t, "0x3c84B6C98FBeB813e05a7A7813F0442883450B1F", cfg.MVM.RegistryContract)
	assert.Equal(t, "0x12266b2BbdEAb152f8A0CF83c3997Bc8dbAD0be0", cfg.MVM.BridgeContract)
	assert.Equal(t, uint64(420000), cfg.MVM.GasLimit)
	assert.Equal(t, 500, cfg.Deposits.Limit)
	assert.Equal(t, 6*time.Second, cfg.Deposits.PollInterval)
	assert.Equal(t, 12*time.Second, cfg.Deposits.AggregateInterval)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "c94ac88f-4671-3976-b60a-09064f1811e8", cfg.Assets.NativeAssetID)
	assert.Len(t, cfg.Assets.Whitelist, len(DefaultWhitelist))
}

func TestLoad_FileOverridesAndEnvExpansion(t *testing.T) {
	t.Setenv("TEST_MIXIN_URL", "https://mixin.example.com")

	path := writeConfig(t, `
server:
  port: 9000
mixin:
  base_url: ${TEST_MIXIN_URL}
deposits:
  aggregate_interval: 30s
assets:
  whitelist:
    - 43d61dcd-e413-450d-80b8-101d5e903357
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "https://mixin.example.com", cfg.Mixin.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Deposits.AggregateInterval)
	assert.Equal(t, []string{"43d61dcd-e413-450d-80b8-101d5e903357"}, cfg.Assets.Whitelist)
	// untouched sections keep their defaults
	assert.Equal(t, "https://bridge.mvm.dev/extra", cfg.Bridge.ExtraURL)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("MVM_BRIDGE_LOGGING_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "bad registry address",
			body: "mvm:\n  registry_contract: not-an-address\n",
		},
		{
			name: "unknown cache backend",
			body: "cache:\n  backend: sqlite\n",
		},
		{
			name: "limit above window",
			body: "deposits:\n  limit: 1000\n",
		},
		{
			name: "whitelist entry not a uuid",
			body: "assets:\n  whitelist: [btc]\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestWalletPrivateKey(t *testing.T) {
	w := WalletConfig{PrivateKeyEnv: "TEST_WALLET_KEY"}

	_, err := w.WalletPrivateKey()
	require.Error(t, err)

	t.Setenv("TEST_WALLET_KEY", "  abcd  ")
	key, err := w.WalletPrivateKey()
	require.NoError(t, err)
	assert.Equal(t, "abcd", key)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = NewLogger(LoggingConfig{Level: "loud", Format: "json"})
	require.Error(t, err)
}

func TestNewLogger_RedactsSecretFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")
	logger, err := NewLogger(LoggingConfig{
		Level:        "info",
		Format:       "json",
		OutputPath:   path,
		RedactFields: []string{"Token"},
	})
	require.NoError(t, err)

	logger.With(zap.String("session_key", "seed-secret")).Info("registered",
		zap.String("signature", "0xdeadbeef"),
		zap.String("token", "bearer-secret"),
		zap.String("user_id", "b3b1e0a4"))
	_ = logger.Sync()

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, secret := range []string{"seed-secret", "0xdeadbeef", "bearer-secret"} {
		assert.NotContains(t, string(out), secret)
	}
	assert.Contains(t, string(out), `"signature":"[REDACTED]"`)
	assert.Contains(t, string(out), `"user_id":"b3b1e0a4"`)
}

func TestRedactCore(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(NewRedactCore(core, "private_key", " PIN "))

	fields := []zap.Field{zap.String("pin", "123456"), zap.Int("attempt", 2)}
	logger.With(zap.String("private_key", "abcd")).Debug("unlock", fields...)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, map[string]any{
		"private_key": Redacted,
		"pin":         Redacted,
		"attempt":     int64(2),
	}, logs.All()[0].ContextMap())
	assert.Equal(t, "123456", fields[0].String, "caller fields are not mutated")
}

func TestLoad_ExampleFile(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.example.yaml"))
	require.NoError(t, err)

	assert.True(t, cfg.Wallet.RequireConfirmation)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Len(t, cfg.Assets.Whitelist, 4)
	assert.Equal(t, []string{"token"}, cfg.Logging.RedactFields)
}
