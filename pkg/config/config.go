package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides (MVM_BRIDGE_SERVER_PORT, ...)
const EnvPrefix = "MVM_BRIDGE"

// Config represents the bridge client configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Wallet   WalletConfig   `mapstructure:"wallet" yaml:"wallet"`
	MVM      MVMConfig      `mapstructure:"mvm" yaml:"mvm"`
	Bridge   BridgeConfig   `mapstructure:"bridge" yaml:"bridge"`
	Mixin    MixinConfig    `mapstructure:"mixin" yaml:"mixin"`
	Assets   AssetsConfig   `mapstructure:"assets" yaml:"assets"`
	Deposits DepositsConfig `mapstructure:"deposits" yaml:"deposits"`
	Transfer TransferConfig `mapstructure:"transfer" yaml:"transfer"`
	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host" default:"127.0.0.1"`
	Port            int           `mapstructure:"port" yaml:"port" default:"8545" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" default:"30s"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" default:"60s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" default:"30s"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level" default:"info"`
	Format     string `mapstructure:"format" yaml:"format" default:"json" validate:"oneof=json console"`
	OutputPath string `mapstructure:"output_path" yaml:"output_path" default:"stdout"`
	// RedactFields are masked in addition to DefaultRedactedFields
	RedactFields []string `mapstructure:"redact_fields" yaml:"redact_fields,omitempty"`
}

// WalletConfig points at the signing key of the connected wallet.
// The key itself is never stored in the config file.
type WalletConfig struct {
	PrivateKeyEnv       string `mapstructure:"private_key_env" yaml:"private_key_env" default:"MVM_WALLET_PRIVATE_KEY"`
	RequireConfirmation bool   `mapstructure:"require_confirmation" yaml:"require_confirmation"`
}

// MVMConfig contains the MVM chain and contract settings
type MVMConfig struct {
	RPCURL           string        `mapstructure:"rpc_url" yaml:"rpc_url" default:"https://geth.mvm.dev/" validate:"required,url"`
	ChainID          int64         `mapstructure:"chain_id" yaml:"chain_id" default:"73927" validate:"required"`
	ExplorerURL      string        `mapstructure:"explorer_url" yaml:"explorer_url" default:"https://scan.mvm.dev"`
	RegistryContract string        `mapstructure:"registry_contract" yaml:"registry_contract" default:"0x3c84B6C98FBeB813e05a7A7813F0442883450B1F" validate:"required,eth_addr"`
	BridgeContract   string        `mapstructure:"bridge_contract" yaml:"bridge_contract" default:"0x12266b2BbdEAb152f8A0CF83c3997Bc8dbAD0be0" validate:"required,eth_addr"`
	GasLimit         uint64        `mapstructure:"gas_limit" yaml:"gas_limit" default:"420000"`
	MaxGasPrice      string        `mapstructure:"max_gas_price" yaml:"max_gas_price"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout" yaml:"request_timeout" default:"30s"`
}

// BridgeConfig contains the bridge backend endpoints
type BridgeConfig struct {
	RegistrationURL string        `mapstructure:"registration_url" yaml:"registration_url" default:"https://bridge.pinstripe.mvm.dev/users" validate:"required,url"`
	ExtraURL        string        `mapstructure:"extra_url" yaml:"extra_url" default:"https://bridge.mvm.dev/extra" validate:"required,url"`
	ProxyTag        string        `mapstructure:"proxy_tag" yaml:"proxy_tag" default:"8MfEmL3g8s-PoDpZ4OcDCUDQPDiH4u1_OmxB0Aaknzg" validate:"required"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout" default:"30s"`
}

// MixinConfig contains the custodial network API settings
type MixinConfig struct {
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url" default:"https://api.mixin.one" validate:"required,url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout" default:"30s"`
	TokenTTL       time.Duration `mapstructure:"token_ttl" yaml:"token_ttl" default:"10m"`
}

// AssetsConfig contains the static asset catalogue
type AssetsConfig struct {
	NativeAssetID string   `mapstructure:"native_asset_id" yaml:"native_asset_id" default:"c94ac88f-4671-3976-b60a-09064f1811e8" validate:"required,uuid"`
	Whitelist     []string `mapstructure:"whitelist" yaml:"whitelist" validate:"dive,uuid"`
}

// DepositsConfig contains deposit polling settings
type DepositsConfig struct {
	Limit             int           `mapstructure:"limit" yaml:"limit" default:"500" validate:"min=1,max=500"`
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval" default:"6s"`
	AggregateInterval time.Duration `mapstructure:"aggregate_interval" yaml:"aggregate_interval" default:"12s"`
}

// TransferConfig contains transfer orchestration settings
type TransferConfig struct {
	RetryInterval    time.Duration `mapstructure:"retry_interval" yaml:"retry_interval" default:"3s"`
	MaxRetryInterval time.Duration `mapstructure:"max_retry_interval" yaml:"max_retry_interval" default:"30s"`
}

// CacheConfig selects where the query cache is persisted
type CacheConfig struct {
	Backend       string         `mapstructure:"backend" yaml:"backend" default:"memory" validate:"oneof=memory postgres redis"`
	SweepInterval time.Duration  `mapstructure:"sweep_interval" yaml:"sweep_interval" default:"1m"`
	Database      DatabaseConfig `mapstructure:"database" yaml:"database"`
	Redis         RedisConfig    `mapstructure:"redis" yaml:"redis"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host" yaml:"host" default:"localhost"`
	Port     int    `mapstructure:"port" yaml:"port" default:"5432"`
	User     string `mapstructure:"user" yaml:"user" default:"postgres"`
	Password string `mapstructure:"password" yaml:"password"`
	Database string `mapstructure:"database" yaml:"database" default:"mvm_bridge"`
	SSLMode  string `mapstructure:"ssl_mode" yaml:"ssl_mode" default:"disable"`
}

// RedisConfig contains redis connection settings
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr" default:"localhost:6379"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix" default:"mvm-bridge"`
}

// MetricsConfig contains prometheus settings
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" default:"true"`
}

// Default returns a configuration populated with defaults only
func Default() (*Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return &cfg, nil
}

// Load loads configuration from file and environment variables.
// An empty path loads defaults and environment overrides only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	bindDefaults(v, cfg)

	if configPath != "" {
		raw, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := v.ReadConfig(strings.NewReader(os.ExpandEnv(string(raw)))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks struct-level constraints on the configuration
func Validate(cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	if cfg.Cache.Backend == "postgres" && cfg.Cache.Database.Host == "" {
		return fmt.Errorf("cache.database.host is required for postgres backend")
	}
	if cfg.Cache.Backend == "redis" && cfg.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required for redis backend")
	}
	return nil
}

// bindDefaults registers every key so that environment overrides apply
// even when the key is absent from the file.
func bindDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", cfg.Server.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output_path", cfg.Logging.OutputPath)

	v.SetDefault("wallet.private_key_env", cfg.Wallet.PrivateKeyEnv)
	v.SetDefault("wallet.require_confirmation", cfg.Wallet.RequireConfirmation)

	v.SetDefault("mvm.rpc_url", cfg.MVM.RPCURL)
	v.SetDefault("mvm.chain_id", cfg.MVM.ChainID)
	v.SetDefault("mvm.explorer_url", cfg.MVM.ExplorerURL)
	v.SetDefault("mvm.registry_contract", cfg.MVM.RegistryContract)
	v.SetDefault("mvm.bridge_contract", cfg.MVM.BridgeContract)
	v.SetDefault("mvm.gas_limit", cfg.MVM.GasLimit)
	v.SetDefault("mvm.max_gas_price", cfg.MVM.MaxGasPrice)
	v.SetDefault("mvm.request_timeout", cfg.MVM.RequestTimeout)

	v.SetDefault("bridge.registration_url", cfg.Bridge.RegistrationURL)
	v.SetDefault("bridge.extra_url", cfg.Bridge.ExtraURL)
	v.SetDefault("bridge.proxy_tag", cfg.Bridge.ProxyTag)
	v.SetDefault("bridge.request_timeout", cfg.Bridge.RequestTimeout)

	v.SetDefault("mixin.base_url", cfg.Mixin.BaseURL)
	v.SetDefault("mixin.request_timeout", cfg.Mixin.RequestTimeout)
	v.SetDefault("mixin.token_ttl", cfg.Mixin.TokenTTL)

	v.SetDefault("assets.native_asset_id", cfg.Assets.NativeAssetID)
	v.SetDefault("assets.whitelist", DefaultWhitelist)

	v.SetDefault("deposits.limit", cfg.Deposits.Limit)
	v.SetDefault("deposits.poll_interval", cfg.Deposits.PollInterval)
	v.SetDefault("deposits.aggregate_interval", cfg.Deposits.AggregateInterval)

	v.SetDefault("transfer.retry_interval", cfg.Transfer.RetryInterval)
	v.SetDefault("transfer.max_retry_interval", cfg.Transfer.MaxRetryInterval)

	v.SetDefault("cache.backend", cfg.Cache.Backend)
	v.SetDefault("cache.sweep_interval", cfg.Cache.SweepInterval)
	v.SetDefault("cache.database.host", cfg.Cache.Database.Host)
	v.SetDefault("cache.database.port", cfg.Cache.Database.Port)
	v.SetDefault("cache.database.user", cfg.Cache.Database.User)
	v.SetDefault("cache.database.password", cfg.Cache.Database.Password)
	v.SetDefault("cache.database.database", cfg.Cache.Database.Database)
	v.SetDefault("cache.database.ssl_mode", cfg.Cache.Database.SSLMode)
	v.SetDefault("cache.redis.addr", cfg.Cache.Redis.Addr)
	v.SetDefault("cache.redis.password", cfg.Cache.Redis.Password)
	v.SetDefault("cache.redis.db", cfg.Cache.Redis.DB)
	v.SetDefault("cache.redis.prefix", cfg.Cache.Redis.Prefix)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
}

// DefaultWhitelist is the set of assets shown by default
var DefaultWhitelist = []string{
	"c6d0c728-2624-429b-8e0d-d9d19b6592fa", // BTC
	"4d8c508b-91c5-375b-92b0-ee702ed2dac5", // USDT
	"eea900a8-b327-488c-8d8d-1428702fe240", // MOB
	"43d61dcd-e413-450d-80b8-101d5e903357", // ETH
	"25dabac5-056a-48ff-b9f9-f67395dc407c", // TRX
	"31d2ea9c-95eb-3355-b65b-ba096853bc18", // pUSD
	"f5ef6b5d-cc5a-3d90-b2c0-a2fd386e7a3c", // BOX
	"c94ac88f-4671-3976-b60a-09064f1811e8", // XIN
	"965e5c6e-434c-3fa9-b780-c50f43cd955c", // CNB
}

// WalletPrivateKey reads the wallet key from the configured environment variable
func (c *WalletConfig) WalletPrivateKey() (string, error) {
	key := strings.TrimSpace(os.Getenv(c.PrivateKeyEnv))
	if key == "" {
		return "", fmt.Errorf("wallet private key not set (env %s)", c.PrivateKeyEnv)
	}
	return key, nil
}
