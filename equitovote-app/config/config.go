package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/equito-network/equitovote/server/api"
	"github.com/equito-network/equitovote/x/gateway"
	"github.com/equito-network/equitovote/x/relay"
)

// Config holds the complete application configuration
type Config struct {
	API      APIServerConfig `mapstructure:"api"      yaml:"api"`
	Wallet   WalletConfig    `mapstructure:"wallet"   yaml:"wallet"`
	Relay    RelayConfig     `mapstructure:"relay"    yaml:"relay"`
	Gateway  GatewayConfig   `mapstructure:"gateway"  yaml:"gateway"`
	Registry RegistryConfig  `mapstructure:"registry" yaml:"registry"`
	Metrics  MetricsConfig   `mapstructure:"metrics"  yaml:"metrics"`
	Log      LogConfig       `mapstructure:"log"      yaml:"log"`
}

// APIServerConfig holds HTTP API server configuration
type APIServerConfig struct {
	ListenAddr        string        `mapstructure:"listen_addr"         yaml:"listen_addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"        yaml:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"       yaml:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"        yaml:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"    yaml:"shutdown_timeout"`
	MaxHeaderBytes    int           `mapstructure:"max_header_bytes"    yaml:"max_header_bytes"`
	EnableCORS        bool          `mapstructure:"enable_cors"         yaml:"enable_cors"`
}

// WalletConfig holds the signing identity. An empty private key starts the
// application in the disconnected state.
type WalletConfig struct {
	PrivateKey     string `mapstructure:"private_key"      yaml:"private_key"      env:"WALLET_PRIVATE_KEY"`
	InitialChainID uint64 `mapstructure:"initial_chain_id" yaml:"initial_chain_id" env:"WALLET_INITIAL_CHAIN_ID"`
}

// RelayConfig holds relay endpoints and proof-wait tuning
type RelayConfig struct {
	LiveEndpoint    string        `mapstructure:"live_endpoint"    yaml:"live_endpoint"    env:"RELAY_LIVE_WS_ENDPOINT"`
	ArchiveEndpoint string        `mapstructure:"archive_endpoint" yaml:"archive_endpoint" env:"RELAY_ARCHIVE_WS_ENDPOINT"`
	ListenTimeout   uint64        `mapstructure:"listen_timeout"   yaml:"listen_timeout"`
	PollInterval    time.Duration `mapstructure:"poll_interval"    yaml:"poll_interval"`
	MaxPollWait     time.Duration `mapstructure:"max_poll_wait"    yaml:"max_poll_wait"`
}

// GatewayConfig holds transaction submission tuning
type GatewayConfig struct {
	ReceiptPollInterval   time.Duration `mapstructure:"receipt_poll_interval"    yaml:"receipt_poll_interval"`
	ReceiptTimeout        time.Duration `mapstructure:"receipt_timeout"          yaml:"receipt_timeout"`
	GasLimitBufferPercent uint64        `mapstructure:"gas_limit_buffer_percent" yaml:"gas_limit_buffer_percent"`
}

// RegistryConfig points at the chain registry file. Empty means the built-in
// testnet set.
type RegistryConfig struct {
	File string `mapstructure:"file" yaml:"file" env:"REGISTRY_FILE"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" env:"METRICS_ENABLED"`
	Path    string `mapstructure:"path"    yaml:"path"    env:"METRICS_PATH"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  env:"LOG_LEVEL"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty" env:"LOG_PRETTY"`
}

// Load loads configuration from file and environment. A .env file in the
// working directory is read first so the relay endpoints and wallet key can
// stay out of the YAML. A missing config file is not an error: the built-in
// defaults plus environment variables are enough to run.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := Default()
		applyEnvFallbacks(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
		return cfg, nil
	}

	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvFallbacks(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyEnvFallbacks fills secrets and endpoints from environment aliases when
// the YAML leaves them empty.
func applyEnvFallbacks(cfg *Config) {
	if strings.TrimSpace(cfg.Relay.LiveEndpoint) == "" {
		cfg.Relay.LiveEndpoint = strings.TrimSpace(os.Getenv("RELAY_LIVE_WS_ENDPOINT"))
	}
	if strings.TrimSpace(cfg.Relay.ArchiveEndpoint) == "" {
		cfg.Relay.ArchiveEndpoint = strings.TrimSpace(os.Getenv("RELAY_ARCHIVE_WS_ENDPOINT"))
	}
	if strings.TrimSpace(cfg.Wallet.PrivateKey) == "" {
		cfg.Wallet.PrivateKey = strings.TrimSpace(os.Getenv("WALLET_PRIVATE_KEY"))
	}
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.listen_addr", ":8081")
	v.SetDefault("api.read_header_timeout", "5s")
	v.SetDefault("api.read_timeout", "15s")
	v.SetDefault("api.write_timeout", "30s")
	v.SetDefault("api.idle_timeout", "120s")
	v.SetDefault("api.shutdown_timeout", "10s")
	v.SetDefault("api.max_header_bytes", 1048576)
	v.SetDefault("api.enable_cors", true)

	v.SetDefault("wallet.private_key", "")
	v.SetDefault("wallet.initial_chain_id", 0)

	v.SetDefault("relay.live_endpoint", "")
	v.SetDefault("relay.archive_endpoint", "")
	v.SetDefault("relay.listen_timeout", relay.DefaultListenTimeout)
	v.SetDefault("relay.poll_interval", "1s")
	v.SetDefault("relay.max_poll_wait", "5m")

	v.SetDefault("gateway.receipt_poll_interval", "2s")
	v.SetDefault("gateway.receipt_timeout", "3m")
	v.SetDefault("gateway.gas_limit_buffer_percent", 20)

	v.SetDefault("registry.file", "")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.ListenAddr) == "" {
		return fmt.Errorf("api.listen_addr is required")
	}
	if err := c.ToRelay().Validate(); err != nil {
		return fmt.Errorf("relay: %w", err)
	}
	if err := c.ToGateway().Validate(); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Path) == "" {
		return fmt.Errorf("metrics.path is required when metrics enabled")
	}
	return nil
}

// ToAPI converts to the API server's own config type.
func (c *Config) ToAPI() api.Config {
	return api.Config{
		ListenAddr:        c.API.ListenAddr,
		ReadHeaderTimeout: c.API.ReadHeaderTimeout,
		ReadTimeout:       c.API.ReadTimeout,
		WriteTimeout:      c.API.WriteTimeout,
		IdleTimeout:       c.API.IdleTimeout,
		ShutdownTimeout:   c.API.ShutdownTimeout,
		MaxHeaderBytes:    c.API.MaxHeaderBytes,
	}
}

// ToRelay converts to the relay client's own config type.
func (c *Config) ToRelay() relay.Config {
	return relay.Config{
		LiveEndpoint:    c.Relay.LiveEndpoint,
		ArchiveEndpoint: c.Relay.ArchiveEndpoint,
		ListenTimeout:   c.Relay.ListenTimeout,
		PollInterval:    c.Relay.PollInterval,
		MaxPollWait:     c.Relay.MaxPollWait,
	}
}

// ToGateway converts to the gateway's own config type.
func (c *Config) ToGateway() gateway.Config {
	return gateway.Config{
		ReceiptPollInterval:   c.Gateway.ReceiptPollInterval,
		ReceiptTimeout:        c.Gateway.ReceiptTimeout,
		GasLimitBufferPercent: c.Gateway.GasLimitBufferPercent,
	}
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		API: APIServerConfig{
			ListenAddr:        ":8081",
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			MaxHeaderBytes:    1 << 20,
			EnableCORS:        true,
		},
		Relay: RelayConfig{
			ListenTimeout: relay.DefaultListenTimeout,
			PollInterval:  time.Second,
			MaxPollWait:   5 * time.Minute,
		},
		Gateway: GatewayConfig{
			ReceiptPollInterval:   2 * time.Second,
			ReceiptTimeout:        3 * time.Minute,
			GasLimitBufferPercent: 20,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: false,
		},
	}
}
