package types

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	DefaultIrisURL        = "https://iris-api.circle.com"
	DefaultFallbackFeeBps = "14"
)

type Config struct {
	Chains        map[string]ChainConfig `yaml:"chains"`
	EnabledRoutes map[Domain][]Domain    `yaml:"enabled-routes"`
	Circle        CircleSettings         `yaml:"circle"`
	Transactions  TxSettings             `yaml:"transactions"`
	Store         StoreSettings          `yaml:"store"`
	API           APISettings            `yaml:"api"`
	Metrics       MetricsSettings        `yaml:"metrics"`

	// SignerPrivateKey is only ever read from the environment.
	SignerPrivateKey string `yaml:"-"`
}

type CircleSettings struct {
	AttestationBaseURL string `yaml:"attestation-base-url"`
	FeeBaseURL         string `yaml:"fee-base-url"`
	FetchRetries       int    `yaml:"fetch-retries"`
	FetchRetryInterval int    `yaml:"fetch-retry-interval"`
	FallbackFeeBps     string `yaml:"fallback-fee-bps"`

	EnableFastTransferMonitoring bool   `yaml:"enable-fast-transfer-monitoring"`
	AllowanceMonitorToken        string `yaml:"allowance-monitor-token"`
	AllowanceMonitorInterval     int    `yaml:"allowance-monitor-interval"` // seconds
	ReattestMaxRetries           int    `yaml:"reattest-max-retries"`
	// ExpirationBufferBlocks re-attests fast transfers this many destination blocks before expiry.
	ExpirationBufferBlocks int `yaml:"expiration-buffer-blocks"`
}

type TxSettings struct {
	ReceiptTimeout      int `yaml:"receipt-timeout"` // seconds
	ReceiptPollAttempts int `yaml:"receipt-poll-attempts"`
	ReceiptPollInterval int `yaml:"receipt-poll-interval"` // seconds
	EventRescanAttempts int `yaml:"event-rescan-attempts"`
	EventRescanInterval int `yaml:"event-rescan-interval"` // seconds
}

type StoreSettings struct {
	// Backend is one of memory, redis, sqlite.
	Backend   string `yaml:"backend"`
	RedisAddr string `yaml:"redis-addr"`
	RedisDB   int    `yaml:"redis-db"`
	SQLPath   string `yaml:"sqlite-path"`

	// RedisPassword is only ever read from the environment.
	RedisPassword string `yaml:"-"`
}

type APISettings struct {
	ListenAddr     string   `yaml:"listen-addr"`
	TrustedProxies []string `yaml:"trusted-proxies"`
	AutoMint       bool     `yaml:"auto-mint"`
}

type MetricsSettings struct {
	Address string `yaml:"address"`
	Port    int16  `yaml:"port"`
}

// envOverrides are read with the CCTP_ prefix, e.g. CCTP_SIGNER_PRIVATE_KEY.
type envOverrides struct {
	SignerPrivateKey string `envconfig:"SIGNER_PRIVATE_KEY"`
	IrisURL          string `envconfig:"IRIS_URL"`
	FeeURL           string `envconfig:"FEE_URL"`
	StoreBackend     string `envconfig:"STORE_BACKEND"`
	RedisAddr        string `envconfig:"REDIS_ADDR"`
	RedisPassword    string `envconfig:"REDIS_PASSWORD"`
	SQLitePath       string `envconfig:"SQLITE_PATH"`
}

// DefaultConfig is used as the base that a config file overlays.
func DefaultConfig() *Config {
	return &Config{
		Circle: CircleSettings{
			AttestationBaseURL:       DefaultIrisURL,
			FetchRetries:             60,
			FetchRetryInterval:       5,
			FallbackFeeBps:           DefaultFallbackFeeBps,
			AllowanceMonitorToken:    "USDC",
			AllowanceMonitorInterval: 30,
			ReattestMaxRetries:       3,
			ExpirationBufferBlocks:   5,
		},
		Transactions: TxSettings{
			ReceiptTimeout:      120,
			ReceiptPollAttempts: 60,
			ReceiptPollInterval: 2,
			EventRescanInterval: 2,
		},
		Store: StoreSettings{
			Backend: "memory",
		},
		API: APISettings{
			ListenAddr: "localhost:8000",
		},
		Metrics: MetricsSettings{
			Address: "localhost",
			Port:    2112,
		},
	}
}

// LoadConfig reads .env, the yaml file at path (optional when empty) and CCTP_ env overrides.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path != "" {
		file, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
		}
	}
	if len(cfg.Chains) == 0 {
		cfg.Chains = DefaultChains()
	}

	var env envOverrides
	if err := envconfig.Process("CCTP", &env); err != nil {
		return nil, fmt.Errorf("error reading environment: %w", err)
	}
	cfg.applyEnv(env)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(env envOverrides) {
	if env.SignerPrivateKey != "" {
		c.SignerPrivateKey = env.SignerPrivateKey
	}
	if env.IrisURL != "" {
		c.Circle.AttestationBaseURL = env.IrisURL
	}
	if env.FeeURL != "" {
		c.Circle.FeeBaseURL = env.FeeURL
	}
	if env.StoreBackend != "" {
		c.Store.Backend = env.StoreBackend
	}
	if env.RedisAddr != "" {
		c.Store.RedisAddr = env.RedisAddr
	}
	if env.RedisPassword != "" {
		c.Store.RedisPassword = env.RedisPassword
	}
	if env.SQLitePath != "" {
		c.Store.SQLPath = env.SQLitePath
	}
}

func (c *Config) Validate() error {
	if err := c.Circle.Validate(); err != nil {
		return fmt.Errorf("invalid circle settings: %w", err)
	}
	if err := c.Transactions.Validate(); err != nil {
		return fmt.Errorf("invalid transaction settings: %w", err)
	}
	switch c.Store.Backend {
	case "", "memory":
	case "redis":
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("store backend redis requires redis-addr")
		}
	case "sqlite":
		if c.Store.SQLPath == "" {
			return fmt.Errorf("store backend sqlite requires sqlite-path")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	return nil
}

// Registry builds the ChainRegistry described by the config.
func (c *Config) Registry() (*ChainRegistry, error) {
	return NewChainRegistry(c.Chains, c.EnabledRoutes)
}

// FeeURL is the fee API base, defaulting to the attestation base.
func (c *CircleSettings) FeeURL() string {
	if c.FeeBaseURL != "" {
		return c.FeeBaseURL
	}
	return c.AttestationBaseURL
}

// Attempts is the number of attestation polls per wait. fetch-retries of 0 still polls once.
func (c *CircleSettings) Attempts() int {
	if c.FetchRetries <= 0 {
		return 1
	}
	return c.FetchRetries
}

func (c *CircleSettings) RetryInterval() time.Duration {
	return time.Duration(c.FetchRetryInterval) * time.Second
}

func (c *CircleSettings) Validate() error {
	if c.AttestationBaseURL == "" {
		return fmt.Errorf("attestation-base-url is required")
	}
	if c.FetchRetries < 0 {
		return fmt.Errorf("fetch-retries cannot be negative")
	}
	if c.FetchRetryInterval < 0 {
		return fmt.Errorf("fetch-retry-interval cannot be negative")
	}
	if c.FallbackFeeBps != "" {
		bps, err := ParseBps(c.FallbackFeeBps)
		if err != nil {
			return fmt.Errorf("invalid fallback-fee-bps: %w", err)
		}
		if !bps.IsPositive() {
			return fmt.Errorf("fallback-fee-bps must be positive")
		}
	}
	if c.EnableFastTransferMonitoring && c.AllowanceMonitorInterval <= 0 {
		return fmt.Errorf("allowance-monitor-interval must be positive when enable-fast-transfer-monitoring is true")
	}
	if c.ReattestMaxRetries < 0 {
		return fmt.Errorf("reattest-max-retries cannot be negative")
	}
	if c.ExpirationBufferBlocks < 0 {
		return fmt.Errorf("expiration-buffer-blocks cannot be negative")
	}
	return nil
}

func (t *TxSettings) Validate() error {
	if t.ReceiptTimeout < 0 || t.ReceiptPollAttempts < 0 || t.ReceiptPollInterval < 0 {
		return fmt.Errorf("receipt settings cannot be negative")
	}
	if t.EventRescanAttempts < 0 || t.EventRescanInterval < 0 {
		return fmt.Errorf("event rescan settings cannot be negative")
	}
	return nil
}
