package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultRPCURL   = "https://sepolia.base.org"
	defaultContract = "0x254697169376c0a51b48afc117010493316fc28a"
)

// Config is the full roundwatch configuration.
type Config struct {
	Ledger  LedgerConfig  `yaml:"ledger"`
	Poll    PollConfig    `yaml:"poll"`
	Price   PriceConfig   `yaml:"price"`
	Storage StorageConfig `yaml:"storage"`
	HTTP    HTTPConfig    `yaml:"http"`
	Log     LogConfig     `yaml:"log"`
}

// LedgerConfig points at the prediction contract.
type LedgerConfig struct {
	RPCURL          string  `yaml:"rpc_url" validate:"required,url"`
	ContractAddress string  `yaml:"contract_address" validate:"required,eth_addr"`
	RatePerSec      float64 `yaml:"rate_per_sec" validate:"gt=0"` // RPC calls per second
}

// PollConfig controls the aggregation passes.
type PollConfig struct {
	IntervalSeconds int `yaml:"interval_seconds" validate:"gte=1"`
	ResolverWorkers int `yaml:"resolver_workers" validate:"gte=1,lte=64"`
}

// PriceConfig controls the reference price feed.
type PriceConfig struct {
	HermesBase      string `yaml:"hermes_base" validate:"required,url"`
	FeedID          string `yaml:"feed_id" validate:"required,hexadecimal,len=66"`
	IntervalSeconds int    `yaml:"interval_seconds" validate:"gte=1"`
}

// StorageConfig controls where snapshot history is kept.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // SQLite file path, ":memory:", or empty to disable
}

// HTTPConfig controls the dashboard API.
type HTTPConfig struct {
	Addr string `yaml:"addr"` // empty disables the server
}

// LogConfig controls logging format and level.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Load reads the YAML file and a .env file if present.
// Environment variables override the YAML values they name.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// Validate checks the struct tags.
func (c *Config) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// PollInterval returns the pass interval as a time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalSeconds) * time.Second
}

// PriceInterval returns the price feed interval as a time.Duration.
func (c *Config) PriceInterval() time.Duration {
	return time.Duration(c.Price.IntervalSeconds) * time.Second
}

// applyEnvOverrides overwrites values with environment variables when set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RPC_URL"); v != "" {
		cfg.Ledger.RPCURL = v
	}
	if v := os.Getenv("CONTRACT_ADDRESS"); v != "" {
		cfg.Ledger.ContractAddress = v
	}
	if v := os.Getenv("PYTH_FEED_ID"); v != "" {
		cfg.Price.FeedID = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults fills in values the file left empty.
func setDefaults(cfg *Config) {
	if cfg.Ledger.RPCURL == "" {
		cfg.Ledger.RPCURL = defaultRPCURL
	}
	if cfg.Ledger.ContractAddress == "" {
		cfg.Ledger.ContractAddress = defaultContract
	}
	if cfg.Ledger.RatePerSec <= 0 {
		cfg.Ledger.RatePerSec = 20
	}
	if cfg.Poll.IntervalSeconds <= 0 {
		cfg.Poll.IntervalSeconds = 5
	}
	if cfg.Poll.ResolverWorkers <= 0 {
		cfg.Poll.ResolverWorkers = 8
	}
	if cfg.Price.HermesBase == "" {
		cfg.Price.HermesBase = "https://hermes.pyth.network"
	}
	if cfg.Price.FeedID == "" {
		cfg.Price.FeedID = "0xff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace" // ETH/USD
	}
	if cfg.Price.IntervalSeconds <= 0 {
		cfg.Price.IntervalSeconds = 5
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
