// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the broadcaster needs to talk to a Gateway and
// drive the fee escalation loop.
type Config struct {
	GatewayURL       string `mapstructure:"gateway_url"`
	Chain            string `mapstructure:"chain"`
	Network          string `mapstructure:"network"`
	Connector        string `mapstructure:"connector"`
	RequestTimeoutMs int    `mapstructure:"request_timeout_ms"`

	BasePriorityFeePerCU            uint64            `mapstructure:"base_priority_fee_per_cu"`
	PriorityFeeMultiplier           float64           `mapstructure:"priority_fee_multiplier"`
	MinFeePerCU                     uint64            `mapstructure:"min_fee_per_cu"`
	MaxFeePerCU                     uint64            `mapstructure:"max_fee_per_cu"`
	MaxRetries                      int               `mapstructure:"max_retries"`
	FeeEstimateCacheIntervalSeconds int               `mapstructure:"fee_estimate_cache_interval_seconds"`
	RetryIntervalMs                 int               `mapstructure:"retry_interval_ms"`
	DefaultComputeUnits             map[string]uint32 `mapstructure:"default_compute_units"`

	PollIntervalMs int `mapstructure:"poll_interval_ms"`
	PollTimeoutMs  int `mapstructure:"poll_timeout_ms"`

	Workers      int    `mapstructure:"workers"`
	DebugLogging bool   `mapstructure:"debug_logging"`
	LogFile      string `mapstructure:"log_file"`
	MetricsAddr  string `mapstructure:"metrics_addr"`
	PostgresURL  string `mapstructure:"postgres_url"`
}

const (
	DefaultRequestTimeoutMs                = 10000
	DefaultBasePriorityFeePerCU            = 500000
	DefaultPriorityFeeMultiplier           = 2.0
	DefaultMinFeePerCU                     = 100000
	DefaultMaxFeePerCU                     = 10000000
	DefaultMaxRetries                      = 3
	DefaultFeeEstimateCacheIntervalSeconds = 60
	DefaultRetryIntervalMs                 = 2000
	DefaultPollIntervalMs                  = 2000
	DefaultPollTimeoutMs                   = 60000
	DefaultWorkers                         = 3
	DefaultLogFile                         = "gateway-broadcaster.log"

	DefaultSwapComputeUnits      = 600000
	DefaultLiquidityComputeUnits = 800000

	envPrefix = "GATEWAY_TX"
)

// DefaultComputeUnitBudgets returns a fresh copy of the per-type defaults.
func DefaultComputeUnitBudgets() map[string]uint32 {
	return map[string]uint32{
		"swap":     DefaultSwapComputeUnits,
		"lp_open":  DefaultLiquidityComputeUnits,
		"lp_close": DefaultLiquidityComputeUnits,
	}
}

// LoadConfig reads the file at path (if any), applies defaults and
// GATEWAY_TX_* environment overrides, then validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	defaults := map[string]interface{}{
		"gateway_url":                         "http://localhost:15888",
		"chain":                               "solana",
		"network":                             "mainnet-beta",
		"request_timeout_ms":                  DefaultRequestTimeoutMs,
		"base_priority_fee_per_cu":            DefaultBasePriorityFeePerCU,
		"priority_fee_multiplier":             DefaultPriorityFeeMultiplier,
		"min_fee_per_cu":                      DefaultMinFeePerCU,
		"max_fee_per_cu":                      DefaultMaxFeePerCU,
		"max_retries":                         DefaultMaxRetries,
		"fee_estimate_cache_interval_seconds": DefaultFeeEstimateCacheIntervalSeconds,
		"retry_interval_ms":                   DefaultRetryIntervalMs,
		"poll_interval_ms":                    DefaultPollIntervalMs,
		"poll_timeout_ms":                     DefaultPollTimeoutMs,
		"workers":                             DefaultWorkers,
		"log_file":                            DefaultLogFile,
		"connector":                           "",
		"debug_logging":                       false,
		"metrics_addr":                        "",
		"postgres_url":                        "",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	applyComputeUnitDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyComputeUnitDefaults(cfg *Config) {
	if cfg.DefaultComputeUnits == nil {
		cfg.DefaultComputeUnits = make(map[string]uint32)
	}
	for txType, units := range DefaultComputeUnitBudgets() {
		if cfg.DefaultComputeUnits[txType] == 0 {
			cfg.DefaultComputeUnits[txType] = units
		}
	}
}

func validateConfig(cfg *Config) error {
	if cfg.GatewayURL == "" {
		return errors.New("missing gateway_url in configuration")
	}
	if err := validateURLWithCache(cfg.GatewayURL, "http"); err != nil {
		return fmt.Errorf("invalid gateway_url: %w", err)
	}
	if cfg.Chain == "" || cfg.Network == "" {
		return errors.New("chain and network must be set")
	}
	if cfg.Connector == "" {
		return errors.New("missing connector in configuration")
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.RequestTimeoutMs <= 0 {
		return errors.New("invalid request_timeout_ms")
	}
	if cfg.MinFeePerCU > cfg.MaxFeePerCU {
		return fmt.Errorf("min_fee_per_cu (%d) exceeds max_fee_per_cu (%d)", cfg.MinFeePerCU, cfg.MaxFeePerCU)
	}
	if cfg.PriorityFeeMultiplier < 1 {
		return errors.New("priority_fee_multiplier must be at least 1")
	}
	if cfg.MaxRetries < 0 {
		return errors.New("invalid max_retries count")
	}
	if cfg.FeeEstimateCacheIntervalSeconds <= 0 {
		return errors.New("invalid fee_estimate_cache_interval_seconds")
	}
	if cfg.RetryIntervalMs < 0 {
		return errors.New("invalid retry_interval_ms")
	}
	if cfg.PollIntervalMs <= 0 || cfg.PollTimeoutMs <= 0 {
		return errors.New("invalid poll interval or timeout")
	}
	if cfg.Workers <= 0 {
		return errors.New("invalid workers count")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) || parsed.Host == "" {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

func (c *Config) RetryInterval() time.Duration {
	return time.Duration(c.RetryIntervalMs) * time.Millisecond
}

func (c *Config) FeeEstimateTTL() time.Duration {
	return time.Duration(c.FeeEstimateCacheIntervalSeconds) * time.Second
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutMs) * time.Millisecond
}
