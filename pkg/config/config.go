// Package config loads the connector framework's own tunables: default
// timeouts, cache sizes, rate limits, and classification thresholds. It
// never parses a host application's CLI flags and never carries connector
// credentials — those arrive via connector.Config/auth.Credentials values
// constructed by the caller.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoggingConfig controls the framework's structured logger.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" env:"CONNECTOR_LOG_LEVEL"`
	Format string `json:"format" yaml:"format" env:"CONNECTOR_LOG_FORMAT"`
	Output string `json:"output" yaml:"output" env:"CONNECTOR_LOG_OUTPUT"`
}

// RuntimeConfig holds default runtime tunables. connector.Runtime does not
// read them; it uses each caller's connector.Config as given.
type RuntimeConfig struct {
	DefaultTimeoutSeconds    int `json:"default_timeout_seconds" yaml:"default_timeout_seconds" env:"CONNECTOR_DEFAULT_TIMEOUT_SECONDS"`
	DefaultMaxRetries        int `json:"default_max_retries" yaml:"default_max_retries" env:"CONNECTOR_DEFAULT_MAX_RETRIES"`
	DefaultRateLimitPerMin   int `json:"default_rate_limit_per_minute" yaml:"default_rate_limit_per_minute" env:"CONNECTOR_DEFAULT_RATE_LIMIT_PER_MINUTE"`
	HealthCheckIntervalMins  int `json:"health_check_interval_minutes" yaml:"health_check_interval_minutes" env:"CONNECTOR_HEALTH_CHECK_INTERVAL_MINUTES"`
}

// CircuitBreakerConfig controls default hybrid circuit breaker thresholds
// (per-axis failure counts before tripping, overridable per connector).
type CircuitBreakerConfig struct {
	SIFailureThreshold     int `json:"si_failure_threshold" yaml:"si_failure_threshold" env:"CONNECTOR_CB_SI_THRESHOLD"`
	APPFailureThreshold    int `json:"app_failure_threshold" yaml:"app_failure_threshold" env:"CONNECTOR_CB_APP_THRESHOLD"`
	HybridFailureThreshold int `json:"hybrid_failure_threshold" yaml:"hybrid_failure_threshold" env:"CONNECTOR_CB_HYBRID_THRESHOLD"`
	DomainFailureThreshold int `json:"domain_failure_threshold" yaml:"domain_failure_threshold" env:"CONNECTOR_CB_DOMAIN_THRESHOLD"`
	OpenDurationSeconds    int `json:"open_duration_seconds" yaml:"open_duration_seconds" env:"CONNECTOR_CB_OPEN_DURATION_SECONDS"`
	SlidingWindowSeconds   int `json:"sliding_window_seconds" yaml:"sliding_window_seconds" env:"CONNECTOR_CB_WINDOW_SECONDS"`
}

// ClassificationConfig controls the transaction classification engine's
// tier selection and cost/accuracy tradeoffs.
type ClassificationConfig struct {
	LiteTierThreshold     float64 `json:"lite_tier_confidence_threshold" yaml:"lite_tier_confidence_threshold" env:"CONNECTOR_CLASSIFY_LITE_THRESHOLD"`
	PremiumTierThreshold  float64 `json:"premium_tier_confidence_threshold" yaml:"premium_tier_confidence_threshold" env:"CONNECTOR_CLASSIFY_PREMIUM_THRESHOLD"`
	MaxMonthlyCostNaira   float64 `json:"max_monthly_cost_naira" yaml:"max_monthly_cost_naira" env:"CONNECTOR_CLASSIFY_MAX_MONTHLY_COST_NAIRA"`
	MemoryCacheTTLMinutes int     `json:"memory_cache_ttl_minutes" yaml:"memory_cache_ttl_minutes" env:"CONNECTOR_CLASSIFY_MEMORY_CACHE_TTL_MINUTES"`
	DistributedCacheTTLHours int  `json:"distributed_cache_ttl_hours" yaml:"distributed_cache_ttl_hours" env:"CONNECTOR_CLASSIFY_DISTRIBUTED_CACHE_TTL_HOURS"`
	RedisAddr             string  `json:"redis_addr" yaml:"redis_addr" env:"CONNECTOR_CLASSIFY_REDIS_ADDR"`
}

// Config is the top-level configuration for the connector framework itself.
type Config struct {
	Logging        LoggingConfig        `json:"logging" yaml:"logging"`
	Runtime        RuntimeConfig        `json:"runtime" yaml:"runtime"`
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker" yaml:"circuit_breaker"`
	Classification ClassificationConfig `json:"classification" yaml:"classification"`
}

// New returns a configuration populated with defaults.
func New() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Runtime: RuntimeConfig{
			DefaultTimeoutSeconds:   30,
			DefaultMaxRetries:       3,
			DefaultRateLimitPerMin:  60,
			HealthCheckIntervalMins: 5,
		},
		CircuitBreaker: CircuitBreakerConfig{
			SIFailureThreshold:     5,
			APPFailureThreshold:    3,
			HybridFailureThreshold: 7,
			DomainFailureThreshold: 2,
			OpenDurationSeconds:    60,
			SlidingWindowSeconds:   300,
		},
		Classification: ClassificationConfig{
			LiteTierThreshold:        0.85,
			PremiumTierThreshold:     0.95,
			MaxMonthlyCostNaira:      50000,
			MemoryCacheTTLMinutes:    15,
			DistributedCacheTTLHours: 24,
			RedisAddr:                "localhost:6379",
		},
	}
}

// Load applies an optional YAML overlay and then environment variables over
// the defaults (later sources win). An optional .env file is first loaded
// into the process environment without replacing variables already set, so
// its values are read at the environment step and override the YAML file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	path := strings.TrimSpace(os.Getenv("CONNECTOR_CONFIG_FILE"))
	if path == "" {
		path = "configs/connector.yaml"
	}
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}

	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	return cfg, nil
}

// LoadFile reads configuration from a YAML file, applied over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	expanded, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
