package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every deployment-tunable knob. Rate limit and cache
// values are configuration rather than fixed behavior; the defaults
// match a small public deployment.
type Config struct {
	Port    string
	GinMode string
	DataDir string

	// Client rate limiting.
	RateLimitMax    int
	RateLimitWindow time.Duration
	RateLimitBlock  time.Duration

	// Audit result cache.
	AuditCacheSize int
	AuditCacheTTL  time.Duration

	// Link reachability cache and outbound probe throttle.
	LinkCacheSize int
	LinkCacheTTL  time.Duration
	LinkProbeRPS  float64
}

// LoadEnv loads .env.development first (local development), then .env.
// Missing files are fine; real environment variables win either way.
func LoadEnv() {
	if err := godotenv.Load(".env.development"); err != nil {
		_ = godotenv.Load()
	}
}

// Load builds the configuration from the environment. Invalid values
// are a startup error, not something to limp along with.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            envString("PORT", "8082"),
		GinMode:         envString("GIN_MODE", "release"),
		DataDir:         envString("DATA_DIR", "data"),
		RateLimitMax:    30,
		RateLimitWindow: time.Minute,
		RateLimitBlock:  time.Hour,
		AuditCacheSize:  1000,
		AuditCacheTTL:   30 * time.Minute,
		LinkCacheSize:   10000,
		LinkCacheTTL:    10 * time.Minute,
		LinkProbeRPS:    10,
	}

	var err error
	if cfg.RateLimitMax, err = envInt("RATE_LIMIT_MAX", cfg.RateLimitMax); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = envDuration("RATE_LIMIT_WINDOW", cfg.RateLimitWindow); err != nil {
		return nil, err
	}
	if cfg.RateLimitBlock, err = envDuration("RATE_LIMIT_BLOCK", cfg.RateLimitBlock); err != nil {
		return nil, err
	}
	if cfg.AuditCacheSize, err = envInt("AUDIT_CACHE_SIZE", cfg.AuditCacheSize); err != nil {
		return nil, err
	}
	if cfg.AuditCacheTTL, err = envDuration("AUDIT_CACHE_TTL", cfg.AuditCacheTTL); err != nil {
		return nil, err
	}
	if cfg.LinkCacheSize, err = envInt("LINK_CACHE_SIZE", cfg.LinkCacheSize); err != nil {
		return nil, err
	}
	if cfg.LinkCacheTTL, err = envDuration("LINK_CACHE_TTL", cfg.LinkCacheTTL); err != nil {
		return nil, err
	}
	if cfg.LinkProbeRPS, err = envFloat("LINK_PROBE_RPS", cfg.LinkProbeRPS); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.RateLimitMax <= 0 {
		return fmt.Errorf("config: RATE_LIMIT_MAX must be positive, got %d", c.RateLimitMax)
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("config: RATE_LIMIT_WINDOW must be positive, got %s", c.RateLimitWindow)
	}
	if c.RateLimitBlock <= 0 {
		return fmt.Errorf("config: RATE_LIMIT_BLOCK must be positive, got %s", c.RateLimitBlock)
	}
	if c.AuditCacheSize < 0 {
		return fmt.Errorf("config: AUDIT_CACHE_SIZE must not be negative, got %d", c.AuditCacheSize)
	}
	if c.LinkCacheSize < 0 {
		return fmt.Errorf("config: LINK_CACHE_SIZE must not be negative, got %d", c.LinkCacheSize)
	}
	if c.LinkProbeRPS <= 0 {
		return fmt.Errorf("config: LINK_PROBE_RPS must be positive, got %f", c.LinkProbeRPS)
	}
	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return f, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
