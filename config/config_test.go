package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8082", cfg.Port)
	assert.Equal(t, 30, cfg.RateLimitMax)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, time.Hour, cfg.RateLimitBlock)
	assert.Equal(t, 1000, cfg.AuditCacheSize)
	assert.Equal(t, 30*time.Minute, cfg.AuditCacheTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("RATE_LIMIT_MAX", "5")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("RATE_LIMIT_BLOCK", "10m")
	t.Setenv("AUDIT_CACHE_TTL", "1h")
	t.Setenv("LINK_PROBE_RPS", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 5, cfg.RateLimitMax)
	assert.Equal(t, 30*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, 10*time.Minute, cfg.RateLimitBlock)
	assert.Equal(t, time.Hour, cfg.AuditCacheTTL)
	assert.Equal(t, 2.5, cfg.LinkProbeRPS)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		key   string
		value string
	}{
		{"RATE_LIMIT_MAX", "0"},
		{"RATE_LIMIT_MAX", "not-a-number"},
		{"RATE_LIMIT_WINDOW", "-1m"},
		{"RATE_LIMIT_WINDOW", "soon"},
		{"RATE_LIMIT_BLOCK", "0s"},
		{"AUDIT_CACHE_SIZE", "-1"},
		{"LINK_PROBE_RPS", "0"},
	}

	for _, tc := range cases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
