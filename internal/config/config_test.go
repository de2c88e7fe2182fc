package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, StorageDriverPostgres, cfg.StorageDriver)
	assert.Equal(t, time.Hour, cfg.UpcomingCacheTTL)
	assert.Equal(t, 6, cfg.TxMaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.TxInitialBackoff)
	assert.Equal(t, 5*time.Second, cfg.TxMaxBackoff)
	assert.InDelta(t, 0.1, cfg.GatewayFailureRate, 1e-9)
	assert.True(t, cfg.GatewayLatency)
}

func TestLoad_PrefixedAliases(t *testing.T) {
	t.Setenv("CONCERTS_JWT_SECRET", testSecret)
	t.Setenv("CONCERTS_PORT", "9090")
	t.Setenv("CONCERTS_STORAGE_DRIVER", "Memory")
	t.Setenv("CONCERTS_UPCOMING_CACHE_TTL", "90s")
	t.Setenv("CONCERTS_TX_MAX_ATTEMPTS", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, StorageDriverMemory, cfg.StorageDriver)
	assert.Equal(t, 90*time.Second, cfg.UpcomingCacheTTL)
	assert.Equal(t, 1, cfg.TxMaxAttempts)
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		msg  string
	}{
		{"missing secret", map[string]string{}, "JWT_SECRET is required"},
		{"short secret", map[string]string{"JWT_SECRET": "short"}, "at least 32"},
		{"bad driver", map[string]string{"JWT_SECRET": testSecret, "STORAGE_DRIVER": "mysql"}, "STORAGE_DRIVER"},
		{"bad ttl", map[string]string{"JWT_SECRET": testSecret, "UPCOMING_CACHE_TTL": "soon"}, "UPCOMING_CACHE_TTL"},
		{"zero ttl", map[string]string{"JWT_SECRET": testSecret, "UPCOMING_CACHE_TTL": "0s"}, "UPCOMING_CACHE_TTL"},
		{"inverted backoff", map[string]string{"JWT_SECRET": testSecret, "TX_INITIAL_BACKOFF": "10s", "TX_MAX_BACKOFF": "1s"}, "TX_MAX_BACKOFF"},
		{"failure rate", map[string]string{"JWT_SECRET": testSecret, "GATEWAY_FAILURE_RATE": "1.5"}, "GATEWAY_FAILURE_RATE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestLoad_AdminUserIDs(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("ADMIN_USER_IDS", " admin-1, ,admin-2 ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"admin-1", "admin-2"}, cfg.AdminUserIDs)
}
