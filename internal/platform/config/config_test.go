package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "beacon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, GatewayLog, cfg.Gateway.Driver)
	assert.Zero(t, cfg.Gateway.BreakerFailures, "breaker is off unless configured")
	assert.Equal(t, 30*time.Second, cfg.Gateway.BreakerCooldown)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "[ESCALATION]", cfg.Routing.EscalationPrefix)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
store:
  driver: postgres
  postgres_dsn: postgres://file
gateway:
  driver: http
  base_url: https://sms.example.com
  from: "+15550000000"
  timeout: 4s
`)
	t.Setenv("BEACON_STORE_POSTGRES_DSN", "postgres://env")
	t.Setenv("BEACON_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "postgres://env", cfg.Store.PostgresDSN, "environment wins over file")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 4*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadHeaderTimeout, "defaults survive partial files")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown store", func(c *Config) { c.Store.Driver = "mongo" }, `unknown store.driver "mongo"`},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = StorePostgres }, "store.postgres_dsn is required"},
		{"redis without url", func(c *Config) { c.Store.Driver = StoreRedis }, "store.redis_url is required"},
		{"http gateway without url", func(c *Config) {
			c.Gateway.Driver = GatewayHTTP
			c.Gateway.From = "+1"
		}, "gateway.base_url is required"},
		{"unknown gateway", func(c *Config) { c.Gateway.Driver = "pigeon" }, `unknown gateway.driver "pigeon"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "server.addr", envKey("BEACON_SERVER_ADDR"))
	assert.Equal(t, "store.redis_pool_size", envKey("BEACON_STORE_REDIS_POOL_SIZE"))
	assert.Equal(t, "debug", envKey("BEACON_DEBUG"))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestRedisSettings(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	r := cfg.Store.Redis()
	assert.Equal(t, 10, r.PoolSize)
	assert.Equal(t, 3*time.Second, r.ReadTimeout)
}
