package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"CONFIG_FILE", "SERVICE_NAME", "SERVICE_VERSION", "APP_ENV", "LOG_LEVEL", "REDIS_URL",
	"STREAM_NAME", "CONSUMER_GROUP", "DESTINATION_STREAM", "DEAD_LETTER_STREAM",
	"STREAM_READ_COUNT", "STREAM_BLOCK_TIMEOUT_MS", "STREAM_RECLAIM_INTERVAL_MS",
	"STREAM_RECLAIM_MIN_IDLE_MS", "STREAM_MAX_DELIVERIES", "ADMIN_SERVICE_URL",
	"CART_SERVICE_URL", "OTLP_ENDPOINT", "OTLP_INSECURE", "BATCH_SIZE",
	"HTTP_TIMEOUT_MS", "SHUTDOWN_TIMEOUT_MS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		stage       Stage
		stream      string
		group       string
		destination string
	}{
		{StageConfig, "config-stream", "config-engine", "pricing-stream"},
		{StagePricing, "pricing-stream", "pricing-engine", "cart-stream"},
		{StageCart, "cart-stream", "cart-worker", ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			cfg, err := Load(tt.stage)
			require.NoError(t, err)

			assert.Equal(t, tt.stream, cfg.Stream.Name)
			assert.Equal(t, tt.group, cfg.Stream.Group)
			assert.Equal(t, tt.destination, cfg.Stream.Destination)
			assert.Equal(t, tt.stream+"-dlq", cfg.Stream.DeadLetter)
			assert.Equal(t, string(tt.stage), cfg.ServiceName)
			assert.Equal(t, 20, cfg.BatchSize)
			assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
			assert.Equal(t, "redis://127.0.0.1:6379", cfg.RedisURL)
			assert.Empty(t, cfg.Otlp.Endpoint)
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STREAM_NAME", "carts-in")
	t.Setenv("CONSUMER_GROUP", "workers")
	t.Setenv("STREAM_READ_COUNT", "3")
	t.Setenv("STREAM_BLOCK_TIMEOUT_MS", "250")
	t.Setenv("STREAM_MAX_DELIVERIES", "9")
	t.Setenv("BATCH_SIZE", "7")
	t.Setenv("HTTP_TIMEOUT_MS", "1500")
	t.Setenv("CART_SERVICE_URL", "http://cart:8080/api")
	t.Setenv("OTLP_ENDPOINT", "collector:4317")
	t.Setenv("OTLP_INSECURE", "false")

	cfg, err := Load(StageCart)
	require.NoError(t, err)

	assert.Equal(t, "carts-in", cfg.Stream.Name)
	assert.Equal(t, "workers", cfg.Stream.Group)
	assert.Equal(t, "carts-in-dlq", cfg.Stream.DeadLetter)
	assert.Equal(t, 3, cfg.Stream.ReadCount)
	assert.Equal(t, 250*time.Millisecond, cfg.Stream.BlockTimeout)
	assert.Equal(t, 9, cfg.Stream.MaxDeliveries)
	assert.Equal(t, 7, cfg.BatchSize)
	assert.Equal(t, 1500*time.Millisecond, cfg.HTTPTimeout)
	assert.Equal(t, "http://cart:8080/api", cfg.Cart.BaseURL)
	assert.Equal(t, "collector:4317", cfg.Otlp.Endpoint)
	assert.False(t, cfg.Otlp.Insecure)
}

func TestLoadInvalidNumberKeepsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("BATCH_SIZE", "many")

	cfg, err := Load(StageConfig)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.BatchSize)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "pricing.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
serviceVersion: 1.4.2
batchSize: 50
httpTimeout: 3s
stream:
  readCount: 2
  reclaimMinIdle: 90s
admin:
  baseUrl: http://admin:7190/api
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("BATCH_SIZE", "25")

	cfg, err := Load(StagePricing)
	require.NoError(t, err)

	assert.Equal(t, "1.4.2", cfg.ServiceVersion)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 2, cfg.Stream.ReadCount)
	assert.Equal(t, 90*time.Second, cfg.Stream.ReclaimMinIdle)
	assert.Equal(t, "pricing-stream", cfg.Stream.Name)
	assert.Equal(t, "http://admin:7190/api", cfg.Admin.BaseURL)
}

func TestLoadRejectsNonBlockingRead(t *testing.T) {
	clearEnv(t)
	t.Setenv("STREAM_BLOCK_TIMEOUT_MS", "0")

	_, err := Load(StageCart)
	assert.ErrorContains(t, err, "stream.blockTimeout must be positive")
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load(StageConfig)
	assert.ErrorContains(t, err, "os.ReadFile")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown stage",
			mutate:  func(c *Config) { c.Stage = "checkout" },
			wantErr: "stage[checkout] is unknown",
		},
		{
			name:    "missing destination",
			mutate:  func(c *Config) { c.Stream.Destination = "" },
			wantErr: "stream.destination is empty",
		},
		{
			name:    "destination loops back",
			mutate:  func(c *Config) { c.Stream.Destination = c.Stream.Name },
			wantErr: "stream.destination equals stream.name",
		},
		{
			name:    "relative admin url",
			mutate:  func(c *Config) { c.Admin.BaseURL = "admin/api" },
			wantErr: "admin.baseUrl is not an absolute URL",
		},
		{
			name:    "zero block timeout",
			mutate:  func(c *Config) { c.Stream.BlockTimeout = 0 },
			wantErr: "stream.blockTimeout must be positive",
		},
		{
			name:    "zero batch size",
			mutate:  func(c *Config) { c.BatchSize = 0 },
			wantErr: "batchSize must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults(StagePricing)
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}

	require.NoError(t, Defaults(StageCart).Validate())
}
