package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, StorageMemory, cfg.StorageDriver)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3*time.Second, cfg.NotificationTTL)
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleTTL)
	assert.Equal(t, time.Minute, cfg.SessionSweepInterval)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Empty(t, cfg.CatalogURL)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("STORAGE_DRIVER", "Layered")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("REQUEST_TIMEOUT", "5")
	t.Setenv("NOTIFICATION_TTL", "1500ms")
	t.Setenv("CATALOG_API_URL", "http://shop.local")
	t.Setenv("SESSION_IDLE_TTL", "10m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, StorageLayered, cfg.StorageDriver)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.NotificationTTL)
	assert.Equal(t, "http://shop.local", cfg.CatalogURL)
	assert.Equal(t, 10*time.Minute, cfg.SessionIdleTTL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown driver", "STORAGE_DRIVER", "postgres"},
		{"bad port", "HTTP_PORT", "http"},
		{"bad duration", "SHUTDOWN_TIMEOUT", "soon"},
		{"zero ttl", "NOTIFICATION_TTL", "0s"},
		{"zero session idle ttl", "SESSION_IDLE_TTL", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
