package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"HTTP_PORT", "KAFKA_BROKERS", "KAFKA_FAILURE_TOPIC", "REDIS_ADDR",
		"WORKER_COUNT", "WORKER_IDLE_INTERVAL", "ISSUE_CACHE_TTL",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Empty(t, cfg.KafkaFailureTopic)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, 2, cfg.WorkerCount)
	assert.Equal(t, 500*time.Millisecond, cfg.WorkerIdleInterval)
	assert.Equal(t, 15*time.Minute, cfg.IssueCacheTTL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("WORKER_COUNT", "5")
	t.Setenv("WORKER_IDLE_INTERVAL", "2s")

	cfg := Load()

	assert.Equal(t, "9999", cfg.HTTPPort)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5, cfg.WorkerCount)
	assert.Equal(t, 2*time.Second, cfg.WorkerIdleInterval)
}

func TestLoadFallsBackOnMalformedValues(t *testing.T) {
	t.Setenv("WORKER_COUNT", "lots")
	t.Setenv("WORKER_IDLE_INTERVAL", "soon")

	cfg := Load()

	assert.Equal(t, 2, cfg.WorkerCount)
	assert.Equal(t, 500*time.Millisecond, cfg.WorkerIdleInterval)
}
