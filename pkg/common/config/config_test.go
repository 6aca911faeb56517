package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("CASCADE_CHILD_DELETE", "")

	cfg := Load()
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.CascadeChildDelete)
	assert.Equal(t, 5*time.Minute, cfg.PublicReportCacheTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("CASCADE_CHILD_DELETE", "true")
	t.Setenv("JWT_TTL", "90m")
	t.Setenv("PUBLIC_RATE_LIMIT_RPS", "not-a-number")

	cfg := Load()
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.CascadeChildDelete)
	assert.Equal(t, 90*time.Minute, cfg.JWTTTL)
	assert.Equal(t, 10, cfg.PublicRateLimitRPS)
}
