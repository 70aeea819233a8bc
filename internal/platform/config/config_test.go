package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvKafkaBrokersDefaultEmpty(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")

	cfg := FromEnv()

	// An unset broker list selects the in-process publisher path.
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestFromEnvKafkaBrokersSplitsList(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092,")

	cfg := FromEnv()

	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("WORKER_LOCK_MAX_HOLD", "")
	t.Setenv("CHECKIN_GRACE_PERIOD_DAYS", "")

	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 3, cfg.GracePeriodDays)
	assert.Equal(t, 30*time.Minute, cfg.Workers.LockMaxHold)
}
