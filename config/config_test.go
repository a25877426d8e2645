package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"API_PORT", "DB_DRIVER", "LEARNING_MIN_OCCURRENCES", "SCHEDULER_INTERVAL", "DEVICE_BACKEND", "ACTION_RETENTION_DAYS"} {
		t.Setenv(key, "")
	}

	cfg := LoadFromEnv()

	assert.Equal(t, 8000, cfg.APIPort)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, 3, cfg.Learning.MinOccurrences)
	assert.InDelta(t, 0.6, cfg.Learning.ConfidenceThreshold, 1e-9)
	assert.Equal(t, 30, cfg.Learning.LookbackDays)
	assert.Equal(t, 90, cfg.Learning.RetentionDays)
	assert.Equal(t, time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, "mock", cfg.Devices.Backend)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("LEARNING_CONFIDENCE_THRESHOLD", "0.75")
	t.Setenv("SCHEDULER_INTERVAL", "30s")
	t.Setenv("REDIS_ENABLED", "yes")

	cfg := LoadFromEnv()

	assert.Equal(t, 9090, cfg.APIPort)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.InDelta(t, 0.75, cfg.Learning.ConfidenceThreshold, 1e-9)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.Interval)
	assert.True(t, cfg.RedisEnabled)
}

func TestGetEnvHelpers_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("X_INT", "abc")
	t.Setenv("X_DUR", "-5s")
	t.Setenv("X_FLOAT", "nope")

	assert.Equal(t, 7, getEnvInt("X_INT", 7))
	assert.Equal(t, time.Minute, getEnvDuration("X_DUR", time.Minute))
	assert.InDelta(t, 1.5, getEnvFloat("X_FLOAT", 1.5), 1e-9)
}

func TestLocation(t *testing.T) {
	cfg := &Config{Timezone: "UTC"}
	assert.Equal(t, "UTC", cfg.Location().String())

	cfg.Timezone = "Not/AZone"
	assert.Equal(t, time.Local, cfg.Location())

	cfg.Timezone = ""
	assert.Equal(t, time.Local, cfg.Location())
}
