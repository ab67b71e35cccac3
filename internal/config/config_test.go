package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "fleet_dispatch", cfg.MongoDB)
	assert.Equal(t, time.Second, cfg.TickInterval)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("TICK_INTERVAL", "250ms")
	t.Setenv("MONGO_DB", "fleet_test")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, "fleet_test", cfg.MongoDB)
}

func TestLoadBadDuration(t *testing.T) {
	t.Setenv("TICK_INTERVAL", "not-a-duration")

	cfg := Load()
	assert.Equal(t, time.Second, cfg.TickInterval)
}
