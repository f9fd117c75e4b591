package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "/tmp/youtube", cfg.Storage.TempRoot)
	assert.Equal(t, 8192, cfg.Storage.ChunkSize)
	assert.Equal(t, []string{"twitter.com", "x.com"}, cfg.Security.AltAllowedHosts)
	assert.Equal(t, 100*time.Millisecond, cfg.Progress.Refresh)
	assert.True(t, cfg.Storage.ResetOnStart)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("TEMP_ROOT", "/var/tmp/relay")
	t.Setenv("TEMP_RESET_ON_START", "no")
	t.Setenv("EXTRACT_TIMEOUT", "45")
	t.Setenv("PROGRESS_REFRESH", "250ms")
	t.Setenv("ALT_ALLOWED_HOSTS", " Twitter.com, ,vimeo.com ")

	cfg := Load()

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/var/tmp/relay", cfg.Storage.TempRoot)
	assert.False(t, cfg.Storage.ResetOnStart)
	assert.Equal(t, 45*time.Second, cfg.Backend.ExtractTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Progress.Refresh)
	assert.Equal(t, []string{"twitter.com", "vimeo.com"}, cfg.Security.AltAllowedHosts)
}

func TestGetEnvFallbacks(t *testing.T) {
	t.Setenv("RELAY_TEST_INT", "not-a-number")
	t.Setenv("RELAY_TEST_BOOL", "maybe")

	assert.Equal(t, 7, getEnvInt("RELAY_TEST_INT", 7))
	assert.True(t, getEnvBool("RELAY_TEST_BOOL", true))
	assert.Equal(t, time.Minute, getEnvDuration("RELAY_TEST_MISSING", time.Minute))
}
