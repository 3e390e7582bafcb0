package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()

	t.Setenv("STAGING_DIR", "/data/staging")
	t.Setenv("FINAL_DIR", "/data/books")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "/data/staging", cfg.StagingDir)
	assert.Equal(t, "/data/books", cfg.FinalDir)
	assert.Equal(t, "aax", cfg.ContentExt)
	assert.Equal(t, "json", cfg.SidecarExt)
	assert.Equal(t, []string{"m4b", "mp3"}, cfg.AudioExts)
	assert.Equal(t, 100*time.Millisecond, cfg.SettleDelay)
	assert.Equal(t, "https://api.audible.com", cfg.Audible.BaseURL)
	assert.Equal(t, 3, cfg.MaxParallel)
	assert.Equal(t, 72*time.Hour, cfg.StagingRetention)
	assert.Equal(t, "0.0.0.0:9092", cfg.Web.BindAddress)
	assert.True(t, cfg.Telemetry.Enabled)
}

func TestLoadConfig_NestedKeys(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("AUDIBLE_TOKEN", "tok")
	t.Setenv("API_USERNAME", "admin")
	t.Setenv("API_PASSWORD", "hunter2")
	t.Setenv("TELEMETRY_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("SETTLE_DELAY", "0s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "tok", cfg.Audible.Token)
	assert.Equal(t, "admin", cfg.API.Username)
	assert.Equal(t, "hunter2", cfg.API.Password)
	assert.Equal(t, "collector:4317", cfg.Telemetry.OTLPEndpoint)
	assert.Zero(t, cfg.SettleDelay)
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	t.Setenv("STAGING_DIR", "/data/staging")
	t.Setenv("FINAL_DIR", "")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		tag  string
	}{
		{"same roots", "FINAL_DIR", "/data/staging", "nefield"},
		{"same extensions", "SIDECAR_EXT", "aax", "nefield"},
		{"bad log level", "LOG_LEVEL", "verbose", "oneof"},
		{"zero parallelism", "MAX_PARALLEL", "0", "min"},
		{"bad webhook", "DISCORD_WEBHOOK_URL", "not a url", "url"},
		{"password without username", "API_PASSWORD", "secret", "required_with"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "'"+tt.tag+"'")
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"Warn":  slog.LevelWarn,
		"ERROR": slog.LevelError,
		"":      slog.LevelInfo,
	}

	for in, want := range tests {
		assert.Equal(t, want, (&Config{LogLevel: in}).SlogLevel(), in)
	}
}
