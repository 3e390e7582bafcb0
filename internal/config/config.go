package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config struct for environment variables.
type Config struct {
	StagingDir  string        `envconfig:"STAGING_DIR" required:"true" validate:"required,nefield=FinalDir"`
	FinalDir    string        `envconfig:"FINAL_DIR" required:"true" validate:"required"`
	LibraryDir  string        `envconfig:"LIBRARY_DIR"`
	ContentExt  string        `envconfig:"CONTENT_EXT" default:"aax" validate:"required,excludes=/"`
	SidecarExt  string        `envconfig:"SIDECAR_EXT" default:"json" validate:"required,excludes=/,nefield=ContentExt"`
	AudioExts   []string      `envconfig:"AUDIO_EXTS" default:"m4b,mp3"`
	SettleDelay time.Duration `envconfig:"SETTLE_DELAY" default:"100ms" validate:"min=0"`

	Audible struct {
		BaseURL   string        `split_words:"true" default:"https://api.audible.com" validate:"required,url"`
		Token     string        `split_words:"true"`
		UserAgent string        `split_words:"true" default:"Audible/671 CFNetwork/1240.0.4 Darwin/20.6.0"`
		Timeout   time.Duration `split_words:"true" default:"30s" validate:"min=0"`
	}

	ProgressInterval  int64         `envconfig:"PROGRESS_INTERVAL" default:"10485760" validate:"gt=0"`
	StagingRetention  time.Duration `envconfig:"STAGING_RETENTION" default:"72h" validate:"gt=0"`
	CleanupInterval   time.Duration `envconfig:"CLEANUP_INTERVAL" default:"1h" validate:"gt=0"`
	LogLevel          string        `envconfig:"LOG_LEVEL" default:"INFO" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	DiscordWebhookURL string        `envconfig:"DISCORD_WEBHOOK_URL" validate:"omitempty,url"`
	DBPath            string        `envconfig:"DB_PATH" default:"acquisitions.db" validate:"required"`
	MaxParallel       int           `envconfig:"MAX_PARALLEL" default:"3" validate:"min=1,max=32"`

	Telemetry struct {
		Enabled      bool          `split_words:"true" default:"true"`
		ServiceName  string        `split_words:"true" default:"aax_downloader"`
		OTLPEndpoint string        `envconfig:"OTLP_ENDPOINT"`
		OTLPInterval time.Duration `envconfig:"OTLP_INTERVAL" default:"30s"`
	}

	API struct {
		Username string `split_words:"true" validate:"required_with=Password"`
		Password string `split_words:"true" validate:"required_with=Username"`
	}

	Web struct {
		BindAddress     string        `split_words:"true" default:"0.0.0.0:9092" validate:"required,hostname_port"`
		ReadTimeout     time.Duration `split_words:"true" default:"30s"`
		WriteTimeout    time.Duration `split_words:"true" default:"0s"`
		IdleTimeout     time.Duration `split_words:"true" default:"5s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"30s" validate:"gt=0"`
	}
}

// LoadConfig reads environment variables, populates the Config struct and validates it.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
