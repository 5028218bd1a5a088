// Package config loads and validates archiver configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"paper-archiver/internal/archive"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Download DownloadConfig `mapstructure:"download"`
	Store    StoreConfig    `mapstructure:"store"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SourceConfig identifies the publication archive being crawled.
type SourceConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	UserAgent string `mapstructure:"user_agent"`
	MaxYears  int    `mapstructure:"max_years"`
}

// PipelineConfig governs fan-out and pacing.
type PipelineConfig struct {
	Concurrency     int    `mapstructure:"concurrency"`
	CourtesyDelayMs int    `mapstructure:"courtesy_delay_ms"`
	ShutdownWaitSec int    `mapstructure:"shutdown_wait_seconds"`
	CleanupAttempts int    `mapstructure:"cleanup_attempts"`
	CleanupDelaySec int    `mapstructure:"cleanup_delay_seconds"`
	WorkDir         string `mapstructure:"work_dir"`
}

// HTTPConfig configures HTML page fetch behavior.
type HTTPConfig struct {
	TimeoutSec  int    `mapstructure:"timeout_seconds"`
	MaxAttempts int    `mapstructure:"max_attempts"`
	Backoff     string `mapstructure:"backoff"`
	BackoffMs   int    `mapstructure:"backoff_ms"`
}

// DownloadConfig configures binary PDF transfer behavior.
type DownloadConfig struct {
	TimeoutSec  int    `mapstructure:"timeout_seconds"`
	MaxAttempts int    `mapstructure:"max_attempts"`
	Backoff     string `mapstructure:"backoff"`
	BackoffMs   int    `mapstructure:"backoff_ms"`
}

// StoreConfig selects and parameterizes the remote object store.
type StoreConfig struct {
	Provider string      `mapstructure:"provider"`
	Drive    DriveConfig `mapstructure:"drive"`
	GCS      GCSConfig   `mapstructure:"gcs"`
}

// DriveConfig holds the installed-app OAuth material for Google Drive.
type DriveConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	TokensDir       string `mapstructure:"tokens_dir"`
	CallbackPort    int    `mapstructure:"callback_port"`
}

// GCSConfig names the destination bucket for the GCS store.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// NotifyConfig selects the completion notifier.
type NotifyConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ARCHIVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.base_url", "https://papers.nips.cc")
	v.SetDefault("source.user_agent", "paper-archiver/1.0")
	v.SetDefault("source.max_years", 5)
	v.SetDefault("pipeline.concurrency", 10)
	v.SetDefault("pipeline.courtesy_delay_ms", 1000)
	v.SetDefault("pipeline.shutdown_wait_seconds", 60)
	v.SetDefault("pipeline.cleanup_attempts", 5)
	v.SetDefault("pipeline.cleanup_delay_seconds", 2)
	v.SetDefault("pipeline.work_dir", "data/pdfs")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_attempts", 3)
	v.SetDefault("http.backoff", archive.BackoffFixed)
	v.SetDefault("http.backoff_ms", 1000)
	v.SetDefault("download.timeout_seconds", 60)
	v.SetDefault("download.max_attempts", 3)
	v.SetDefault("download.backoff", archive.BackoffExponential)
	v.SetDefault("download.backoff_ms", 1000)
	v.SetDefault("store.provider", "noop")
	v.SetDefault("store.drive.credentials_file", "credentials.json")
	v.SetDefault("store.drive.tokens_dir", "tokens")
	v.SetDefault("store.drive.callback_port", 8888)
	v.SetDefault("store.gcs.prefix", "papers")
	v.SetDefault("notify.provider", "noop")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url must be set")
	}
	if c.Source.MaxYears <= 0 {
		return fmt.Errorf("source.max_years must be > 0")
	}
	if c.Pipeline.Concurrency <= 0 {
		return fmt.Errorf("pipeline.concurrency must be > 0")
	}
	if c.HTTP.TimeoutSec <= 0 || c.Download.TimeoutSec <= 0 {
		return fmt.Errorf("http and download timeout_seconds must be > 0")
	}
	if c.HTTP.MaxAttempts <= 0 || c.Download.MaxAttempts <= 0 {
		return fmt.Errorf("http and download max_attempts must be > 0")
	}
	for _, b := range []string{c.HTTP.Backoff, c.Download.Backoff} {
		if b != archive.BackoffFixed && b != archive.BackoffExponential {
			return fmt.Errorf("backoff must be %q or %q, got %q",
				archive.BackoffFixed, archive.BackoffExponential, b)
		}
	}
	switch c.Store.Provider {
	case "drive":
		if c.Store.Drive.CredentialsFile == "" {
			return fmt.Errorf("store.drive.credentials_file must be set for the drive provider")
		}
	case "gcs":
		if c.Store.GCS.Bucket == "" {
			return fmt.Errorf("store.gcs.bucket must be set for the gcs provider")
		}
	case "noop":
	default:
		return fmt.Errorf("unknown store provider: %s", c.Store.Provider)
	}
	switch c.Notify.Provider {
	case "pubsub":
		if c.Notify.ProjectID == "" || c.Notify.TopicName == "" {
			return fmt.Errorf("notify.project_id and notify.topic_name must be set for pubsub")
		}
	case "noop":
	default:
		return fmt.Errorf("unknown notify provider: %s", c.Notify.Provider)
	}
	return nil
}

// HTMLTimeout returns the page fetch timeout as a duration.
func (c Config) HTMLTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSec) * time.Second
}

// DownloadTimeout returns the binary transfer timeout as a duration.
func (c Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Download.TimeoutSec) * time.Second
}

// CourtesyDelay returns the pause applied after each paper completes.
func (c Config) CourtesyDelay() time.Duration {
	return time.Duration(c.Pipeline.CourtesyDelayMs) * time.Millisecond
}

// ShutdownWait returns the bounded wait applied at pipeline termination.
func (c Config) ShutdownWait() time.Duration {
	return time.Duration(c.Pipeline.ShutdownWaitSec) * time.Second
}

// CleanupDelay returns the pause between local delete attempts.
func (c Config) CleanupDelay() time.Duration {
	return time.Duration(c.Pipeline.CleanupDelaySec) * time.Second
}

// HTMLBackoff returns the configured page-fetch backoff interval.
func (c Config) HTMLBackoff() time.Duration {
	return time.Duration(c.HTTP.BackoffMs) * time.Millisecond
}

// DownloadBackoff returns the configured binary-transfer backoff interval.
func (c Config) DownloadBackoff() time.Duration {
	return time.Duration(c.Download.BackoffMs) * time.Millisecond
}
