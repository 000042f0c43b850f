// Package config loads the pipeline configuration from viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Monsterkot/diplom/internal/errors"
)

// Config is the fully resolved configuration.
type Config struct {
	Store     StoreConfig     `mapstructure:"store"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Bulk      BulkConfig      `mapstructure:"bulk"`
	Staleness StalenessConfig `mapstructure:"staleness"`
	Tasks     TasksConfig     `mapstructure:"tasks"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// SourcesConfig configures the upstream adapters.
type SourcesConfig struct {
	GoogleBooksAPIKey  string        `mapstructure:"google_books_api_key"`
	GoogleBooksBaseURL string        `mapstructure:"google_books_base_url"`
	OpenLibraryBaseURL string        `mapstructure:"open_library_base_url"`
	HTTPTimeout        time.Duration `mapstructure:"http_timeout"`
	RequestsPerSecond  int           `mapstructure:"requests_per_second"`
}

// PolicyConfig bounds one retry class.
type PolicyConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
}

// RetryConfig holds the three retry classes.
type RetryConfig struct {
	Interactive PolicyConfig `mapstructure:"interactive"`
	Bulk        PolicyConfig `mapstructure:"bulk"`
	Refresh     PolicyConfig `mapstructure:"refresh"`
}

// BulkConfig configures batch imports.
type BulkConfig struct {
	Throttle       time.Duration `mapstructure:"throttle"`
	AsyncThreshold int           `mapstructure:"async_threshold"`
}

// StalenessConfig configures the refresh scheduler.
type StalenessConfig struct {
	MaxAge    time.Duration `mapstructure:"max_age"`
	BatchSize int           `mapstructure:"batch_size"`
	Interval  time.Duration `mapstructure:"interval"`
}

// TasksConfig sizes the background task queue.
type TasksConfig struct {
	Workers   int           `mapstructure:"workers"`
	Capacity  int           `mapstructure:"capacity"`
	Retention time.Duration `mapstructure:"retention"`
}

// MetricsConfig configures the metrics listener used by serve.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("store.path", "./diplom.db")

	v.SetDefault("sources.google_books_api_key", "")
	v.SetDefault("sources.google_books_base_url", "https://www.googleapis.com/books/v1")
	v.SetDefault("sources.open_library_base_url", "https://openlibrary.org")
	v.SetDefault("sources.http_timeout", 10*time.Second)
	v.SetDefault("sources.requests_per_second", 1)

	v.SetDefault("retry.interactive.max_retries", 1)
	v.SetDefault("retry.interactive.base_delay", 2*time.Second)
	v.SetDefault("retry.bulk.max_retries", 3)
	v.SetDefault("retry.bulk.base_delay", 30*time.Second)
	v.SetDefault("retry.refresh.max_retries", 5)
	v.SetDefault("retry.refresh.base_delay", 60*time.Second)

	v.SetDefault("bulk.throttle", 500*time.Millisecond)
	v.SetDefault("bulk.async_threshold", 10)

	v.SetDefault("staleness.max_age", 7*24*time.Hour)
	v.SetDefault("staleness.batch_size", 50)
	v.SetDefault("staleness.interval", 24*time.Hour)

	v.SetDefault("tasks.workers", 4)
	v.SetDefault("tasks.capacity", 256)
	v.SetDefault("tasks.retention", time.Hour)

	v.SetDefault("metrics.addr", ":9090")
}

// BindEnv wires environment variables into v. Every key is reachable as
// DIPLOM_<SECTION>_<KEY>; the Google Books key also reads GOOGLE_BOOKS_API_KEY.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix("DIPLOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("sources.google_books_api_key", "DIPLOM_SOURCES_GOOGLE_BOOKS_API_KEY", "GOOGLE_BOOKS_API_KEY"); err != nil {
		return fmt.Errorf("failed to bind GOOGLE_BOOKS_API_KEY: %w", err)
	}
	return nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration produced by the defaults alone.
func Default() Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := Load(v)
	if err != nil {
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return cfg
}

// Validate rejects values the pipeline cannot run with.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Store.Path) == "":
		return errors.NewValidationError("store.path", "must not be empty")
	case c.Sources.HTTPTimeout <= 0:
		return errors.NewValidationError("sources.http_timeout", "must be positive")
	case c.Sources.RequestsPerSecond < 0:
		return errors.NewValidationError("sources.requests_per_second", "must not be negative")
	case c.Bulk.Throttle < 0:
		return errors.NewValidationError("bulk.throttle", "must not be negative")
	case c.Bulk.AsyncThreshold < 0:
		return errors.NewValidationError("bulk.async_threshold", "must not be negative")
	case c.Staleness.MaxAge <= 0:
		return errors.NewValidationError("staleness.max_age", "must be positive")
	case c.Staleness.BatchSize <= 0:
		return errors.NewValidationError("staleness.batch_size", "must be positive")
	case c.Staleness.Interval <= 0:
		return errors.NewValidationError("staleness.interval", "must be positive")
	case c.Tasks.Workers <= 0:
		return errors.NewValidationError("tasks.workers", "must be positive")
	case c.Tasks.Capacity <= 0:
		return errors.NewValidationError("tasks.capacity", "must be positive")
	case c.Tasks.Retention <= 0:
		return errors.NewValidationError("tasks.retention", "must be positive")
	}

	for name, p := range map[string]PolicyConfig{
		"retry.interactive": c.Retry.Interactive,
		"retry.bulk":        c.Retry.Bulk,
		"retry.refresh":     c.Retry.Refresh,
	} {
		if p.MaxRetries < 0 {
			return errors.NewValidationError(name+".max_retries", "must not be negative")
		}
		if p.BaseDelay < 0 {
			return errors.NewValidationError(name+".base_delay", "must not be negative")
		}
	}
	return nil
}
