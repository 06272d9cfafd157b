// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
//
// Loading order (lowest to highest priority):
//  1. Defaults from defaultConfig()
//  2. Optional YAML file (CONFIG_PATH or DefaultConfigPaths)
//  3. Environment variables listed in envTransformFunc
//
// Config is immutable after loading and safe for concurrent reads.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Recommend RecommendConfig `koanf:"recommend"`
	Storage   StorageConfig   `koanf:"storage"`
	Data      DataConfig      `koanf:"data"`
	Events    EventsConfig    `koanf:"events"`
	Reload    ReloadConfig    `koanf:"reload"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimitReqs requests per RateLimitWindow per client IP on /api/v1.
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// MaxBatchSize caps the number of rows in one batch predict request.
	MaxBatchSize int `koanf:"max_batch_size" validate:"min=1"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is the minimum level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json (production) or console (development).
	Format string `koanf:"format"`

	Caller bool `koanf:"caller"`
}

// ALSConfig mirrors the latent factor trainer settings.
type ALSConfig struct {
	Factors        int     `koanf:"factors" validate:"min=1,max=1024"`
	Iterations     int     `koanf:"iterations" validate:"min=1,max=1000"`
	Regularization float64 `koanf:"regularization" validate:"gte=0"`
	Alpha          float64 `koanf:"alpha" validate:"gte=0"`
	Seed           int64   `koanf:"seed"`
	NumWorkers     int     `koanf:"num_workers" validate:"gte=0"`
}

// RecommendConfig holds training and serving settings.
type RecommendConfig struct {
	// Backend selects the trainer: als or cooccurrence.
	Backend   string    `koanf:"backend" validate:"oneof=als cooccurrence"`
	ModelName string    `koanf:"model_name" validate:"model_name"`
	ALS       ALSConfig `koanf:"als"`

	DefaultK int `koanf:"default_k" validate:"gte=0"`
	MaxK     int `koanf:"max_k" validate:"min=1"`
	EvalK    int `koanf:"eval_k" validate:"gte=0"`

	// ExcludeOwned drops items a customer already bought from factor
	// model results.
	ExcludeOwned bool `koanf:"exclude_owned"`

	BatchWorkers int `koanf:"batch_workers" validate:"min=1"`

	TrainOnStartup bool          `koanf:"train_on_startup"`
	TrainInterval  time.Duration `koanf:"train_interval" validate:"gte=0"`
	// TrainSchedule is a standard 5-field cron expression. When set it
	// replaces TrainInterval.
	TrainSchedule string        `koanf:"train_schedule"`
	TrainTimeout  time.Duration `koanf:"train_timeout" validate:"gt=0"`

	// AutoPromote moves each newly trained version to Production.
	AutoPromote bool `koanf:"auto_promote"`
}

// StorageConfig holds model artifact and registry locations.
type StorageConfig struct {
	ModelDir string `koanf:"model_dir" validate:"required"`
	// RegistryDir is the BadgerDB directory. Empty means in-memory.
	RegistryDir  string `koanf:"registry_dir"`
	KeepVersions int    `koanf:"keep_versions" validate:"gte=0"`
}

// DataConfig holds input and tabular artifact settings.
type DataConfig struct {
	// TransactionsPath is a CSV or Parquet file of transactions.
	TransactionsPath string `koanf:"transactions_path"`
	// DuckDBPath is the DuckDB database file; ":memory:" or empty keeps it
	// in memory.
	DuckDBPath     string `koanf:"duckdb_path"`
	ArtifactsDir   string `koanf:"artifacts_dir"`
	ArtifactFormat string `koanf:"artifact_format" validate:"oneof=parquet csv"`
	Threads        int    `koanf:"threads" validate:"gte=0"`
	MaxMemory      string `koanf:"max_memory"`
}

// EventsConfig holds model event transport settings. With no NATS URL
// and no embedded server, events stay in process.
type EventsConfig struct {
	NATSURL      string `koanf:"nats_url"`
	EmbeddedNATS bool   `koanf:"embedded_nats"`
	EmbeddedHost string `koanf:"embedded_host"`
	EmbeddedPort int    `koanf:"embedded_port" validate:"gte=0,lte=65535"`
	Topic        string `koanf:"topic" validate:"required"`
}

// ReloadConfig controls how the server picks up promoted models.
type ReloadConfig struct {
	// PollInterval re-checks the registry for a new Production version.
	// Zero disables polling; events still trigger reloads.
	PollInterval time.Duration `koanf:"poll_interval" validate:"gte=0"`
	// MinInterval is the minimum spacing between two reloads.
	MinInterval time.Duration `koanf:"min_interval" validate:"gte=0"`
	// BreakerFailures consecutive load failures open the circuit breaker
	// for BreakerTimeout.
	BreakerFailures int           `koanf:"breaker_failures" validate:"min=1"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

// Addr returns host:port for the HTTP listener.
func (s *ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
