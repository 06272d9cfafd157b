// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/shopsignal/config.yaml",
	"/etc/shopsignal/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultModelName is the registry name used when none is configured.
const DefaultModelName = "recommender_als_model"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8000,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			MaxBatchSize:      1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Recommend: RecommendConfig{
			Backend:   "als",
			ModelName: DefaultModelName,
			ALS: ALSConfig{
				Factors:        64,
				Iterations:     20,
				Regularization: 0.01,
				Alpha:          1.0,
				Seed:           42,
				NumWorkers:     runtime.NumCPU(),
			},
			DefaultK:       5,
			MaxK:           100,
			EvalK:          5,
			ExcludeOwned:   false,
			BatchWorkers:   4,
			TrainOnStartup: false,
			TrainInterval:  0,
			TrainTimeout:   30 * time.Minute,
			AutoPromote:    true,
		},
		Storage: StorageConfig{
			ModelDir:     "/data/models",
			RegistryDir:  "/data/registry",
			KeepVersions: 5,
		},
		Data: DataConfig{
			TransactionsPath: "",
			DuckDBPath:       ":memory:",
			ArtifactsDir:     "/data/artifacts",
			ArtifactFormat:   "parquet",
			Threads:          0,
			MaxMemory:        "1GB",
		},
		Events: EventsConfig{
			EmbeddedHost: "127.0.0.1",
			EmbeddedPort: 4222,
			Topic:        "shopsignal.model.promoted",
		},
		Reload: ReloadConfig{
			PollInterval:    time.Minute,
			MinInterval:     5 * time.Second,
			BreakerFailures: 3,
			BreakerTimeout:  30 * time.Second,
		},
	}
}

// Load loads configuration with Koanf.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// LoadWithKoanf layers defaults, an optional YAML file and environment
// variables, then validates the result.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// RECOMMEND_ALS_FACTORS -> recommend.als.factors
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

var envMappings = map[string]string{
	// Server
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"cors_origins":          "server.cors_origins",
	"rate_limit_requests":   "server.rate_limit_reqs",
	"rate_limit_window":     "server.rate_limit_window",
	"disable_rate_limit":    "server.rate_limit_disabled",
	"max_batch_size":        "server.max_batch_size",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Recommendation
	"recommend_backend":            "recommend.backend",
	"recommend_model_name":         "recommend.model_name",
	"recommend_default_k":          "recommend.default_k",
	"recommend_max_k":              "recommend.max_k",
	"recommend_eval_k":             "recommend.eval_k",
	"recommend_exclude_owned":      "recommend.exclude_owned",
	"recommend_batch_workers":      "recommend.batch_workers",
	"recommend_train_on_startup":   "recommend.train_on_startup",
	"recommend_train_interval":     "recommend.train_interval",
	"recommend_train_schedule":     "recommend.train_schedule",
	"recommend_train_timeout":      "recommend.train_timeout",
	"recommend_auto_promote":       "recommend.auto_promote",
	"recommend_als_factors":        "recommend.als.factors",
	"recommend_als_iterations":     "recommend.als.iterations",
	"recommend_als_regularization": "recommend.als.regularization",
	"recommend_als_alpha":          "recommend.als.alpha",
	"recommend_als_seed":           "recommend.als.seed",
	"recommend_als_workers":        "recommend.als.num_workers",

	// Storage
	"model_dir":     "storage.model_dir",
	"registry_dir":  "storage.registry_dir",
	"keep_versions": "storage.keep_versions",

	// Data
	"transactions_path": "data.transactions_path",
	"duckdb_path":       "data.duckdb_path",
	"duckdb_threads":    "data.threads",
	"duckdb_max_memory": "data.max_memory",
	"artifacts_dir":     "data.artifacts_dir",
	"artifact_format":   "data.artifact_format",

	// Events
	"nats_url":           "events.nats_url",
	"nats_embedded":      "events.embedded_nats",
	"nats_embedded_host": "events.embedded_host",
	"nats_embedded_port": "events.embedded_port",
	"events_topic":       "events.topic",

	// Reload
	"reload_poll_interval":    "reload.poll_interval",
	"reload_min_interval":     "reload.min_interval",
	"reload_breaker_failures": "reload.breaker_failures",
	"reload_breaker_timeout":  "reload.breaker_timeout",
}

// envTransformFunc maps an environment variable to its koanf path.
// Unmapped variables return "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
