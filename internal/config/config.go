// Package config loads the culturecore server configuration from an optional
// YAML file with CULTURECORE_* environment overrides. Environment variables
// win over file values so container deployments can stay file-free.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is consulted when no explicit config path is given.
const DefaultPath = "culturecore.yaml"

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver      string `yaml:"driver"` // memory|sqlite|postgres
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// BlobConfig selects the bundle storage backend.
type BlobConfig struct {
	Driver     string `yaml:"driver"` // fs|s3|memory
	FSRoot     string `yaml:"fs_root"`
	S3Bucket   string `yaml:"s3_bucket"`
	S3Region   string `yaml:"s3_region"`
	S3Endpoint string `yaml:"s3_endpoint"`
}

// QualityConfig holds engine policy switches.
type QualityConfig struct {
	// HoldOnCriticalFailure parks a process in paused_quality_hold when a
	// critical step fails its acceptance checks, instead of advancing.
	HoldOnCriticalFailure bool `yaml:"hold_on_critical_failure"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug|info|warn|error
}

// ObservabilityConfig selects the metrics exporter and an optional trace log.
type ObservabilityConfig struct {
	// MetricsDriver picks the engine metrics exporter. prometheus serves the
	// /metrics endpoint; expvar publishes operation stats at /debug/vars.
	MetricsDriver string `yaml:"metrics_driver"` // prometheus|expvar
	// TraceLog, when set, appends one JSON line per engine operation span to
	// the named file.
	TraceLog string `yaml:"trace_log"`
}

// Config is the root configuration document.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Blob          BlobConfig          `yaml:"blob"`
	Quality       QualityConfig       `yaml:"quality"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server:  ServerConfig{Addr: ":8080"},
		Storage: StorageConfig{Driver: "sqlite", SQLitePath: "culturecore.db"},
		Blob:    BlobConfig{Driver: "fs", FSRoot: "./blobdata"},
		Logging: LoggingConfig{Level: "info"},
		Observability: ObservabilityConfig{
			MetricsDriver: "prometheus",
		},
	}
}

// Load reads the configuration file at path (DefaultPath when empty), merges
// it over the defaults, and applies environment overrides. A missing file is
// not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		// defaults only
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setIfEnv(&c.Server.Addr, "CULTURECORE_SERVER_ADDR")
	setIfEnv(&c.Storage.Driver, "CULTURECORE_STORAGE_DRIVER")
	setIfEnv(&c.Storage.SQLitePath, "CULTURECORE_SQLITE_PATH")
	setIfEnv(&c.Storage.PostgresDSN, "CULTURECORE_POSTGRES_DSN")
	setIfEnv(&c.Blob.Driver, "CULTURECORE_BLOB_DRIVER")
	setIfEnv(&c.Blob.FSRoot, "CULTURECORE_BLOB_FS_ROOT")
	setIfEnv(&c.Blob.S3Bucket, "CULTURECORE_BLOB_S3_BUCKET")
	setIfEnv(&c.Blob.S3Region, "CULTURECORE_BLOB_S3_REGION")
	setIfEnv(&c.Blob.S3Endpoint, "CULTURECORE_BLOB_S3_ENDPOINT")
	setIfEnv(&c.Logging.Level, "CULTURECORE_LOG_LEVEL")
	setIfEnv(&c.Observability.MetricsDriver, "CULTURECORE_METRICS_DRIVER")
	setIfEnv(&c.Observability.TraceLog, "CULTURECORE_TRACE_LOG")
	if v, ok := os.LookupEnv("CULTURECORE_QUALITY_HOLD_ON_CRITICAL_FAILURE"); ok {
		c.Quality.HoldOnCriticalFailure = strings.EqualFold(v, "true") || v == "1"
	}
}

func setIfEnv(target *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*target = v
	}
}

func (c Config) validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Blob.Driver {
	case "fs", "s3", "memory":
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	if c.Blob.Driver == "s3" && c.Blob.S3Bucket == "" {
		return fmt.Errorf("blob driver s3 requires a bucket")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	switch c.Observability.MetricsDriver {
	case "prometheus", "expvar":
	default:
		return fmt.Errorf("unknown metrics driver %q", c.Observability.MetricsDriver)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr must not be empty")
	}
	return nil
}
