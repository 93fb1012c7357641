package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-matter", "..", "culturecore.yaml"))
	require.Error(t, err, "explicit missing path must error")

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "fs", cfg.Blob.Driver)
	assert.False(t, cfg.Quality.HoldOnCriticalFailure)
	assert.Equal(t, "prometheus", cfg.Observability.MetricsDriver)
	assert.Empty(t, cfg.Observability.TraceLog)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "culturecore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
storage:
  driver: postgres
  postgres_dsn: postgres://db/culturecore
quality:
  hold_on_critical_failure: true
observability:
  metrics_driver: expvar
  trace_log: /var/log/culturecore-trace.jsonl
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "postgres://db/culturecore", cfg.Storage.PostgresDSN)
	assert.True(t, cfg.Quality.HoldOnCriticalFailure)
	assert.Equal(t, "expvar", cfg.Observability.MetricsDriver)
	assert.Equal(t, "/var/log/culturecore-trace.jsonl", cfg.Observability.TraceLog)
	// untouched sections keep their defaults
	assert.Equal(t, "fs", cfg.Blob.Driver)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "culturecore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  driver: sqlite\n"), 0o600))

	t.Setenv("CULTURECORE_STORAGE_DRIVER", "memory")
	t.Setenv("CULTURECORE_SERVER_ADDR", ":7070")
	t.Setenv("CULTURECORE_QUALITY_HOLD_ON_CRITICAL_FAILURE", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.True(t, cfg.Quality.HoldOnCriticalFailure)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"bad storage driver", "storage:\n  driver: oracle\n"},
		{"bad blob driver", "blob:\n  driver: tape\n"},
		{"s3 without bucket", "blob:\n  driver: s3\n"},
		{"bad log level", "logging:\n  level: loud\n"},
		{"empty addr", "server:\n  addr: \"\"\n"},
		{"bad metrics driver", "observability:\n  metrics_driver: statsd\n"},
		{"malformed yaml", "storage: [\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "culturecore.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.yaml), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
