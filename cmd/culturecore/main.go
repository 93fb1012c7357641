// Command culturecore runs the process-execution record server for cell
// culture manufacturing.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"culturecore/internal/blob"
	"culturecore/internal/config"
	"culturecore/internal/core"
	"culturecore/internal/httpapi"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "culturecore",
		Short: "Cell culture process execution record system",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to culturecore.yaml")
	root.AddCommand(newServeCommand(), newExportCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Logging.Level)

			svc, err := buildService(cfg, logger)
			if err != nil {
				return err
			}
			bundles, err := openBundleStore(cmd.Context(), cfg.Blob)
			if err != nil {
				return err
			}

			server := httpapi.New(svc,
				httpapi.WithBundleStore(bundles),
				httpapi.WithLogger(core.NewSlogLogger(logger)),
			)
			logger.Info("serving", "addr", cfg.Server.Addr, "storage", cfg.Storage.Driver, "blob", cfg.Blob.Driver)
			return server.Run(cfg.Server.Addr)
		},
	}
}

func newExportCommand() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "export <culture-id>",
		Short: "Export a culture's audit bundle to the configured blob store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Logging.Level)
			svc, err := buildService(cfg, logger)
			if err != nil {
				return err
			}
			bundles, err := openBundleStore(cmd.Context(), cfg.Blob)
			if err != nil {
				return err
			}
			info, err := svc.ExportAuditBundle(cmd.Context(), bundles, args[0], actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %s (%d bytes)\n", info.Key, info.Size)
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "cli", "acting user recorded on the bundle")
	return cmd
}

func buildService(cfg config.Config, logger *slog.Logger) (*core.Service, error) {
	applyStorageEnv(cfg.Storage)
	store, err := core.OpenPersistentStore(core.NewDefaultRulesEngine())
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	metrics, err := openMetricsRecorder(cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	opts := []core.ServiceOption{
		core.WithLogger(core.NewSlogLogger(logger)),
		core.WithMetricsRecorder(metrics),
		core.WithNotifier(core.LogNotifier{Logger: core.NewSlogLogger(logger)}),
		core.WithQualityHoldOnCriticalFailure(cfg.Quality.HoldOnCriticalFailure),
	}
	if cfg.Observability.TraceLog != "" {
		traceFile, err := os.OpenFile(cfg.Observability.TraceLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open trace log: %w", err)
		}
		opts = append(opts, core.WithTracer(core.NewJSONTracer(traceFile)))
	}
	return core.NewService(store, opts...), nil
}

func openMetricsRecorder(cfg config.ObservabilityConfig) (core.MetricsRecorder, error) {
	if cfg.MetricsDriver == "expvar" {
		return core.NewExpvarMetricsRecorder(""), nil
	}
	recorder, err := core.NewPrometheusMetricsRecorder(nil)
	if err != nil {
		return nil, err
	}
	return recorder, nil
}

// applyStorageEnv projects file config onto the env variables the storage
// factory reads, without clobbering explicit env overrides.
func applyStorageEnv(storage config.StorageConfig) {
	setDefaultEnv("CULTURECORE_STORAGE_DRIVER", storage.Driver)
	setDefaultEnv("CULTURECORE_SQLITE_PATH", storage.SQLitePath)
	setDefaultEnv("CULTURECORE_POSTGRES_DSN", storage.PostgresDSN)
}

func setDefaultEnv(key, value string) {
	if value == "" {
		return
	}
	if _, ok := os.LookupEnv(key); !ok {
		os.Setenv(key, value)
	}
}

func openBundleStore(ctx context.Context, cfg config.BlobConfig) (blob.Store, error) {
	switch blob.Driver(cfg.Driver) {
	case blob.DriverFilesystem:
		return blob.NewFilesystem(cfg.FSRoot)
	case blob.DriverS3:
		return blob.NewS3(ctx, blob.S3Config{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
		})
	case blob.DriverMemory:
		return blob.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
