// Package main provides the entry point for the Stratum raster pipeline.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jobrunner/stratum/internal/app"
	"github.com/jobrunner/stratum/internal/config"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var cfgFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stratum",
	Short: "Stratum - Raster Inventory and COG Pipeline",
	Long: `Stratum is a batch pipeline for large raster collections.

It walks a raster tree, extracts and validates GeoTIFF metadata into a
resumable inventory, converts the consistent files to cloud-optimized
GeoTIFFs, and emits a STAC catalog for the results.

Features:
  - Resumable metadata inventory with grid validation
  - Cloud-optimized GeoTIFF conversion via GDAL
  - STAC 1.0.0 catalog, collection, and item documents
  - Multiple storage backends (local, AWS S3, Azure, HTTP)
  - Watch mode for incremental ingestion
  - Prometheus metrics and a progress endpoint`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("Stratum %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Build Date: %s\n", buildDate)
	},
}

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Scan the raster tree and build the metadata inventory",
	RunE: runStage(func(ctx context.Context, a *app.App) error {
		_, err := a.Inventory.Run(ctx)
		return err
	}),
}

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert consistent rasters to cloud-optimized GeoTIFFs",
	RunE: runStage(func(ctx context.Context, a *app.App) error {
		_, err := a.Convert.Run(ctx)
		return err
	}),
}

var stacCmd = &cobra.Command{
	Use:   "stac",
	Short: "Emit the STAC catalog for converted rasters",
	RunE: runStage(func(ctx context.Context, a *app.App) error {
		_, err := a.Stac.Run(ctx)
		return err
	}),
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Upload converted rasters to object storage",
	RunE: runStage(func(ctx context.Context, a *app.App) error {
		_, err := a.Publish.Run(ctx)
		return err
	}),
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: inventory, convert, stac, publish",
	RunE: runStage(func(ctx context.Context, a *app.App) error {
		return a.RunAll(ctx)
	}),
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the raster tree and inventory new files as they arrive",
	RunE: runStage(func(ctx context.Context, a *app.App) error {
		return a.Watch(ctx)
	}),
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, text)")

	// Pipeline flags
	rootCmd.PersistentFlags().String("root-dir", "./data", "raster directory tree to scan")
	rootCmd.PersistentFlags().String("database", "./workspace/inventory.db", "inventory database path")
	rootCmd.PersistentFlags().String("export-dir", "./workspace/export", "directory for CSV exports")
	rootCmd.PersistentFlags().Int("sample-size", 0, "pixels to sample per file (0 = headers only)")

	// Grid flags
	rootCmd.PersistentFlags().String("grid-mode", "fixed", "grid validation mode (fixed, inferred)")

	// Conversion flags
	rootCmd.PersistentFlags().String("cog-dir", "./workspace/cog", "COG output directory")
	rootCmd.PersistentFlags().String("cog-layout", "flat", "COG output layout (flat, nested)")

	// Storage flags
	rootCmd.PersistentFlags().String("storage-type", "local", "storage type (local, s3, azure, http)")

	// Status server flags
	rootCmd.PersistentFlags().Bool("status", false, "serve progress and metrics over HTTP")
	rootCmd.PersistentFlags().Int("status-port", 8080, "status server port")

	// Bind flags to viper
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("pipeline.root_dir", rootCmd.PersistentFlags().Lookup("root-dir"))
	_ = viper.BindPFlag("pipeline.database", rootCmd.PersistentFlags().Lookup("database"))
	_ = viper.BindPFlag("pipeline.export_dir", rootCmd.PersistentFlags().Lookup("export-dir"))
	_ = viper.BindPFlag("pipeline.sample_size", rootCmd.PersistentFlags().Lookup("sample-size"))
	_ = viper.BindPFlag("grid.mode", rootCmd.PersistentFlags().Lookup("grid-mode"))
	_ = viper.BindPFlag("cog.output_dir", rootCmd.PersistentFlags().Lookup("cog-dir"))
	_ = viper.BindPFlag("cog.layout", rootCmd.PersistentFlags().Lookup("cog-layout"))
	_ = viper.BindPFlag("storage.type", rootCmd.PersistentFlags().Lookup("storage-type"))
	_ = viper.BindPFlag("status.enabled", rootCmd.PersistentFlags().Lookup("status"))
	_ = viper.BindPFlag("status.port", rootCmd.PersistentFlags().Lookup("status-port"))

	rootCmd.AddCommand(inventoryCmd, convertCmd, stacCmd, publishCmd, runCmd, watchCmd, versionCmd)
}

func initConfig() {
	config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// runStage wraps a stage entry point with config loading, signal handling,
// and the optional status server.
func runStage(stage func(ctx context.Context, a *app.App) error) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		logger := setupLogger(cfg.Logging)
		slog.SetDefault(logger)

		logger.Info("starting stratum",
			"version", version,
			"root_dir", cfg.Pipeline.RootDir,
			"storage_type", cfg.Storage.Type,
		)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigChan
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		}()

		application, err := app.New(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("initializing application: %w", err)
		}
		defer func() {
			if err := application.Close(); err != nil {
				logger.Error("close error", "error", err)
			}
		}()

		if application.StatusServer != nil {
			go func() {
				if err := application.StatusServer.Start(); err != nil && err != http.ErrServerClosed {
					logger.Error("status server error", "error", err)
				}
			}()
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := application.StatusServer.Shutdown(shutdownCtx); err != nil {
					logger.Error("status server shutdown error", "error", err)
				}
			}()
		}

		return stage(ctx, application)
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(time.Now().UTC().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
