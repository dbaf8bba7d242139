// Package app provides application initialization and wiring.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jobrunner/stratum/internal/adapters/gdal"
	"github.com/jobrunner/stratum/internal/adapters/inventory"
	"github.com/jobrunner/stratum/internal/adapters/metrics"
	"github.com/jobrunner/stratum/internal/adapters/status"
	"github.com/jobrunner/stratum/internal/adapters/storage"
	"github.com/jobrunner/stratum/internal/adapters/watcher"
	"github.com/jobrunner/stratum/internal/application"
	"github.com/jobrunner/stratum/internal/classify"
	"github.com/jobrunner/stratum/internal/config"
	"github.com/jobrunner/stratum/internal/domain"
	"github.com/jobrunner/stratum/internal/ports/output"
)

// App holds all application components.
type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	Store        *inventory.Store
	Storage      output.ObjectStorage
	Classifier   *classify.Classifier
	Progress     *application.Progress
	Metrics      *metrics.Collector
	StatusServer *status.Server
	Watcher      *watcher.Watcher

	Inventory *application.InventoryService
	Convert   *application.ConvertService
	Stac      *application.StacService
	Publish   *application.PublishService
}

// New creates and initializes a new application.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Progress: application.NewProgress(),
	}

	var metricsCollector output.MetricsCollector = &output.NoOpMetrics{}
	if cfg.Status.Enabled {
		app.Metrics = metrics.NewCollector("stratum")
		metricsCollector = app.Metrics
		app.StatusServer = status.NewServer(
			status.Config{
				Host:         cfg.Status.Host,
				Port:         cfg.Status.Port,
				ReadTimeout:  cfg.Status.ReadTimeout,
				WriteTimeout: cfg.Status.WriteTimeout,
			},
			app.Progress,
			metrics.Handler(),
			logger,
		)
	}

	store, err := inventory.Open(cfg.Pipeline.Database)
	if err != nil {
		return nil, fmt.Errorf("opening inventory database: %w", err)
	}
	app.Store = store

	remote, err := initStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	app.Storage = remote

	rules := classify.DefaultRuleset()
	if cfg.Taxonomy.RulesFile != "" {
		rules, err = classify.LoadRuleset(cfg.Taxonomy.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("loading taxonomy rules: %w", err)
		}
	}
	app.Classifier = classify.New(rules)

	runner := &gdal.ExecRunner{}
	grid := gridConfig(cfg.Grid)

	app.Inventory = application.NewInventoryService(
		gdal.NewReader(runner),
		store,
		app.Classifier,
		metricsCollector,
		app.Progress,
		logger,
		application.InventoryConfig{
			RootDir:    cfg.Pipeline.RootDir,
			Extension:  cfg.Pipeline.Extension,
			SampleSize: cfg.Pipeline.SampleSize,
			SampleSeed: cfg.Pipeline.SampleSeed,
			BatchSize:  cfg.Pipeline.BatchSize,
			ExportDir:  cfg.Pipeline.ExportDir,
			Grid:       grid,
		},
	)

	app.Convert = application.NewConvertService(
		gdal.NewWriter(runner),
		store,
		metricsCollector,
		app.Progress,
		logger,
		application.ConvertConfig{
			OutputDir:   cfg.COG.OutputDir,
			Layout:      cfg.COG.Layout,
			TileSize:    cfg.COG.TileSize,
			Compression: cfg.COG.Compression,
			Predictor:   cfg.COG.Predictor,
			NumThreads:  cfg.COG.NumThreads,
			FlushEvery:  cfg.COG.FlushEvery,
			ExportDir:   cfg.Pipeline.ExportDir,
			Grid:        grid,
		},
	)

	var stacDatetime time.Time
	if cfg.Stac.Datetime != "" {
		stacDatetime, err = time.Parse(time.RFC3339, cfg.Stac.Datetime)
		if err != nil {
			return nil, fmt.Errorf("parsing stac datetime: %w", err)
		}
	}

	var prober output.ObjectStorage
	if cfg.Stac.AssetMode == application.AssetModeHybrid {
		prober = remote
	}
	app.Stac = application.NewStacService(
		store,
		gdal.NewTransformer(runner),
		prober,
		metricsCollector,
		app.Progress,
		logger,
		application.StacConfig{
			OutputDir:      cfg.Stac.OutputDir,
			CatalogID:      cfg.Stac.CatalogID,
			CatalogDesc:    cfg.Stac.CatalogDesc,
			CollectionID:   cfg.Stac.CollectionID,
			CollectionDesc: cfg.Stac.CollectionDesc,
			License:        cfg.Stac.License,
			AssetMode:      cfg.Stac.AssetMode,
			Datetime:       stacDatetime,
			COGDir:         cfg.COG.OutputDir,
			Layout:         cfg.COG.Layout,
			Grid:           grid,
		},
	)

	app.Publish = application.NewPublishService(
		store,
		remote,
		metricsCollector,
		app.Progress,
		logger,
		application.PublishConfig{
			COGDir: cfg.COG.OutputDir,
			Layout: cfg.COG.Layout,
			Grid:   grid,
		},
	)

	return app, nil
}

// RunAll executes the full pipeline in stage order. Publish only runs when
// the configured storage is remote.
func (a *App) RunAll(ctx context.Context) error {
	if _, err := a.Inventory.Run(ctx); err != nil {
		return err
	}
	if _, err := a.Convert.Run(ctx); err != nil {
		return err
	}
	if _, err := a.Stac.Run(ctx); err != nil {
		return err
	}
	if output.StorageType(a.Config.Storage.Type) != output.StorageTypeLocal {
		if _, err := a.Publish.Run(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Watch watches the raster root and reruns the inventory stage when new
// rasters settle. The resume check makes the rerun incremental, so the
// handler just triggers a full pass.
func (a *App) Watch(ctx context.Context) error {
	w, err := watcher.New(
		watcher.Config{
			Root:      a.Config.Pipeline.RootDir,
			Extension: a.Config.Pipeline.Extension,
			Debounce:  a.Config.Watch.Debounce,
		},
		a.handleFileEvent,
		a.Logger,
	)
	if err != nil {
		return fmt.Errorf("initializing file watcher: %w", err)
	}
	a.Watcher = w

	if err := w.Start(ctx); err != nil {
		return err
	}

	a.Logger.Info("watching for new rasters", "root", a.Config.Pipeline.RootDir)
	<-ctx.Done()
	return w.Stop()
}

// handleFileEvent reruns the inventory stage after a raster event.
func (a *App) handleFileEvent(ctx context.Context, event watcher.Event) error {
	if event.Operation == watcher.OpDelete {
		// Rows are append-only; a deleted source just stops matching on disk.
		a.Logger.Warn("raster removed, inventory row left in place", "path", event.Path)
		return nil
	}
	_, err := a.Inventory.Run(ctx)
	return err
}

// Close releases all application resources.
func (a *App) Close() error {
	if a.Watcher != nil {
		_ = a.Watcher.Stop()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// gridConfig maps the configured grid parameters onto the validation config.
func gridConfig(cfg config.GridConfig) application.GridConfig {
	return application.GridConfig{
		Mode: cfg.Mode,
		Grid: domain.ExpectedGrid{
			CRSCode:   cfg.CRSCode,
			ResX:      cfg.ResX,
			ResY:      cfg.ResY,
			XMin:      cfg.XMin,
			XMax:      cfg.XMax,
			YMin:      cfg.YMin,
			YMax:      cfg.YMax,
			Tolerance: cfg.Tolerance,
		},
	}
}

// initStorage initializes the appropriate storage adapter.
func initStorage(ctx context.Context, cfg config.StorageConfig) (output.ObjectStorage, error) {
	switch output.StorageType(cfg.Type) {
	case output.StorageTypeLocal:
		return storage.NewLocalStorage(cfg.LocalPath, cfg.BaseURL), nil

	case output.StorageTypeS3:
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PublicBaseURL:   cfg.S3.PublicBaseURL,
		})

	case output.StorageTypeAzure:
		return storage.NewAzureStorage(storage.AzureConfig{
			Container:        cfg.Azure.Container,
			AccountName:      cfg.Azure.AccountName,
			AccountKey:       cfg.Azure.AccountKey,
			ConnectionString: cfg.Azure.ConnectionString,
			Prefix:           cfg.Azure.Prefix,
			PublicBaseURL:    cfg.Azure.PublicBaseURL,
		})

	case output.StorageTypeHTTP:
		return storage.NewHTTPStorage(storage.HTTPConfig{
			BaseURL:   cfg.HTTP.BaseURL,
			IndexFile: cfg.HTTP.IndexFile,
			Timeout:   cfg.HTTP.Timeout,
			Username:  cfg.HTTP.Username,
			Password:  cfg.HTTP.Password,
		}), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
