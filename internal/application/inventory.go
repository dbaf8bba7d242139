package application

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jobrunner/stratum/internal/adapters/inventory"
	"github.com/jobrunner/stratum/internal/classify"
	"github.com/jobrunner/stratum/internal/domain"
	"github.com/jobrunner/stratum/internal/ports/output"
)

// StageInventory is the metrics/progress label of the inventory stage.
const StageInventory = "inventory"

// InventoryConfig holds the inventory stage settings.
type InventoryConfig struct {
	RootDir    string // Raster directory tree to scan
	Extension  string // Raster file extension, default .tif
	SampleSize int    // Pixels to sample per file, 0 = headers only
	SampleSeed int64  // Seed for the deterministic pixel sample
	BatchSize  int    // Records per flush, 0 = mode-dependent default
	ExportDir  string // Where partition and breakdown CSVs are written
	Grid       GridConfig
}

// batchSize returns the configured flush interval. Sampling reads are
// expensive, so the default batch is small enough that a crash loses
// little work.
func (c *InventoryConfig) batchSize() int {
	if c.BatchSize > 0 {
		return c.BatchSize
	}
	if c.SampleSize > 0 {
		return 10
	}
	return 50
}

func (c *InventoryConfig) extension() string {
	if c.Extension == "" {
		return ".tif"
	}
	return c.Extension
}

// InventorySummary reports what one inventory run did.
type InventorySummary struct {
	Discovered       int // Processable files found under the root
	AlreadyProcessed int // Filtered out by the resume check
	Processed        int // Newly extracted this run
	Excluded         int // Dropped by the classifier
	Partitions       domain.InventoryPartitions
}

// InventoryService walks the raster tree, extracts and validates metadata
// for every processable file, and maintains the persistent inventory.
type InventoryService struct {
	reader     output.RasterReader
	store      output.InventoryStore
	classifier *classify.Classifier
	metrics    output.MetricsCollector
	progress   *Progress
	logger     *slog.Logger
	cfg        InventoryConfig
}

// NewInventoryService creates an inventory service.
func NewInventoryService(
	reader output.RasterReader,
	store output.InventoryStore,
	classifier *classify.Classifier,
	metrics output.MetricsCollector,
	progress *Progress,
	logger *slog.Logger,
	cfg InventoryConfig,
) *InventoryService {
	return &InventoryService{
		reader:     reader,
		store:      store,
		classifier: classifier,
		metrics:    metrics,
		progress:   progress,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run executes one inventory pass: discover, resume-filter, process in
// batches, then finalize the partitions. A file that cannot be read
// degrades to a failed record; only configuration problems abort the run.
func (s *InventoryService) Run(ctx context.Context) (*InventorySummary, error) {
	summary := &InventorySummary{}

	discovered, excluded, err := s.discover()
	if err != nil {
		return nil, err
	}
	summary.Discovered = len(discovered)
	summary.Excluded = excluded

	remaining, err := s.resumeFilter(ctx, discovered)
	if err != nil {
		return nil, err
	}
	summary.AlreadyProcessed = len(discovered) - len(remaining)

	if len(remaining) == 0 {
		s.logger.Info("inventory up to date, nothing to process",
			"discovered", summary.Discovered)
	} else if err := s.process(ctx, remaining, summary); err != nil {
		return nil, err
	}

	parts, err := s.finalize(ctx)
	if err != nil {
		return nil, err
	}
	summary.Partitions = parts

	s.logger.Info("inventory complete",
		"discovered", summary.Discovered,
		"resumed", summary.AlreadyProcessed,
		"processed", summary.Processed,
		"consistent", len(parts.Consistent),
		"inconsistent", len(parts.Inconsistent),
		"failed", len(parts.Failed),
	)
	return summary, nil
}

// discover enumerates processable raster files under the root in walk
// order, dropping files the classifier excludes.
func (s *InventoryService) discover() ([]string, int, error) {
	if _, err := os.Stat(s.cfg.RootDir); err != nil {
		return nil, 0, &domain.ConfigError{Field: "pipeline.root_dir", Message: err.Error()}
	}

	ext := strings.ToLower(s.cfg.extension())
	var paths []string
	excluded := 0

	err := filepath.WalkDir(s.cfg.RootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ext) {
			return nil
		}
		if s.classifier.DataType(path) == domain.DataTypeExclude {
			excluded++
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return paths, excluded, nil
}

// resumeFilter removes paths already present in the inventory.
func (s *InventoryService) resumeFilter(ctx context.Context, discovered []string) ([]string, error) {
	processed, err := s.store.ProcessedPaths(ctx)
	if err != nil {
		return nil, err
	}
	remaining := make([]string, 0, len(discovered))
	for _, p := range discovered {
		if _, ok := processed[p]; !ok {
			remaining = append(remaining, p)
		}
	}
	return remaining, nil
}

// process extracts every remaining file, flushing the buffer to the store
// at the batch interval so a crash loses at most one partial batch.
func (s *InventoryService) process(ctx context.Context, remaining []string, summary *InventorySummary) error {
	batchSize := s.cfg.batchSize()
	s.progress.Begin(StageInventory, len(remaining))

	buffer := make([]domain.RasterFileRecord, 0, batchSize)
	for i, path := range remaining {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		rec := s.extract(ctx, path)
		s.metrics.ObserveFileDuration(StageInventory, time.Since(start))

		status := "ok"
		if !rec.ReadSucceeded {
			status = "read_failed"
			s.logger.Warn("raster read failed", "path", path, "error", rec.ReadError)
		}
		s.metrics.IncFilesProcessed(StageInventory, status)
		s.progress.Step(StageInventory, path, !rec.ReadSucceeded, false)
		s.logger.Info("extracted", "path", path, "n", i+1, "total", len(remaining), "status", status)

		buffer = append(buffer, rec)
		summary.Processed++

		if len(buffer) >= batchSize {
			if err := s.store.AppendRecords(ctx, buffer); err != nil {
				return err
			}
			buffer = buffer[:0]
		}
	}

	return s.store.AppendRecords(ctx, buffer)
}

// extract reads one raster into a record. All reader errors are captured on
// the record; this never fails.
func (s *InventoryService) extract(ctx context.Context, path string) domain.RasterFileRecord {
	c := s.classifier.Classify(path)
	rec := domain.RasterFileRecord{
		FilePath:      path,
		FileName:      filepath.Base(path),
		DataType:      c.DataType,
		Domain:        c.Domain,
		Dimension:     c.Dimension,
		CanonicalName: c.CanonicalName,
	}

	info, err := s.reader.Info(ctx, path)
	if err != nil {
		rec.MarkReadFailure(err)
		return rec
	}

	rec.Rows = info.Rows
	rec.Cols = info.Cols
	rec.CellCount = int64(info.Rows) * int64(info.Cols)
	rec.BandCount = info.BandCount
	rec.ResX = info.ResX
	rec.ResY = info.ResY
	rec.CRSCode = info.CRSCode
	rec.CRSWKT = info.CRSWKT
	rec.XMin = info.Extent.MinX
	rec.XMax = info.Extent.MaxX
	rec.YMin = info.Extent.MinY
	rec.YMax = info.Extent.MaxY
	rec.PixelType = info.PixelType
	rec.FileSizeMB = info.FileSizeMB

	if s.cfg.SampleSize > 0 {
		stats, err := s.reader.Sample(ctx, path, s.cfg.SampleSize, s.cfg.SampleSeed)
		if err != nil {
			rec.MarkReadFailure(err)
			return rec
		}
		rec.Stats = stats
	}

	rec.ReadSucceeded = true

	if s.cfg.Grid.Mode != GridModeInferred {
		passes, reason := s.cfg.Grid.Grid.Validate(&rec)
		rec.MarkValidated(passes, reason)
	}
	return rec
}

// finalize reloads the complete inventory, partitions it, and writes the
// derived outputs. The consistent partition is always written as the
// authoritative downstream input; diagnostic files appear only when there
// is something to diagnose.
func (s *InventoryService) finalize(ctx context.Context) (domain.InventoryPartitions, error) {
	parts, err := loadPartitions(ctx, s.store, s.cfg.Grid)
	if err != nil && !errors.Is(err, domain.ErrNoUsableRecords) {
		return domain.InventoryPartitions{}, err
	}

	s.metrics.SetPartitionSize("consistent", len(parts.Consistent))
	s.metrics.SetPartitionSize("inconsistent", len(parts.Inconsistent))
	s.metrics.SetPartitionSize("failed", len(parts.Failed))

	if s.cfg.ExportDir == "" {
		return parts, nil
	}
	if err := os.MkdirAll(s.cfg.ExportDir, 0750); err != nil {
		return domain.InventoryPartitions{}, err
	}

	exportPath := func(name string) string { return filepath.Join(s.cfg.ExportDir, name) }

	if err := inventory.WriteRecordsCSV(exportPath("consistent.csv"), parts.Consistent); err != nil {
		return domain.InventoryPartitions{}, err
	}
	if len(parts.Inconsistent) > 0 {
		if err := inventory.WriteRecordsCSV(exportPath("inconsistent.csv"), parts.Inconsistent); err != nil {
			return domain.InventoryPartitions{}, err
		}
	}
	if len(parts.Inconsistent) > 0 || len(parts.Failed) > 0 {
		all := make([]domain.RasterFileRecord, 0, parts.Total())
		all = append(all, parts.Consistent...)
		all = append(all, parts.Inconsistent...)
		all = append(all, parts.Failed...)
		if err := inventory.WriteRecordsCSV(exportPath("inventory_full.csv"), all); err != nil {
			return domain.InventoryPartitions{}, err
		}
	}

	// Breakdown tables support manual inspection of validation failures;
	// they only matter in the full-statistics configuration.
	if s.cfg.SampleSize > 0 {
		records := append(append(append([]domain.RasterFileRecord{},
			parts.Consistent...), parts.Inconsistent...), parts.Failed...)
		if err := inventory.WriteResolutionBreakdown(exportPath("resolution_counts.csv"), records); err != nil {
			return domain.InventoryPartitions{}, err
		}
		if err := inventory.WriteCRSBreakdown(exportPath("crs_counts.csv"), records); err != nil {
			return domain.InventoryPartitions{}, err
		}
		if err := inventory.WriteExtentBreakdown(exportPath("extent_counts.csv"), records); err != nil {
			return domain.InventoryPartitions{}, err
		}
	}

	return parts, nil
}
