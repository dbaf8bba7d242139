package application

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jobrunner/stratum/internal/adapters/inventory"
	"github.com/jobrunner/stratum/internal/domain"
	"github.com/jobrunner/stratum/internal/ports/output"
)

// StageConvert is the metrics/progress label of the conversion stage.
const StageConvert = "convert"

// Output directory layouts.
const (
	LayoutFlat   = "flat"   // <dir>/<canonical_name>
	LayoutNested = "nested" // <dir>/<data_type>/<domain>/<canonical_name>
)

// ConvertConfig holds the conversion stage settings.
type ConvertConfig struct {
	OutputDir   string
	Layout      string // flat or nested
	TileSize    int
	Compression string
	Predictor   bool
	NumThreads  int
	FlushEvery  int    // Log rows per flush, default 25
	ExportDir   string // Where the conversion log CSV is written
	Grid        GridConfig
}

func (c *ConvertConfig) flushEvery() int {
	if c.FlushEvery > 0 {
		return c.FlushEvery
	}
	return 25
}

// ConvertSummary reports the status counts of one conversion run.
type ConvertSummary struct {
	Converted int
	Skipped   int
	Failed    int
}

// ConvertService turns every consistent inventory row into a
// cloud-optimized GeoTIFF.
type ConvertService struct {
	writer   output.COGWriter
	store    output.InventoryStore
	metrics  output.MetricsCollector
	progress *Progress
	logger   *slog.Logger
	cfg      ConvertConfig
}

// NewConvertService creates a conversion service.
func NewConvertService(
	writer output.COGWriter,
	store output.InventoryStore,
	metrics output.MetricsCollector,
	progress *Progress,
	logger *slog.Logger,
	cfg ConvertConfig,
) *ConvertService {
	return &ConvertService{
		writer:   writer,
		store:    store,
		metrics:  metrics,
		progress: progress,
		logger:   logger,
		cfg:      cfg,
	}
}

// COGPath computes where the COG for a record goes under the given layout.
// The conversion and catalog stages share this so they agree on locations.
func COGPath(dir, layout string, rec *domain.RasterFileRecord) string {
	if layout == LayoutNested {
		return filepath.Join(dir, string(rec.DataType), rec.Domain, rec.CanonicalName)
	}
	return filepath.Join(dir, rec.CanonicalName)
}

// OutputPath computes where the COG for a record goes.
func (s *ConvertService) OutputPath(rec *domain.RasterFileRecord) string {
	return COGPath(s.cfg.OutputDir, s.cfg.Layout, rec)
}

// Run converts all consistent inventory rows in table order. Conversions
// are idempotent: an existing output is never overwritten. One encoder
// failure degrades that row to a failed log entry and the loop continues.
func (s *ConvertService) Run(ctx context.Context) (*ConvertSummary, error) {
	records, err := consistentRecords(ctx, s.store, s.cfg.Grid, "the inventory database")
	if err != nil {
		return nil, err
	}

	s.progress.Begin(StageConvert, len(records))
	summary := &ConvertSummary{}
	flushEvery := s.cfg.flushEvery()

	// Canonical names are collision-safe only across masked/unmasked
	// variants; two domains producing the same basename would silently
	// overwrite each other, so duplicates fail loudly instead.
	seen := make(map[string]string, len(records))

	buffer := make([]domain.COGOutputRecord, 0, flushEvery)
	flush := func() error {
		if err := s.store.AppendLog(ctx, buffer); err != nil {
			return err
		}
		buffer = buffer[:0]
		return nil
	}

	for i := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := &records[i]

		start := time.Now()
		row := s.convertOne(ctx, rec, seen)
		s.metrics.ObserveFileDuration(StageConvert, time.Since(start))
		s.metrics.IncFilesProcessed(StageConvert, string(row.Status))
		s.progress.Step(StageConvert, rec.FilePath, row.Status == domain.StatusFailed, row.Status == domain.StatusSkippedExists)

		switch row.Status {
		case domain.StatusConverted:
			summary.Converted++
		case domain.StatusSkippedExists:
			summary.Skipped++
		case domain.StatusFailed:
			summary.Failed++
			s.logger.Warn("conversion failed", "path", rec.FilePath, "error", row.Message)
		}
		s.logger.Info("converted", "path", rec.FilePath, "n", i+1, "total", len(records), "status", row.Status)

		buffer = append(buffer, row)
		if len(buffer) >= flushEvery {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}

	if err := flush(); err != nil {
		return nil, err
	}

	if s.cfg.ExportDir != "" {
		if err := os.MkdirAll(s.cfg.ExportDir, 0750); err != nil {
			return nil, err
		}
		full, err := s.store.LoadLog(ctx)
		if err != nil {
			return nil, err
		}
		if err := inventory.WriteLogCSV(filepath.Join(s.cfg.ExportDir, "cog_log.csv"), full); err != nil {
			return nil, err
		}
	}

	s.logger.Info("conversion complete",
		"converted", summary.Converted,
		"skipped_exists", summary.Skipped,
		"failed", summary.Failed,
	)
	return summary, nil
}

// convertOne handles a single row: skip, collide, or convert.
func (s *ConvertService) convertOne(ctx context.Context, rec *domain.RasterFileRecord, seen map[string]string) domain.COGOutputRecord {
	row := domain.COGOutputRecord{
		SourcePath: rec.FilePath,
		DataType:   rec.DataType,
		Domain:     rec.Domain,
		Dimension:  rec.Dimension,
	}

	outPath := s.OutputPath(rec)
	row.OutputPath = outPath

	if prev, dup := seen[outPath]; dup {
		row.Status = domain.StatusFailed
		row.Message = "output name collides with " + prev
		return row
	}
	seen[outPath] = rec.FilePath

	if _, err := os.Stat(outPath); err == nil {
		row.Status = domain.StatusSkippedExists
		return row
	}

	row.Resampling = domain.ChooseResampling(rec.Dimension, rec.PixelType)

	err := s.writer.WriteCOG(ctx, rec.FilePath, outPath, output.COGOptions{
		TileSize:    s.cfg.TileSize,
		Compression: s.cfg.Compression,
		Predictor:   s.cfg.Predictor,
		Resampling:  row.Resampling,
		NumThreads:  s.cfg.NumThreads,
	})
	if err != nil {
		row.Status = domain.StatusFailed
		row.Message = err.Error()
		return row
	}

	row.Status = domain.StatusConverted
	return row
}
