package application

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/jobrunner/stratum/internal/ports/output"
)

// StagePublish is the metrics/progress label of the publish stage.
const StagePublish = "publish"

// PublishConfig holds the publish stage settings.
type PublishConfig struct {
	COGDir string
	Layout string // Must match the conversion layout
	Grid   GridConfig
}

// PublishSummary reports what one publish run did.
type PublishSummary struct {
	Uploaded int
	Skipped  int // Already on the remote host
	Missing  int // Rows whose COG is not on disk yet
	Failed   int
}

// PublishService uploads converted COGs to the configured object storage.
// Uploads are idempotent: objects already on the remote are not re-sent.
type PublishService struct {
	store    output.InventoryStore
	remote   output.ObjectStorage
	metrics  output.MetricsCollector
	progress *Progress
	logger   *slog.Logger
	cfg      PublishConfig
}

// NewPublishService creates a publish service.
func NewPublishService(
	store output.InventoryStore,
	remote output.ObjectStorage,
	metrics output.MetricsCollector,
	progress *Progress,
	logger *slog.Logger,
	cfg PublishConfig,
) *PublishService {
	return &PublishService{
		store:    store,
		remote:   remote,
		metrics:  metrics,
		progress: progress,
		logger:   logger,
		cfg:      cfg,
	}
}

// Run uploads the COG of every consistent inventory row. A failed upload
// degrades that row and the loop continues; only store errors abort.
func (s *PublishService) Run(ctx context.Context) (*PublishSummary, error) {
	records, err := consistentRecords(ctx, s.store, s.cfg.Grid, "the inventory database")
	if err != nil {
		return nil, err
	}

	s.progress.Begin(StagePublish, len(records))
	summary := &PublishSummary{}

	for i := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := &records[i]

		localPath := COGPath(s.cfg.COGDir, s.cfg.Layout, rec)
		if _, err := os.Stat(localPath); err != nil {
			summary.Missing++
			s.progress.Step(StagePublish, rec.FilePath, false, true)
			s.logger.Debug("cog not on disk yet, skipping upload", "path", localPath)
			continue
		}

		key := assetKey(s.cfg.Layout, rec)

		exists, err := s.remote.Exists(ctx, key)
		s.metrics.IncStorageOperations("exists", err == nil)
		if err == nil && exists {
			summary.Skipped++
			s.metrics.IncFilesProcessed(StagePublish, "skipped_exists")
			s.progress.Step(StagePublish, rec.FilePath, false, true)
			continue
		}

		start := time.Now()
		err = s.remote.Upload(ctx, localPath, key)
		s.metrics.ObserveStorageDuration("upload", time.Since(start))
		s.metrics.IncStorageOperations("upload", err == nil)
		if err != nil {
			summary.Failed++
			s.metrics.IncFilesProcessed(StagePublish, "failed")
			s.progress.Step(StagePublish, rec.FilePath, true, false)
			s.logger.Error("upload failed", "key", key, "error", err)
			continue
		}

		summary.Uploaded++
		s.metrics.IncFilesProcessed(StagePublish, "uploaded")
		s.progress.Step(StagePublish, rec.FilePath, false, false)
		s.logger.Info("uploaded", "key", key, "n", i+1, "total", len(records))
	}

	s.logger.Info("publish complete",
		"uploaded", summary.Uploaded,
		"skipped_exists", summary.Skipped,
		"missing_cog", summary.Missing,
		"failed", summary.Failed,
	)
	return summary, nil
}
