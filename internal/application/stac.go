package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/jobrunner/stratum/internal/domain"
	"github.com/jobrunner/stratum/internal/ports/output"
)

// StageStac is the metrics/progress label of the catalog stage.
const StageStac = "stac"

// Asset reference policies.
const (
	AssetModeLocal  = "local"  // Always a relative path into the COG tree
	AssetModeHybrid = "hybrid" // Remote URL when the probe finds the object
)

// geographicEPSG is the target CRS of all published geometries. The working
// CRS is a fixed equal-area projection, unusable for cross-dataset
// geographic indexing.
const geographicEPSG = 4326

// StacConfig holds the catalog stage settings.
type StacConfig struct {
	OutputDir      string
	CatalogID      string
	CatalogDesc    string
	CollectionID   string
	CollectionDesc string
	License        string
	AssetMode      string    // local or hybrid
	Datetime       time.Time // Publication timestamp shared by all items; zero = now
	COGDir         string
	Layout         string // Must match the conversion layout
	Grid           GridConfig
}

// StacSummary reports what one catalog run did.
type StacSummary struct {
	Written int // New item documents
	Skipped int // Items that already existed
	Missing int // Rows whose COG is not on disk yet
	Failed  int // Rows with a data-integrity problem
}

// StacService emits the catalog, collection, and item documents for every
// converted COG.
type StacService struct {
	store    output.InventoryStore
	reproj   output.Reprojector
	remote   output.ObjectStorage // nil in local asset mode
	metrics  output.MetricsCollector
	progress *Progress
	logger   *slog.Logger
	cfg      StacConfig
}

// NewStacService creates a catalog service. remote may be nil when the
// asset mode is local.
func NewStacService(
	store output.InventoryStore,
	reproj output.Reprojector,
	remote output.ObjectStorage,
	metrics output.MetricsCollector,
	progress *Progress,
	logger *slog.Logger,
	cfg StacConfig,
) *StacService {
	return &StacService{
		store:    store,
		reproj:   reproj,
		remote:   remote,
		metrics:  metrics,
		progress: progress,
		logger:   logger,
		cfg:      cfg,
	}
}

// Run emits item documents for every consistent row whose COG exists,
// then regenerates the catalog and collection. Items are skip-on-exists;
// catalog and collection are rewritten unconditionally.
func (s *StacService) Run(ctx context.Context) (*StacSummary, error) {
	records, err := consistentRecords(ctx, s.store, s.cfg.Grid, "the inventory database")
	if err != nil {
		return nil, err
	}

	itemsDir := filepath.Join(s.cfg.OutputDir, "items")
	if err := os.MkdirAll(itemsDir, 0750); err != nil {
		return nil, err
	}

	datetime := s.cfg.Datetime
	if datetime.IsZero() {
		datetime = time.Now().UTC()
	}

	s.progress.Begin(StageStac, len(records))
	summary := &StacSummary{}
	var newBoxes []domain.BBox

	for i := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := &records[i]

		cogPath := COGPath(s.cfg.COGDir, s.cfg.Layout, rec)
		if _, err := os.Stat(cogPath); err != nil {
			summary.Missing++
			s.progress.Step(StageStac, rec.FilePath, false, true)
			s.logger.Debug("cog not on disk yet, skipping item", "path", cogPath)
			continue
		}

		itemID := itemIDFor(rec)
		itemPath := filepath.Join(itemsDir, itemID+".json")
		if _, err := os.Stat(itemPath); err == nil {
			summary.Skipped++
			s.metrics.IncFilesProcessed(StageStac, "skipped_exists")
			s.progress.Step(StageStac, rec.FilePath, false, true)
			continue
		}

		item, err := s.buildItem(ctx, rec, itemID, cogPath, datetime)
		if err != nil {
			summary.Failed++
			s.metrics.IncFilesProcessed(StageStac, "failed")
			s.progress.Step(StageStac, rec.FilePath, true, false)
			s.logger.Error("item build failed", "id", itemID, "error", err)
			continue
		}

		if err := writeJSON(itemPath, item); err != nil {
			return nil, err
		}
		newBoxes = append(newBoxes, item.BBox)
		summary.Written++
		s.metrics.IncFilesProcessed(StageStac, "written")
		s.progress.Step(StageStac, rec.FilePath, false, false)
		s.logger.Info("item written", "id", itemID, "n", i+1, "total", len(records))
	}

	if err := s.writeCatalogAndCollection(itemsDir, newBoxes, datetime); err != nil {
		return nil, err
	}

	s.logger.Info("catalog complete",
		"written", summary.Written,
		"skipped_exists", summary.Skipped,
		"missing_cog", summary.Missing,
		"failed", summary.Failed,
	)
	return summary, nil
}

// buildItem assembles one item document. A missing CRS or a non-finite
// extent is a data-integrity problem for this file, reported immediately.
func (s *StacService) buildItem(ctx context.Context, rec *domain.RasterFileRecord, itemID, cogPath string, datetime time.Time) (*domain.StacItem, error) {
	if rec.CRSCode == nil {
		return nil, &domain.StacError{ItemID: itemID, Err: fmt.Errorf("record has no crs code")}
	}
	ext := rec.Extent()
	if !ext.IsValid() || !finiteExtent(ext) {
		return nil, &domain.StacError{ItemID: itemID, Err: fmt.Errorf("degenerate or non-finite extent %+v", ext)}
	}

	bbox, ring, err := s.reproj.ReprojectExtent(ctx, ext, *rec.CRSCode, geographicEPSG)
	if err != nil {
		return nil, &domain.StacError{ItemID: itemID, Err: err}
	}

	props := map[string]any{
		"datetime":          datetime.Format(time.RFC3339),
		"stratum:data_type": string(rec.DataType),
		"stratum:domain":    rec.Domain,
		"proj:epsg":         *rec.CRSCode,
	}
	if rec.Dimension != domain.DimensionNone {
		props["stratum:dimension"] = string(rec.Dimension)
	}

	href, hosted, err := s.assetHref(ctx, rec, cogPath)
	if err != nil {
		return nil, &domain.StacError{ItemID: itemID, Err: err}
	}
	if s.cfg.AssetMode == AssetModeHybrid {
		props["stratum:hosted"] = hosted
	}

	return &domain.StacItem{
		Type:        "Feature",
		StacVersion: domain.StacVersion,
		ID:          itemID,
		Geometry:    domain.NewPolygonGeometry(ring),
		BBox:        bbox,
		Properties:  props,
		Links: []domain.StacLink{
			{Rel: "root", Href: "../catalog.json", Type: "application/json"},
			{Rel: "parent", Href: "../collection.json", Type: "application/json"},
			{Rel: "collection", Href: "../collection.json", Type: "application/json"},
		},
		Assets: map[string]domain.StacAsset{
			"data": {
				Href:  href,
				Type:  domain.COGMediaType,
				Title: rec.CanonicalName,
				Roles: []string{"data"},
			},
		},
	}, nil
}

// assetHref resolves the asset reference. In hybrid mode the remote host is
// probed for the object; probe failures fall back to the local path.
func (s *StacService) assetHref(ctx context.Context, rec *domain.RasterFileRecord, cogPath string) (string, bool, error) {
	rel, err := filepath.Rel(s.cfg.OutputDir, cogPath)
	if err != nil {
		return "", false, err
	}
	localHref := filepath.ToSlash(rel)

	if s.cfg.AssetMode != AssetModeHybrid || s.remote == nil {
		return localHref, false, nil
	}

	key := assetKey(s.cfg.Layout, rec)
	start := time.Now()
	hosted, err := s.remote.Exists(ctx, key)
	s.metrics.ObserveStorageDuration("exists", time.Since(start))
	s.metrics.IncStorageOperations("exists", err == nil)
	if err != nil || !hosted {
		return localHref, false, nil
	}
	return s.remote.URL(key), true, nil
}

// writeCatalogAndCollection regenerates the two top-level documents. The
// collection bbox is the union of every item on disk, which at this point
// includes the items written this run, so incremental runs never narrow
// the extent to just the new items. The in-run boxes are only a fallback
// for an unreadable items directory.
func (s *StacService) writeCatalogAndCollection(itemsDir string, newBoxes []domain.BBox, datetime time.Time) error {
	itemLinks, diskBoxes, err := scanItems(itemsDir)
	if err != nil {
		return err
	}
	boxes := diskBoxes
	if len(boxes) == 0 {
		boxes = newBoxes
	}

	var spatial []domain.BBox
	if union, ok := domain.UnionBBoxes(boxes); ok {
		spatial = []domain.BBox{union}
	} else {
		s.logger.Warn("no items on disk, collection extent left empty")
	}

	start := datetime.Format(time.RFC3339)
	collection := domain.StacCollection{
		Type:        "Collection",
		StacVersion: domain.StacVersion,
		ID:          s.cfg.CollectionID,
		Description: s.cfg.CollectionDesc,
		License:     s.cfg.License,
		Extent: domain.StacExtent{
			Spatial:  domain.StacSpatialExtent{BBox: spatial},
			Temporal: domain.StacTemporalExtent{Interval: [][2]*string{{&start, nil}}},
		},
		Links: append([]domain.StacLink{
			{Rel: "root", Href: "./catalog.json", Type: "application/json"},
			{Rel: "parent", Href: "./catalog.json", Type: "application/json"},
		}, itemLinks...),
	}
	if err := writeJSON(filepath.Join(s.cfg.OutputDir, "collection.json"), collection); err != nil {
		return err
	}

	catalog := domain.StacCatalog{
		Type:        "Catalog",
		StacVersion: domain.StacVersion,
		ID:          s.cfg.CatalogID,
		Description: s.cfg.CatalogDesc,
		Links: []domain.StacLink{
			{Rel: "self", Href: "./catalog.json", Type: "application/json"},
			{Rel: "root", Href: "./catalog.json", Type: "application/json"},
			{Rel: "child", Href: "./collection.json", Type: "application/json"},
		},
	}
	return writeJSON(filepath.Join(s.cfg.OutputDir, "catalog.json"), catalog)
}

// scanItems lists the item documents on disk and collects their bboxes.
func scanItems(itemsDir string) ([]domain.StacLink, []domain.BBox, error) {
	entries, err := os.ReadDir(itemsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	var links []domain.StacLink
	var boxes []domain.BBox
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(itemsDir, e.Name()))
		if err != nil {
			return nil, nil, err
		}
		var item domain.StacItem
		if err := json.Unmarshal(data, &item); err != nil {
			continue // Foreign file in the items directory
		}
		links = append(links, domain.StacLink{
			Rel:  "item",
			Href: path.Join("./items", e.Name()),
			Type: "application/json",
		})
		boxes = append(boxes, item.BBox)
	}
	return links, boxes, nil
}

// itemIDFor derives the item id from the canonical output filename.
func itemIDFor(rec *domain.RasterFileRecord) string {
	return strings.TrimSuffix(rec.CanonicalName, filepath.Ext(rec.CanonicalName))
}

// assetKey is the remote object key for a record, mirroring the output
// layout with forward slashes.
func assetKey(layout string, rec *domain.RasterFileRecord) string {
	if layout == LayoutNested {
		return path.Join(string(rec.DataType), rec.Domain, rec.CanonicalName)
	}
	return rec.CanonicalName
}

// writeJSON writes an indented JSON document.
func writeJSON(dest string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(dest, append(data, '\n'), 0644)
}

// finiteExtent reports whether all four corners are finite numbers.
func finiteExtent(e domain.Extent) bool {
	for _, v := range []float64{e.MinX, e.MinY, e.MaxX, e.MaxY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
