package application

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jobrunner/stratum/internal/domain"
	"github.com/jobrunner/stratum/internal/ports/output"
)

func stacFixture(t *testing.T, store *memStore, canonicals ...string) (cogDir string) {
	t.Helper()
	ctx := context.Background()
	cogDir = t.TempDir()

	var records []domain.RasterFileRecord
	for _, name := range canonicals {
		rec := consistentRecord("/data/"+name, name)
		records = append(records, rec)
		if err := os.WriteFile(filepath.Join(cogDir, name), []byte("cog"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.AppendRecords(ctx, records); err != nil {
		t.Fatal(err)
	}
	return cogDir
}

func newStacService(store output.InventoryStore, remote output.ObjectStorage, cfg StacConfig) *StacService {
	if cfg.CatalogID == "" {
		cfg.CatalogID = "stratum"
		cfg.CollectionID = "stratum-cog"
		cfg.License = "proprietary"
	}
	if cfg.Datetime.IsZero() {
		cfg.Datetime = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	}
	cfg.Layout = LayoutFlat
	cfg.Grid = testGrid()
	return NewStacService(store, &fakeReprojector{}, remote, &output.NoOpMetrics{}, NewProgress(), testLogger(), cfg)
}

func readItem(t *testing.T, path string) domain.StacItem {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading item: %v", err)
	}
	var item domain.StacItem
	if err := json.Unmarshal(data, &item); err != nil {
		t.Fatalf("parsing item: %v", err)
	}
	return item
}

func TestStacRunWritesDocuments(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	cogDir := stacFixture(t, store, "a.tif", "b.tif")
	outDir := t.TempDir()

	svc := newStacService(store, nil, StacConfig{
		OutputDir: outDir,
		AssetMode: AssetModeLocal,
		COGDir:    cogDir,
	})

	summary, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Written != 2 {
		t.Errorf("Written = %d, want 2", summary.Written)
	}

	for _, name := range []string{"catalog.json", "collection.json", "items/a.json", "items/b.json"} {
		if _, err := os.Stat(filepath.Join(outDir, filepath.FromSlash(name))); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}

	item := readItem(t, filepath.Join(outDir, "items", "a.json"))
	if item.Type != "Feature" || item.StacVersion != domain.StacVersion {
		t.Errorf("item envelope = %q/%q", item.Type, item.StacVersion)
	}
	if item.ID != "a" {
		t.Errorf("item ID = %q, want a", item.ID)
	}
	if item.Properties["datetime"] != "2026-08-01T00:00:00Z" {
		t.Errorf("datetime = %v", item.Properties["datetime"])
	}
	asset, ok := item.Assets["data"]
	if !ok {
		t.Fatal("data asset missing")
	}
	if asset.Type != domain.COGMediaType {
		t.Errorf("asset type = %q", asset.Type)
	}
}

func TestStacItemsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	cogDir := stacFixture(t, store, "a.tif")
	outDir := t.TempDir()

	svc := newStacService(store, nil, StacConfig{
		OutputDir: outDir,
		AssetMode: AssetModeLocal,
		COGDir:    cogDir,
	})

	if _, err := svc.Run(ctx); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	itemPath := filepath.Join(outDir, "items", "a.json")
	before, err := os.Stat(itemPath)
	if err != nil {
		t.Fatal(err)
	}

	summary, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if summary.Written != 0 || summary.Skipped != 1 {
		t.Errorf("second run summary = %+v, want 1 skipped", summary)
	}

	after, _ := os.Stat(itemPath)
	if after.ModTime() != before.ModTime() {
		t.Error("existing item rewritten")
	}
}

func TestStacCollectionBBoxRecomputedFromDisk(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	cogDir := stacFixture(t, store, "a.tif")
	outDir := t.TempDir()

	svc := newStacService(store, nil, StacConfig{
		OutputDir: outDir,
		AssetMode: AssetModeLocal,
		COGDir:    cogDir,
	})

	if _, err := svc.Run(ctx); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	// Second run writes zero items; the collection extent must still be
	// the union of what is on disk, not empty.
	if _, err := svc.Run(ctx); err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "collection.json"))
	if err != nil {
		t.Fatal(err)
	}
	var collection domain.StacCollection
	if err := json.Unmarshal(data, &collection); err != nil {
		t.Fatal(err)
	}
	if len(collection.Extent.Spatial.BBox) != 1 {
		t.Fatalf("collection bbox count = %d, want 1", len(collection.Extent.Spatial.BBox))
	}
	if collection.Extent.Spatial.BBox[0].IsDegenerate() {
		t.Error("collection bbox degenerate after no-op run")
	}
}

func TestStacCollectionBBoxSpansAllItemsAcrossRuns(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	cogDir := stacFixture(t, store, "a.tif")
	outDir := t.TempDir()

	svc := newStacService(store, nil, StacConfig{
		OutputDir: outDir,
		AssetMode: AssetModeLocal,
		COGDir:    cogDir,
	})

	svc.reproj = &fakeReprojector{bbox: &domain.BBox{-120, 30, -110, 40}}
	if _, err := svc.Run(ctx); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	// A second raster arrives with a different footprint.
	if err := os.WriteFile(filepath.Join(cogDir, "b.tif"), []byte("cog"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := store.AppendRecords(ctx, []domain.RasterFileRecord{
		consistentRecord("/data/b.tif", "b.tif"),
	}); err != nil {
		t.Fatal(err)
	}
	svc.reproj = &fakeReprojector{bbox: &domain.BBox{-115, 35, -105, 45}}

	summary, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if summary.Written != 1 || summary.Skipped != 1 {
		t.Fatalf("second run summary = %+v, want 1 written 1 skipped", summary)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "collection.json"))
	if err != nil {
		t.Fatal(err)
	}
	var collection domain.StacCollection
	if err := json.Unmarshal(data, &collection); err != nil {
		t.Fatal(err)
	}
	if len(collection.Extent.Spatial.BBox) != 1 {
		t.Fatalf("collection bbox count = %d, want 1", len(collection.Extent.Spatial.BBox))
	}
	want := domain.BBox{-120, 30, -105, 45}
	if collection.Extent.Spatial.BBox[0] != want {
		t.Errorf("collection bbox = %v, want the union %v of both items", collection.Extent.Spatial.BBox[0], want)
	}
}

func TestStacForeignFileInItemsDirIgnored(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	cogDir := stacFixture(t, store, "a.tif")
	outDir := t.TempDir()

	itemsDir := filepath.Join(outDir, "items")
	if err := os.MkdirAll(itemsDir, 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(itemsDir, "notes.json"), []byte("not an item"), 0644); err != nil {
		t.Fatal(err)
	}

	svc := newStacService(store, nil, StacConfig{
		OutputDir: outDir,
		AssetMode: AssetModeLocal,
		COGDir:    cogDir,
	})
	if _, err := svc.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "collection.json"))
	if err != nil {
		t.Fatal(err)
	}
	var collection domain.StacCollection
	if err := json.Unmarshal(data, &collection); err != nil {
		t.Fatal(err)
	}
	for _, link := range collection.Links {
		if link.Rel == "item" && link.Href != "./items/a.json" {
			t.Errorf("link to foreign file %q", link.Href)
		}
	}
	if len(collection.Extent.Spatial.BBox) != 1 {
		t.Errorf("collection bbox count = %d, want 1", len(collection.Extent.Spatial.BBox))
	}
}

func TestStacHybridAssetHosted(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	cogDir := stacFixture(t, store, "a.tif")

	remote := newFakeStorage("a.tif")
	svc := newStacService(store, remote, StacConfig{
		OutputDir: t.TempDir(),
		AssetMode: AssetModeHybrid,
		COGDir:    cogDir,
	})

	if _, err := svc.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	item := readItem(t, filepath.Join(svc.cfg.OutputDir, "items", "a.json"))
	if item.Assets["data"].Href != "https://cdn.example.org/a.tif" {
		t.Errorf("asset href = %q, want remote URL", item.Assets["data"].Href)
	}
	if hosted, _ := item.Properties["stratum:hosted"].(bool); !hosted {
		t.Error("hosted property not set for remote asset")
	}
}

func TestStacHybridProbeFailureFallsBackToLocal(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	cogDir := stacFixture(t, store, "a.tif")

	remote := newFakeStorage()
	remote.probeErr = errors.New("connection refused")
	svc := newStacService(store, remote, StacConfig{
		OutputDir: t.TempDir(),
		AssetMode: AssetModeHybrid,
		COGDir:    cogDir,
	})

	summary, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("probe failure aborted the run: %v", err)
	}
	if summary.Written != 1 {
		t.Errorf("Written = %d, want 1", summary.Written)
	}

	item := readItem(t, filepath.Join(svc.cfg.OutputDir, "items", "a.json"))
	href := item.Assets["data"].Href
	if href == "" || href == "https://cdn.example.org/a.tif" {
		t.Errorf("asset href = %q, want local fallback", href)
	}
	if hosted, _ := item.Properties["stratum:hosted"].(bool); hosted {
		t.Error("hosted property true despite probe failure")
	}
}

func TestStacSkipsRecordsWithoutCOG(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	_ = store.AppendRecords(ctx, []domain.RasterFileRecord{
		consistentRecord("/data/pending.tif", "pending.tif"),
	})

	svc := newStacService(store, nil, StacConfig{
		OutputDir: t.TempDir(),
		AssetMode: AssetModeLocal,
		COGDir:    t.TempDir(), // empty: nothing converted yet
	})

	summary, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Missing != 1 || summary.Written != 0 {
		t.Errorf("summary = %+v, want 1 missing", summary)
	}
}

func TestStacReprojectionFailureDoesNotAbort(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	cogDir := stacFixture(t, store, "a.tif")
	outDir := t.TempDir()

	svc := newStacService(store, nil, StacConfig{
		OutputDir: outDir,
		AssetMode: AssetModeLocal,
		COGDir:    cogDir,
	})
	svc.reproj = &fakeReprojector{err: errors.New("proj database missing")}

	summary, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("one reprojection failure aborted the run: %v", err)
	}
	if summary.Failed != 1 || summary.Written != 0 {
		t.Errorf("summary = %+v, want 1 failed", summary)
	}

	// The catalog and collection are still regenerated.
	if _, err := os.Stat(filepath.Join(outDir, "catalog.json")); err != nil {
		t.Errorf("catalog.json not written: %v", err)
	}
}
