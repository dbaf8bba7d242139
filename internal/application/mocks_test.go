package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/jobrunner/stratum/internal/domain"
	"github.com/jobrunner/stratum/internal/ports/output"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// memStore is an in-memory InventoryStore.
type memStore struct {
	mu      sync.Mutex
	records []domain.RasterFileRecord
	log     []domain.COGOutputRecord

	appendBatches int // Number of AppendRecords calls with rows
}

func newMemStore() *memStore { return &memStore{} }

func (m *memStore) AppendRecords(_ context.Context, records []domain.RasterFileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(records) == 0 {
		return nil
	}
	for _, rec := range records {
		for _, existing := range m.records {
			if existing.FilePath == rec.FilePath {
				return fmt.Errorf("duplicate filepath %s", rec.FilePath)
			}
		}
		m.records = append(m.records, rec)
	}
	m.appendBatches++
	return nil
}

func (m *memStore) ProcessedPaths(_ context.Context) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make(map[string]struct{}, len(m.records))
	for _, rec := range m.records {
		paths[rec.FilePath] = struct{}{}
	}
	return paths, nil
}

func (m *memStore) LoadRecords(_ context.Context) ([]domain.RasterFileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.RasterFileRecord, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *memStore) AppendLog(_ context.Context, rows []domain.COGOutputRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, rows...)
	return nil
}

func (m *memStore) LoadLog(_ context.Context) ([]domain.COGOutputRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.COGOutputRecord, len(m.log))
	copy(out, m.log)
	return out, nil
}

func (m *memStore) Close() error { return nil }

// fakeReader serves canned headers and fails for listed paths.
type fakeReader struct {
	info     map[string]*output.RasterInfo
	stats    map[string]*domain.SampleStats
	failInfo map[string]error
}

func (f *fakeReader) Info(_ context.Context, path string) (*output.RasterInfo, error) {
	if err := f.failInfo[path]; err != nil {
		return nil, err
	}
	if info, ok := f.info[path]; ok {
		return info, nil
	}
	return nil, errors.New("no canned header for " + path)
}

func (f *fakeReader) Sample(_ context.Context, path string, size int, _ int64) (*domain.SampleStats, error) {
	if stats, ok := f.stats[path]; ok {
		return stats, nil
	}
	return &domain.SampleStats{SampleSize: size}, nil
}

// fakeWriter records conversions and creates the destination file.
type fakeWriter struct {
	calls []string
	fail  map[string]error
}

func (f *fakeWriter) WriteCOG(_ context.Context, src, dest string, _ output.COGOptions) error {
	f.calls = append(f.calls, src)
	if err := f.fail[src]; err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte("cog"), 0644)
}

// fakeReprojector returns the native ring unchanged, or a fixed bbox when
// one is set.
type fakeReprojector struct {
	err  error
	bbox *domain.BBox
}

func (f *fakeReprojector) ReprojectExtent(_ context.Context, ext domain.Extent, _, _ int) (domain.BBox, [][2]float64, error) {
	if f.err != nil {
		return domain.BBox{}, nil, f.err
	}
	if f.bbox != nil {
		return *f.bbox, ext.Ring(), nil
	}
	return domain.BBox{ext.MinX, ext.MinY, ext.MaxX, ext.MaxY}, ext.Ring(), nil
}

// fakeStorage is an in-memory remote host.
type fakeStorage struct {
	objects   map[string]bool
	probeErr  error
	uploadErr error
	uploads   []string
	probes    []string
}

func newFakeStorage(keys ...string) *fakeStorage {
	objects := make(map[string]bool, len(keys))
	for _, k := range keys {
		objects[k] = true
	}
	return &fakeStorage{objects: objects}
}

func (f *fakeStorage) List(_ context.Context) ([]output.StorageObject, error) {
	var out []output.StorageObject
	for k := range f.objects {
		out = append(out, output.StorageObject{Key: k})
	}
	return out, nil
}

func (f *fakeStorage) Upload(_ context.Context, _, key string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.objects[key] = true
	f.uploads = append(f.uploads, key)
	return nil
}

func (f *fakeStorage) Exists(_ context.Context, key string) (bool, error) {
	f.probes = append(f.probes, key)
	if f.probeErr != nil {
		return false, f.probeErr
	}
	return f.objects[key], nil
}

func (f *fakeStorage) URL(key string) string {
	return "https://cdn.example.org/" + key
}
