package gdal

import (
	"context"
	"strings"
	"testing"

	"github.com/jobrunner/stratum/internal/domain"
)

func TestTransformerReprojectExtent(t *testing.T) {
	// Five ring corners back from gdaltransform, lower-left first.
	out := "10.0 40.0\n12.0 40.1\n12.1 42.0\n9.9 41.9\n10.0 40.0\n"
	runner := &fakeRunner{outputs: map[string][]byte{
		"gdaltransform": []byte(out),
	}}
	tr := NewTransformer(runner)

	ext := domain.Extent{MinX: 900000, MinY: 900000, MaxX: 7400000, MaxY: 5500000}
	bbox, ring, err := tr.ReprojectExtent(context.Background(), ext, 3035, 4326)
	if err != nil {
		t.Fatalf("ReprojectExtent failed: %v", err)
	}

	want := domain.BBox{9.9, 40.0, 12.1, 42.0}
	if bbox != want {
		t.Errorf("bbox = %v, want envelope %v", bbox, want)
	}
	if len(ring) != 5 {
		t.Errorf("len(ring) = %d, want 5", len(ring))
	}

	call, ok := runner.lastCall("gdaltransform")
	if !ok {
		t.Fatal("gdaltransform never called")
	}
	if !containsArg(call.args, "EPSG:3035") || !containsArg(call.args, "EPSG:4326") {
		t.Errorf("CRS arguments missing: %v", call.args)
	}
	if lines := strings.Count(strings.TrimSpace(call.stdin), "\n") + 1; lines != 5 {
		t.Errorf("stdin carries %d points, want 5", lines)
	}
}

func TestTransformerReprojectExtentShortOutput(t *testing.T) {
	runner := &fakeRunner{outputs: map[string][]byte{
		"gdaltransform": []byte("10.0 40.0\n"),
	}}
	tr := NewTransformer(runner)

	ext := domain.Extent{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}
	if _, _, err := tr.ReprojectExtent(context.Background(), ext, 3035, 4326); err == nil {
		t.Error("ReprojectExtent should fail when points are missing")
	}
}
