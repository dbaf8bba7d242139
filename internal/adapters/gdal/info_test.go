package gdal

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jobrunner/stratum/internal/domain"
)

const sampleGdalinfo = `{
  "size": [7400, 4600],
  "geoTransform": [900000.0, 100.0, 0.0, 5500000.0, 0.0, -100.0],
  "coordinateSystem": {
    "wkt": "PROJCRS[\"ETRS89-extended / LAEA Europe\",BASEGEOGCRS[\"ETRS89\",ID[\"EPSG\",4258]],ID[\"EPSG\",3035]]"
  },
  "bands": [
    {"type": "Float32", "noDataValue": -9999.0}
  ]
}`

func TestReaderInfo(t *testing.T) {
	runner := &fakeRunner{outputs: map[string][]byte{
		"gdalinfo": []byte(sampleGdalinfo),
	}}
	r := NewReader(runner)

	info, err := r.Info(context.Background(), "/data/a.tif")
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}

	if info.Cols != 7400 || info.Rows != 4600 {
		t.Errorf("size = %dx%d, want 7400x4600", info.Cols, info.Rows)
	}
	if info.ResX != 100 || info.ResY != 100 {
		t.Errorf("res = %gx%g, want 100x100", info.ResX, info.ResY)
	}
	if info.CRSCode == nil || *info.CRSCode != 3035 {
		t.Errorf("CRSCode = %v, want 3035 (outermost authority)", info.CRSCode)
	}
	if info.PixelType != "Float32" {
		t.Errorf("PixelType = %q, want Float32", info.PixelType)
	}

	ext := info.Extent
	if ext.MinX != 900000 || ext.MaxY != 5500000 {
		t.Errorf("origin = (%g, %g), want (900000, 5500000)", ext.MinX, ext.MaxY)
	}
	if ext.MaxX != 900000+7400*100 {
		t.Errorf("MaxX = %g, want %g", ext.MaxX, 900000.0+7400*100)
	}
	if ext.MinY != 5500000-4600*100 {
		t.Errorf("MinY = %g, want %g", ext.MinY, 5500000.0-4600*100)
	}
}

func TestReaderInfoIncompleteOutput(t *testing.T) {
	runner := &fakeRunner{outputs: map[string][]byte{
		"gdalinfo": []byte(`{"size": [10, 10]}`),
	}}
	r := NewReader(runner)

	if _, err := r.Info(context.Background(), "/data/a.tif"); err == nil {
		t.Error("Info should fail without a geotransform")
	}
}

func TestEpsgFromWKT(t *testing.T) {
	tests := []struct {
		name string
		wkt  string
		want *int
	}{
		{"wkt2 form", `PROJCRS["x",ID["EPSG",3035]]`, intPtr(3035)},
		{"legacy form", `PROJCS["x",AUTHORITY["EPSG","3035"]]`, intPtr(3035)},
		{"last match wins", `PROJCRS["x",BASEGEOGCRS["y",ID["EPSG",4258]],ID["EPSG",3035]]`, intPtr(3035)},
		{"no authority", `LOCAL_CS["arbitrary"]`, nil},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := epsgFromWKT(tt.wkt)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("epsgFromWKT = %d, want nil", *got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Errorf("epsgFromWKT = %v, want %d", got, *tt.want)
			}
		})
	}
}

func TestReaderSample(t *testing.T) {
	runner := &fakeRunner{outputs: map[string][]byte{
		"gdalinfo":         []byte(sampleGdalinfo),
		"gdallocationinfo": []byte("1\n2\n3\n-9999\nnan\n"),
	}}
	r := NewReader(runner)

	stats, err := r.Sample(context.Background(), "/data/a.tif", 5, 42)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}

	if stats.Min != 1 || stats.Max != 3 {
		t.Errorf("min/max = %g/%g, want 1/3", stats.Min, stats.Max)
	}
	if stats.Mean != 2 {
		t.Errorf("Mean = %g, want 2", stats.Mean)
	}
	// The nodata value and the non-finite value are both NA.
	if stats.NAPercent != 40 {
		t.Errorf("NAPercent = %g, want 40", stats.NAPercent)
	}
	if stats.SampleSize != 5 {
		t.Errorf("SampleSize = %d, want 5", stats.SampleSize)
	}

	call, ok := runner.lastCall("gdallocationinfo")
	if !ok {
		t.Fatal("gdallocationinfo never called")
	}
	if call.stdin == "" {
		t.Error("pixel coordinates not fed on stdin")
	}
}

func TestReaderSampleIsDeterministic(t *testing.T) {
	run := func() string {
		runner := &fakeRunner{outputs: map[string][]byte{
			"gdalinfo":         []byte(sampleGdalinfo),
			"gdallocationinfo": []byte(strings.Repeat("1\n", 20)),
		}}
		r := NewReader(runner)
		if _, err := r.Sample(context.Background(), "/data/a.tif", 20, 42); err != nil {
			t.Fatalf("Sample failed: %v", err)
		}
		call, _ := runner.lastCall("gdallocationinfo")
		return call.stdin
	}

	if run() != run() {
		t.Error("same seed produced different pixel coordinates")
	}
}

func TestReaderSampleShortOutput(t *testing.T) {
	runner := &fakeRunner{outputs: map[string][]byte{
		"gdalinfo":         []byte(sampleGdalinfo),
		"gdallocationinfo": []byte("1\n2\n"),
	}}
	r := NewReader(runner)

	_, err := r.Sample(context.Background(), "/data/a.tif", 5, 42)
	if err == nil {
		t.Fatal("expected an error when fewer values come back than requested")
	}
	var rasterErr *domain.RasterError
	if !errors.As(err, &rasterErr) {
		t.Errorf("error type = %T, want *domain.RasterError", err)
	}
}

func TestSummarizeAllNA(t *testing.T) {
	nodata := -9999.0
	stats, err := summarize([]byte("-9999\n-9999\n"), 2, &nodata)
	if err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	if stats.NAPercent != 100 {
		t.Errorf("NAPercent = %g, want 100", stats.NAPercent)
	}
	if stats.Mean != 0 {
		t.Errorf("Mean = %g, want 0 with no valid pixels", stats.Mean)
	}
}

func intPtr(i int) *int { return &i }
