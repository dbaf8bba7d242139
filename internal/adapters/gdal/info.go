package gdal

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/jobrunner/stratum/internal/domain"
	"github.com/jobrunner/stratum/internal/ports/output"
)

// Reader implements the RasterReader port on top of gdalinfo and
// gdallocationinfo.
type Reader struct {
	runner Runner
}

// NewReader creates a reader using the given runner.
func NewReader(runner Runner) *Reader {
	return &Reader{runner: runner}
}

// gdalInfoDoc mirrors the subset of `gdalinfo -json` output we consume.
type gdalInfoDoc struct {
	Size             []int     `json:"size"` // [cols, rows]
	GeoTransform     []float64 `json:"geoTransform"`
	CoordinateSystem struct {
		WKT string `json:"wkt"`
	} `json:"coordinateSystem"`
	Bands []struct {
		Type        string   `json:"type"`
		NoDataValue *float64 `json:"noDataValue"`
	} `json:"bands"`
}

// Both WKT2 (ID["EPSG",n]) and legacy (AUTHORITY["EPSG","n"]) forms appear
// depending on the GDAL version; the last occurrence is the CRS itself
// rather than a nested datum or axis authority.
var epsgPattern = regexp.MustCompile(`(?:ID\["EPSG",(\d+)\]|AUTHORITY\["EPSG","(\d+)"\])`)

// Info reads the structural header of one raster.
func (r *Reader) Info(ctx context.Context, path string) (*output.RasterInfo, error) {
	raw, err := r.runner.Run(ctx, "", "gdalinfo", "-json", path)
	if err != nil {
		return nil, &domain.RasterError{Op: "info", Path: path, Err: err}
	}

	var doc gdalInfoDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &domain.RasterError{Op: "info", Path: path, Err: fmt.Errorf("parsing gdalinfo output: %w", err)}
	}
	if len(doc.Size) != 2 || len(doc.GeoTransform) != 6 {
		return nil, &domain.RasterError{Op: "info", Path: path, Err: fmt.Errorf("incomplete gdalinfo output")}
	}

	cols, rows := doc.Size[0], doc.Size[1]
	gt := doc.GeoTransform

	info := &output.RasterInfo{
		Cols:      cols,
		Rows:      rows,
		BandCount: len(doc.Bands),
		ResX:      gt[1],
		ResY:      math.Abs(gt[5]),
		CRSWKT:    doc.CoordinateSystem.WKT,
		Extent: domain.Extent{
			MinX: gt[0],
			MaxX: gt[0] + float64(cols)*gt[1],
			MaxY: gt[3],
			MinY: gt[3] + float64(rows)*gt[5],
		},
		CRSCode: epsgFromWKT(doc.CoordinateSystem.WKT),
	}
	if len(doc.Bands) > 0 {
		info.PixelType = doc.Bands[0].Type
	}

	if st, err := os.Stat(path); err == nil {
		info.FileSizeMB = float64(st.Size()) / (1024 * 1024)
	}

	return info, nil
}

// Sample draws a deterministic uniform random pixel sample via
// gdallocationinfo and summarizes it. NA pixels are those equal to the
// band's nodata value or non-finite.
func (r *Reader) Sample(ctx context.Context, path string, size int, seed int64) (*domain.SampleStats, error) {
	raw, err := r.runner.Run(ctx, "", "gdalinfo", "-json", path)
	if err != nil {
		return nil, &domain.RasterError{Op: "sample", Path: path, Err: err}
	}
	var doc gdalInfoDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &domain.RasterError{Op: "sample", Path: path, Err: err}
	}
	if len(doc.Size) != 2 || doc.Size[0] <= 0 || doc.Size[1] <= 0 {
		return nil, &domain.RasterError{Op: "sample", Path: path, Err: fmt.Errorf("raster has no pixels")}
	}

	var nodata *float64
	if len(doc.Bands) > 0 {
		nodata = doc.Bands[0].NoDataValue
	}

	// Fixed seed keeps the sample reproducible across runs.
	rng := rand.New(rand.NewSource(seed))
	var sb strings.Builder
	for i := 0; i < size; i++ {
		col := rng.Intn(doc.Size[0])
		row := rng.Intn(doc.Size[1])
		fmt.Fprintf(&sb, "%d %d\n", col, row)
	}

	out, err := r.runner.Run(ctx, sb.String(), "gdallocationinfo", "-valonly", path)
	if err != nil {
		return nil, &domain.RasterError{Op: "sample", Path: path, Err: err}
	}

	stats, err := summarize(out, size, nodata)
	if err != nil {
		return nil, &domain.RasterError{Op: "sample", Path: path, Err: err}
	}
	return stats, nil
}

// summarize computes the sample statistics from gdallocationinfo output.
// One output line per requested point; a shortfall means the tool dropped
// points and the statistics would silently cover a smaller sample.
func summarize(out []byte, size int, nodata *float64) (*domain.SampleStats, error) {
	var lines []string
	if trimmed := strings.TrimSpace(string(out)); trimmed != "" {
		lines = strings.Split(trimmed, "\n")
	}
	if len(lines) != size {
		return nil, fmt.Errorf("gdallocationinfo returned %d values, expected %d", len(lines), size)
	}

	stats := &domain.SampleStats{SampleSize: size}
	var sum float64
	var valid, na int

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			na++
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			na++
			continue
		}
		if !isFinite(v) || (nodata != nil && v == *nodata) {
			na++
			continue
		}
		if valid == 0 || v < stats.Min {
			stats.Min = v
		}
		if valid == 0 || v > stats.Max {
			stats.Max = v
		}
		sum += v
		valid++
	}

	if valid > 0 {
		stats.Mean = sum / float64(valid)
	}
	if size > 0 {
		stats.NAPercent = 100 * float64(na) / float64(size)
	}
	return stats, nil
}

// epsgFromWKT extracts the EPSG code of the outermost CRS, or nil.
func epsgFromWKT(wkt string) *int {
	if strings.TrimSpace(wkt) == "" {
		return nil
	}
	matches := epsgPattern.FindAllStringSubmatch(wkt, -1)
	if len(matches) == 0 {
		return nil
	}
	last := matches[len(matches)-1]
	for _, g := range last[1:] {
		if g != "" {
			if code, err := strconv.Atoi(g); err == nil {
				return &code
			}
		}
	}
	return nil
}

// isFinite reports whether v is a usable sample value.
func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
