package gdal

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jobrunner/stratum/internal/domain"
)

// Transformer implements the Reprojector port with gdaltransform.
type Transformer struct {
	runner Runner
}

// NewTransformer creates a transformer using the given runner.
func NewTransformer(runner Runner) *Transformer {
	return &Transformer{runner: runner}
}

// ReprojectExtent reprojects the boundary ring of a native extent into the
// target CRS. The returned bounding box is the envelope of the reprojected
// ring corners.
func (t *Transformer) ReprojectExtent(ctx context.Context, ext domain.Extent, srcEPSG, dstEPSG int) (domain.BBox, [][2]float64, error) {
	ring := ext.Ring()

	var sb strings.Builder
	for _, pt := range ring {
		fmt.Fprintf(&sb, "%.10f %.10f\n", pt[0], pt[1])
	}

	out, err := t.runner.Run(ctx, sb.String(), "gdaltransform",
		"-s_srs", fmt.Sprintf("EPSG:%d", srcEPSG),
		"-t_srs", fmt.Sprintf("EPSG:%d", dstEPSG),
		"-output_xy",
	)
	if err != nil {
		return domain.BBox{}, nil, fmt.Errorf("reprojecting extent: %w", err)
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) != len(ring) {
		return domain.BBox{}, nil, fmt.Errorf("gdaltransform returned %d points, expected %d", len(lines), len(ring))
	}

	reprojected := make([][2]float64, 0, len(lines))
	bbox := domain.BBox{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return domain.BBox{}, nil, fmt.Errorf("unexpected gdaltransform line %q", line)
		}
		x, errX := strconv.ParseFloat(fields[0], 64)
		y, errY := strconv.ParseFloat(fields[1], 64)
		if errX != nil || errY != nil {
			return domain.BBox{}, nil, fmt.Errorf("unexpected gdaltransform line %q", line)
		}
		reprojected = append(reprojected, [2]float64{x, y})
		bbox[0] = math.Min(bbox[0], x)
		bbox[1] = math.Min(bbox[1], y)
		bbox[2] = math.Max(bbox[2], x)
		bbox[3] = math.Max(bbox[3], y)
	}

	return bbox, reprojected, nil
}
