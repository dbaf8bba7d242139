package domain

import (
	"fmt"
	"math"
)

// DefaultTolerance is the absolute/relative tolerance for comparing grid
// parameters. Extents are reconstructed from binary headers, so exact
// equality is never used.
const DefaultTolerance = 1e-6

// Extent is an axis-aligned bounding box in a raster's native CRS.
type Extent struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// IsValid checks that the extent has positive area.
func (e Extent) IsValid() bool {
	return e.MinX < e.MaxX && e.MinY < e.MaxY
}

// Width returns the width of the extent.
func (e Extent) Width() float64 {
	return math.Abs(e.MaxX - e.MinX)
}

// Height returns the height of the extent.
func (e Extent) Height() float64 {
	return math.Abs(e.MaxY - e.MinY)
}

// Ring returns the closed boundary ring of the extent, counter-clockwise
// from the lower-left corner.
func (e Extent) Ring() [][2]float64 {
	return [][2]float64{
		{e.MinX, e.MinY},
		{e.MaxX, e.MinY},
		{e.MaxX, e.MaxY},
		{e.MinX, e.MaxY},
		{e.MinX, e.MinY},
	}
}

// ExpectedGrid holds the spatial parameters every raster in a dataset is
// expected to share. It is passed to validation explicitly so multiple
// datasets with different grids can coexist in one process.
type ExpectedGrid struct {
	CRSCode   int
	ResX      float64
	ResY      float64
	XMin      float64
	XMax      float64
	YMin      float64
	YMax      float64
	Tolerance float64 // Zero means DefaultTolerance
}

// tolerance returns the configured tolerance or the default.
func (g ExpectedGrid) tolerance() float64 {
	if g.Tolerance > 0 {
		return g.Tolerance
	}
	return DefaultTolerance
}

// Close reports whether two values agree within the grid tolerance,
// using relative-or-absolute semantics.
func (g ExpectedGrid) Close(a, b float64) bool {
	tol := g.tolerance()
	diff := math.Abs(a - b)
	scale := math.Max(math.Abs(a), math.Abs(b))
	return diff <= tol || diff <= tol*scale
}

// Validate compares a record against the expected grid. Checks run in a
// fixed order and stop at the first violation; only that violation is
// reported. The record must have been read successfully.
func (g ExpectedGrid) Validate(rec *RasterFileRecord) (bool, string) {
	if rec.CRSCode == nil {
		return false, "crs code missing from file"
	}
	if *rec.CRSCode != g.CRSCode {
		return false, fmt.Sprintf("crs code %d, expected %d", *rec.CRSCode, g.CRSCode)
	}
	if !g.Close(rec.ResX, g.ResX) {
		return false, fmt.Sprintf("x resolution %g, expected %g", rec.ResX, g.ResX)
	}
	if !g.Close(rec.ResY, g.ResY) {
		return false, fmt.Sprintf("y resolution %g, expected %g", rec.ResY, g.ResY)
	}
	corners := []struct {
		name     string
		got, exp float64
	}{
		{"xmin", rec.XMin, g.XMin},
		{"xmax", rec.XMax, g.XMax},
		{"ymin", rec.YMin, g.YMin},
		{"ymax", rec.YMax, g.YMax},
	}
	for _, c := range corners {
		if !g.Close(c.got, c.exp) {
			return false, fmt.Sprintf("extent %s %g, expected %g", c.name, c.got, c.exp)
		}
	}
	return true, ""
}

// InferGrid derives an expected grid from a body of otherwise-untrusted
// records by taking the mode of each parameter across all successful reads.
// The extent is treated as a composite: the most frequent (xmin, xmax,
// ymin, ymax) tuple wins as a whole, never a mix of corners from different
// files. Ties resolve to the value seen first in table order.
func InferGrid(records []RasterFileRecord) (ExpectedGrid, error) {
	type extentKey struct{ xmin, xmax, ymin, ymax float64 }

	crsCounts := map[int]int{}
	resXCounts := map[float64]int{}
	resYCounts := map[float64]int{}
	extCounts := map[extentKey]int{}
	var crsOrder []int
	var resXOrder, resYOrder []float64
	var extOrder []extentKey

	for _, rec := range records {
		if !rec.ReadSucceeded {
			continue
		}
		if rec.CRSCode != nil {
			if _, seen := crsCounts[*rec.CRSCode]; !seen {
				crsOrder = append(crsOrder, *rec.CRSCode)
			}
			crsCounts[*rec.CRSCode]++
		}
		if _, seen := resXCounts[rec.ResX]; !seen {
			resXOrder = append(resXOrder, rec.ResX)
		}
		resXCounts[rec.ResX]++
		if _, seen := resYCounts[rec.ResY]; !seen {
			resYOrder = append(resYOrder, rec.ResY)
		}
		resYCounts[rec.ResY]++
		key := extentKey{rec.XMin, rec.XMax, rec.YMin, rec.YMax}
		if _, seen := extCounts[key]; !seen {
			extOrder = append(extOrder, key)
		}
		extCounts[key]++
	}

	if len(crsOrder) == 0 || len(extOrder) == 0 {
		return ExpectedGrid{}, fmt.Errorf("grid inference: %w", ErrNoUsableRecords)
	}

	ext := modeOf(extOrder, extCounts)
	return ExpectedGrid{
		CRSCode: modeOf(crsOrder, crsCounts),
		ResX:    modeOf(resXOrder, resXCounts),
		ResY:    modeOf(resYOrder, resYCounts),
		XMin:    ext.xmin,
		XMax:    ext.xmax,
		YMin:    ext.ymin,
		YMax:    ext.ymax,
	}, nil
}

// modeOf returns the most frequent value, first-seen order breaking ties.
func modeOf[K comparable](order []K, counts map[K]int) K {
	best := order[0]
	for _, k := range order[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return best
}
