package domain

import "strings"

// Resampling is the algorithm used to build overview pyramids.
type Resampling string

// Resampling constants. The values are GDAL algorithm names.
const (
	ResampleNearest Resampling = "nearest"
	ResampleAverage Resampling = "average"
)

// ResamplingForDimension maps a declared layer dimension to a resampling
// algorithm. This is the structured signal: categorical dimensions must not
// be averaged across class boundaries. The second return value reports
// whether the dimension carries a decision at all.
func ResamplingForDimension(d Dimension) (Resampling, bool) {
	if d.IsCategorical() {
		return ResampleNearest, true
	}
	return "", false
}

// ResamplingForPixelType guesses a resampling algorithm from the pixel
// datatype: integer rasters are likely categorical or discrete even without
// an explicit status label, everything else is continuous. Both GDAL names
// (Int16, Float32) and short header codes (INT2S, FLT4S) are recognized.
func ResamplingForPixelType(pixelType string) Resampling {
	pt := strings.ToLower(pixelType)
	if pt == "byte" || strings.Contains(pt, "int") {
		return ResampleNearest
	}
	return ResampleAverage
}

// ChooseResampling composes the dimension signal with the datatype
// heuristic; the dimension wins when it has an opinion.
func ChooseResampling(d Dimension, pixelType string) Resampling {
	if r, ok := ResamplingForDimension(d); ok {
		return r
	}
	return ResamplingForPixelType(pixelType)
}
