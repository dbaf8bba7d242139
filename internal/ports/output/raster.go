// Package output defines the secondary/driven ports of the application.
package output

import (
	"context"

	"github.com/jobrunner/stratum/internal/domain"
)

// RasterInfo is the structural header metadata of one raster file.
type RasterInfo struct {
	Rows       int           // Pixel rows
	Cols       int           // Pixel columns
	BandCount  int           // Number of bands
	ResX       float64       // Cell size in x
	ResY       float64       // Cell size in y (positive)
	CRSCode    *int          // EPSG code, nil when not derivable
	CRSWKT     string        // Raw CRS definition
	Extent     domain.Extent // Native bounding box
	PixelType  string        // Datatype of band 1
	FileSizeMB float64       // File size in megabytes
}

// RasterReader defines the secondary port for reading raster headers and
// pixel samples.
type RasterReader interface {
	// Info reads the structural header of one raster without touching
	// pixel data.
	Info(ctx context.Context, path string) (*RasterInfo, error)

	// Sample draws a uniform random pixel sample of the given size,
	// seeded deterministically, and returns its summary statistics.
	Sample(ctx context.Context, path string, size int, seed int64) (*domain.SampleStats, error)
}

// COGOptions are the encoder settings for one conversion.
type COGOptions struct {
	TileSize    int               // Tile edge length in pixels
	Compression string            // Lossless compression algorithm
	Predictor   bool              // Horizontal-differencing predictor
	Resampling  domain.Resampling // Overview resampling algorithm
	NumThreads  int               // Worker cap inside the encoder
}

// COGWriter defines the secondary port for writing cloud-optimized
// GeoTIFFs. The overview pyramid is always rebuilt from scratch.
type COGWriter interface {
	WriteCOG(ctx context.Context, src, dest string, opts COGOptions) error
}

// Reprojector defines the secondary port for coordinate reprojection. It
// reprojects the boundary ring of a native extent into the target CRS and
// returns both the resulting bounding box and the reprojected ring.
type Reprojector interface {
	ReprojectExtent(ctx context.Context, ext domain.Extent, srcEPSG, dstEPSG int) (domain.BBox, [][2]float64, error)
}
