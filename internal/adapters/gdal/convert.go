package gdal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jobrunner/stratum/internal/domain"
	"github.com/jobrunner/stratum/internal/ports/output"
)

// Writer implements the COGWriter port with the gdal_translate COG driver.
type Writer struct {
	runner Runner
}

// NewWriter creates a writer using the given runner.
func NewWriter(runner Runner) *Writer {
	return &Writer{runner: runner}
}

// WriteCOG converts src into a tiled, compressed, overviewed GeoTIFF at
// dest. The output is written to a temporary name and renamed so an
// encoder crash never leaves a partial file at the final path.
func (w *Writer) WriteCOG(ctx context.Context, src, dest string, opts output.COGOptions) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return &domain.RasterError{Op: "convert", Path: src, Err: err}
	}

	tmp := dest + ".partial"
	args := []string{"-q", "-of", "COG",
		"-co", "COMPRESS=" + compression(opts),
		"-co", fmt.Sprintf("BLOCKSIZE=%d", tileSize(opts)),
		"-co", "RESAMPLING=" + strings.ToUpper(string(opts.Resampling)),
		"-co", "OVERVIEWS=IGNORE_EXISTING",
	}
	if opts.Predictor {
		args = append(args, "-co", "PREDICTOR=YES")
	}
	if opts.NumThreads > 0 {
		args = append(args, "-co", fmt.Sprintf("NUM_THREADS=%d", opts.NumThreads))
	}
	args = append(args, src, tmp)

	if _, err := w.runner.Run(ctx, "", "gdal_translate", args...); err != nil {
		_ = os.Remove(tmp)
		return &domain.RasterError{Op: "convert", Path: src, Err: err}
	}

	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return &domain.RasterError{Op: "convert", Path: src, Err: err}
	}
	return nil
}

func compression(opts output.COGOptions) string {
	if opts.Compression == "" {
		return "DEFLATE"
	}
	return strings.ToUpper(opts.Compression)
}

func tileSize(opts output.COGOptions) int {
	if opts.TileSize <= 0 {
		return 512
	}
	return opts.TileSize
}
