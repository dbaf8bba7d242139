package inventory

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/jobrunner/stratum/internal/domain"
)

// recordHeader is the column order of exported inventory CSVs. It matches
// the SQLite table and is part of the wire format.
var recordHeader = []string{
	"filepath", "filename", "data_type", "domain", "dimension",
	"rows", "cols", "cell_count", "band_count",
	"res_x", "res_y", "crs_code", "crs_wkt",
	"xmin", "xmax", "ymin", "ymax",
	"pixel_type", "file_size_mb",
	"value_min", "value_max", "value_mean", "na_percent", "sample_size",
	"read_succeeded", "read_error", "passes_assumptions", "assumption_error",
	"canonical_name",
}

// logHeader is the column order of the exported conversion log CSV.
var logHeader = []string{
	"source_path", "output_path", "data_type", "domain", "dimension",
	"resampling", "status", "message",
}

// WriteRecordsCSV writes inventory records to a CSV file, overwriting any
// existing file.
func WriteRecordsCSV(path string, records []domain.RasterFileRecord) error {
	return writeCSV(path, recordHeader, func(w *csv.Writer) error {
		for i := range records {
			if err := w.Write(recordRow(&records[i])); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteLogCSV writes conversion log rows to a CSV file.
func WriteLogCSV(path string, rows []domain.COGOutputRecord) error {
	return writeCSV(path, logHeader, func(w *csv.Writer) error {
		for _, row := range rows {
			if err := w.Write([]string{
				row.SourcePath, row.OutputPath, string(row.DataType), row.Domain,
				string(row.Dimension), string(row.Resampling), string(row.Status), row.Message,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// countRow is one line of a frequency breakdown.
type countRow struct {
	key   []string
	count int
}

// WriteResolutionBreakdown writes the count of successfully-read files per
// (res_x, res_y) pair, most frequent first.
func WriteResolutionBreakdown(path string, records []domain.RasterFileRecord) error {
	rows := tally(records, func(r *domain.RasterFileRecord) []string {
		return []string{formatFloat(r.ResX), formatFloat(r.ResY)}
	})
	return writeBreakdown(path, []string{"res_x", "res_y", "count"}, rows)
}

// WriteCRSBreakdown writes the count of successfully-read files per CRS
// code, most frequent first.
func WriteCRSBreakdown(path string, records []domain.RasterFileRecord) error {
	rows := tally(records, func(r *domain.RasterFileRecord) []string {
		if r.CRSCode == nil {
			return []string{""}
		}
		return []string{strconv.Itoa(*r.CRSCode)}
	})
	return writeBreakdown(path, []string{"crs_code", "count"}, rows)
}

// WriteExtentBreakdown writes the count of successfully-read files per
// extent tuple, most frequent first.
func WriteExtentBreakdown(path string, records []domain.RasterFileRecord) error {
	rows := tally(records, func(r *domain.RasterFileRecord) []string {
		return []string{
			formatFloat(r.XMin), formatFloat(r.XMax),
			formatFloat(r.YMin), formatFloat(r.YMax),
		}
	})
	return writeBreakdown(path, []string{"xmin", "xmax", "ymin", "ymax", "count"}, rows)
}

// tally counts successfully-read records by a composite key, sorted by
// descending count with first-seen order breaking ties.
func tally(records []domain.RasterFileRecord, keyOf func(*domain.RasterFileRecord) []string) []countRow {
	index := map[string]int{}
	var rows []countRow

	for i := range records {
		rec := &records[i]
		if !rec.ReadSucceeded {
			continue
		}
		key := keyOf(rec)
		joined := fmt.Sprint(key)
		if at, ok := index[joined]; ok {
			rows[at].count++
			continue
		}
		index[joined] = len(rows)
		rows = append(rows, countRow{key: key, count: 1})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].count > rows[j].count
	})
	return rows
}

func writeBreakdown(path string, header []string, rows []countRow) error {
	return writeCSV(path, header, func(w *csv.Writer) error {
		for _, row := range rows {
			if err := w.Write(append(append([]string{}, row.key...), strconv.Itoa(row.count))); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeCSV(path string, header []string, body func(*csv.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := body(w); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func recordRow(rec *domain.RasterFileRecord) []string {
	crsCode := ""
	if rec.CRSCode != nil {
		crsCode = strconv.Itoa(*rec.CRSCode)
	}
	passes := ""
	if rec.PassesAssumptions != nil {
		passes = strconv.FormatBool(*rec.PassesAssumptions)
	}
	var vMin, vMax, vMean, naPct, sampleSize string
	if rec.Stats != nil {
		vMin = formatFloat(rec.Stats.Min)
		vMax = formatFloat(rec.Stats.Max)
		vMean = formatFloat(rec.Stats.Mean)
		naPct = formatFloat(rec.Stats.NAPercent)
		sampleSize = strconv.Itoa(rec.Stats.SampleSize)
	}

	return []string{
		rec.FilePath, rec.FileName, string(rec.DataType), rec.Domain, string(rec.Dimension),
		strconv.Itoa(rec.Rows), strconv.Itoa(rec.Cols),
		strconv.FormatInt(rec.CellCount, 10), strconv.Itoa(rec.BandCount),
		formatFloat(rec.ResX), formatFloat(rec.ResY), crsCode, rec.CRSWKT,
		formatFloat(rec.XMin), formatFloat(rec.XMax), formatFloat(rec.YMin), formatFloat(rec.YMax),
		rec.PixelType, formatFloat(rec.FileSizeMB),
		vMin, vMax, vMean, naPct, sampleSize,
		strconv.FormatBool(rec.ReadSucceeded), rec.ReadError, passes, rec.AssumptionError,
		rec.CanonicalName,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
