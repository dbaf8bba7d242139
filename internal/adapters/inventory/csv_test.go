package inventory

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/jobrunner/stratum/internal/domain"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer func() { _ = f.Close() }()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return rows
}

func TestWriteRecordsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "consistent.csv")
	rec := testRecord("/data/air/indicators/a.tif")

	if err := WriteRecordsCSV(path, []domain.RasterFileRecord{rec}); err != nil {
		t.Fatalf("WriteRecordsCSV failed: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want header + 1", len(rows))
	}
	// Header is the wire format; spot-check the anchored columns.
	header := rows[0]
	if header[0] != "filepath" || header[len(header)-1] != "canonical_name" {
		t.Errorf("header = %v", header)
	}
	if len(rows[1]) != len(header) {
		t.Errorf("row width %d != header width %d", len(rows[1]), len(header))
	}
	if rows[1][0] != rec.FilePath {
		t.Errorf("filepath column = %q", rows[1][0])
	}
}

func TestWriteRecordsCSVOmitsMissingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory_full.csv")
	failed := domain.RasterFileRecord{
		FilePath:      "/data/broken.tif",
		FileName:      "broken.tif",
		DataType:      domain.DataTypeIndicator,
		Domain:        "air",
		ReadError:     "not a tiff",
		CanonicalName: "broken.tif",
	}

	if err := WriteRecordsCSV(path, []domain.RasterFileRecord{failed}); err != nil {
		t.Fatalf("WriteRecordsCSV failed: %v", err)
	}

	rows := readCSV(t, path)
	byName := map[string]string{}
	for i, col := range rows[0] {
		byName[col] = rows[1][i]
	}
	if byName["crs_code"] != "" {
		t.Errorf("crs_code = %q, want empty for missing CRS", byName["crs_code"])
	}
	if byName["passes_assumptions"] != "" {
		t.Errorf("passes_assumptions = %q, want empty for failed read", byName["passes_assumptions"])
	}
	if byName["sample_size"] != "" {
		t.Errorf("sample_size = %q, want empty without stats", byName["sample_size"])
	}
	if byName["read_succeeded"] != "false" {
		t.Errorf("read_succeeded = %q, want false", byName["read_succeeded"])
	}
}

func TestWriteResolutionBreakdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resolution_counts.csv")

	common := testRecord("/data/a.tif")
	alsoCommon := testRecord("/data/b.tif")
	rare := testRecord("/data/c.tif")
	rare.ResX, rare.ResY = 50, 50
	failed := testRecord("/data/d.tif")
	failed.ResX = 25 // must not be counted
	failed.ReadSucceeded = false

	err := WriteResolutionBreakdown(path, []domain.RasterFileRecord{common, alsoCommon, rare, failed})
	if err != nil {
		t.Fatalf("WriteResolutionBreakdown failed: %v", err)
	}

	rows := readCSV(t, path)
	want := [][]string{
		{"res_x", "res_y", "count"},
		{"100", "100", "2"},
		{"50", "50", "1"},
	}
	if len(rows) != len(want) {
		t.Fatalf("len(rows) = %d, want %d", len(rows), len(want))
	}
	for i := range want {
		for j := range want[i] {
			if rows[i][j] != want[i][j] {
				t.Errorf("row %d = %v, want %v", i, rows[i], want[i])
				break
			}
		}
	}
}

func TestWriteCRSBreakdownMostFrequentFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crs_counts.csv")

	odd := testRecord("/data/a.tif")
	odd.CRSCode = intPtr(4326)
	records := []domain.RasterFileRecord{odd}
	for _, p := range []string{"/data/b.tif", "/data/c.tif"} {
		records = append(records, testRecord(p))
	}

	if err := WriteCRSBreakdown(path, records); err != nil {
		t.Fatalf("WriteCRSBreakdown failed: %v", err)
	}

	rows := readCSV(t, path)
	if rows[1][0] != "3035" || rows[1][1] != "2" {
		t.Errorf("first data row = %v, want 3035 with count 2", rows[1])
	}
	if rows[2][0] != "4326" || rows[2][1] != "1" {
		t.Errorf("second data row = %v, want 4326 with count 1", rows[2])
	}
}

func TestWriteLogCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cog_log.csv")
	rows := []domain.COGOutputRecord{{
		SourcePath: "/data/a.tif",
		OutputPath: "/cog/a.tif",
		DataType:   domain.DataTypeIndicator,
		Domain:     "air",
		Resampling: domain.ResampleAverage,
		Status:     domain.StatusConverted,
	}}

	if err := WriteLogCSV(path, rows); err != nil {
		t.Fatalf("WriteLogCSV failed: %v", err)
	}

	got := readCSV(t, path)
	if got[0][0] != "source_path" || got[0][len(got[0])-1] != "message" {
		t.Errorf("header = %v", got[0])
	}
	if got[1][6] != "converted" {
		t.Errorf("status column = %q, want converted", got[1][6])
	}
}
