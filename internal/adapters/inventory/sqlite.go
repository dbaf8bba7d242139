// Package inventory provides the SQLite-backed inventory store and the CSV
// exports derived from it. The column names of both tables are the wire
// format shared with downstream tooling and must remain stable.
package inventory

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // database/sql driver

	"github.com/jobrunner/stratum/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS inventory (
	filepath           TEXT PRIMARY KEY,
	filename           TEXT NOT NULL,
	data_type          TEXT NOT NULL,
	domain             TEXT NOT NULL,
	dimension          TEXT,
	rows               INTEGER,
	cols               INTEGER,
	cell_count         INTEGER,
	band_count         INTEGER,
	res_x              REAL,
	res_y              REAL,
	crs_code           INTEGER,
	crs_wkt            TEXT,
	xmin               REAL,
	xmax               REAL,
	ymin               REAL,
	ymax               REAL,
	pixel_type         TEXT,
	file_size_mb       REAL,
	value_min          REAL,
	value_max          REAL,
	value_mean         REAL,
	na_percent         REAL,
	sample_size        INTEGER,
	read_succeeded     INTEGER NOT NULL,
	read_error         TEXT,
	-- NULL for successful reads under an inferred grid: the verdict depends
	-- on the whole table and is recomputed on load, never persisted.
	passes_assumptions INTEGER,
	assumption_error   TEXT,
	canonical_name     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cog_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	source_path TEXT NOT NULL,
	output_path TEXT NOT NULL,
	data_type   TEXT,
	domain      TEXT,
	dimension   TEXT,
	resampling  TEXT,
	status      TEXT NOT NULL,
	message     TEXT
);
`

// Store implements the InventoryStore port on a SQLite database file.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the inventory database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening inventory db: %w", err)
	}

	// One writer at a time; the resume mechanism is cooperative.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating inventory schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// AppendRecords appends a batch of inventory rows in one transaction, so an
// interrupted flush never leaves half a batch behind.
func (s *Store) AppendRecords(ctx context.Context, records []domain.RasterFileRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning inventory append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO inventory (
			filepath, filename, data_type, domain, dimension,
			rows, cols, cell_count, band_count,
			res_x, res_y, crs_code, crs_wkt,
			xmin, xmax, ymin, ymax,
			pixel_type, file_size_mb,
			value_min, value_max, value_mean, na_percent, sample_size,
			read_succeeded, read_error, passes_assumptions, assumption_error,
			canonical_name
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("preparing inventory insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range records {
		rec := &records[i]

		var crsCode any
		if rec.CRSCode != nil {
			crsCode = *rec.CRSCode
		}
		var passes any
		if rec.PassesAssumptions != nil {
			passes = *rec.PassesAssumptions
		}
		var vMin, vMax, vMean, naPct, sampleSize any
		if rec.Stats != nil {
			vMin, vMax, vMean = rec.Stats.Min, rec.Stats.Max, rec.Stats.Mean
			naPct, sampleSize = rec.Stats.NAPercent, rec.Stats.SampleSize
		}

		if _, err := stmt.ExecContext(ctx,
			rec.FilePath, rec.FileName, string(rec.DataType), rec.Domain, nullableString(string(rec.Dimension)),
			rec.Rows, rec.Cols, rec.CellCount, rec.BandCount,
			rec.ResX, rec.ResY, crsCode, rec.CRSWKT,
			rec.XMin, rec.XMax, rec.YMin, rec.YMax,
			rec.PixelType, rec.FileSizeMB,
			vMin, vMax, vMean, naPct, sampleSize,
			rec.ReadSucceeded, nullableString(rec.ReadError), passes, nullableString(rec.AssumptionError),
			rec.CanonicalName,
		); err != nil {
			return fmt.Errorf("inserting inventory row %s: %w", rec.FilePath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing inventory append: %w", err)
	}
	return nil
}

// ProcessedPaths returns the set of file paths already in the inventory.
func (s *Store) ProcessedPaths(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT filepath FROM inventory`)
	if err != nil {
		return nil, fmt.Errorf("loading processed paths: %w", err)
	}
	defer func() { _ = rows.Close() }()

	paths := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths[p] = struct{}{}
	}
	return paths, rows.Err()
}

// LoadRecords returns the complete inventory in insertion order.
func (s *Store) LoadRecords(ctx context.Context) ([]domain.RasterFileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT filepath, filename, data_type, domain, dimension,
			rows, cols, cell_count, band_count,
			res_x, res_y, crs_code, crs_wkt,
			xmin, xmax, ymin, ymax,
			pixel_type, file_size_mb,
			value_min, value_max, value_mean, na_percent, sample_size,
			read_succeeded, read_error, passes_assumptions, assumption_error,
			canonical_name
		FROM inventory ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("loading inventory: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []domain.RasterFileRecord
	for rows.Next() {
		var rec domain.RasterFileRecord
		var dimension, readError, assumptionError sql.NullString
		var crsCode sql.NullInt64
		var passes sql.NullBool
		var vMin, vMax, vMean, naPct sql.NullFloat64
		var sampleSize sql.NullInt64

		if err := rows.Scan(
			&rec.FilePath, &rec.FileName, &rec.DataType, &rec.Domain, &dimension,
			&rec.Rows, &rec.Cols, &rec.CellCount, &rec.BandCount,
			&rec.ResX, &rec.ResY, &crsCode, &rec.CRSWKT,
			&rec.XMin, &rec.XMax, &rec.YMin, &rec.YMax,
			&rec.PixelType, &rec.FileSizeMB,
			&vMin, &vMax, &vMean, &naPct, &sampleSize,
			&rec.ReadSucceeded, &readError, &passes, &assumptionError,
			&rec.CanonicalName,
		); err != nil {
			return nil, err
		}

		rec.Dimension = domain.Dimension(dimension.String)
		rec.ReadError = readError.String
		rec.AssumptionError = assumptionError.String
		if crsCode.Valid {
			code := int(crsCode.Int64)
			rec.CRSCode = &code
		}
		if passes.Valid {
			p := passes.Bool
			rec.PassesAssumptions = &p
		}
		if sampleSize.Valid {
			rec.Stats = &domain.SampleStats{
				Min:        vMin.Float64,
				Max:        vMax.Float64,
				Mean:       vMean.Float64,
				NAPercent:  naPct.Float64,
				SampleSize: int(sampleSize.Int64),
			}
		}

		records = append(records, rec)
	}
	return records, rows.Err()
}

// AppendLog appends a batch of conversion log rows in one transaction.
func (s *Store) AppendLog(ctx context.Context, logRows []domain.COGOutputRecord) error {
	if len(logRows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning log append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cog_log (source_path, output_path, data_type, domain, dimension, resampling, status, message)
		VALUES (?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("preparing log insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, row := range logRows {
		if _, err := stmt.ExecContext(ctx,
			row.SourcePath, row.OutputPath, string(row.DataType), row.Domain,
			nullableString(string(row.Dimension)), string(row.Resampling),
			string(row.Status), nullableString(row.Message),
		); err != nil {
			return fmt.Errorf("inserting log row %s: %w", row.SourcePath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing log append: %w", err)
	}
	return nil
}

// LoadLog returns the complete conversion log in insertion order.
func (s *Store) LoadLog(ctx context.Context) ([]domain.COGOutputRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_path, output_path, data_type, domain, dimension, resampling, status, message
		FROM cog_log ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("loading conversion log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.COGOutputRecord
	for rows.Next() {
		var row domain.COGOutputRecord
		var dimension, message sql.NullString
		if err := rows.Scan(
			&row.SourcePath, &row.OutputPath, &row.DataType, &row.Domain,
			&dimension, &row.Resampling, &row.Status, &message,
		); err != nil {
			return nil, err
		}
		row.Dimension = domain.Dimension(dimension.String)
		row.Message = message.String
		out = append(out, row)
	}
	return out, rows.Err()
}

// nullableString stores the empty string as NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
