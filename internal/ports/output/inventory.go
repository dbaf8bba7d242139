package output

import (
	"context"

	"github.com/jobrunner/stratum/internal/domain"
)

// InventoryStore defines the secondary port for the persistent inventory
// and conversion log. Writes are append-only: a record, once stored, is
// never mutated. Exactly one process owns a store at a time; the resume
// mechanism trusts the stored contents rather than locking.
type InventoryStore interface {
	// AppendRecords appends a batch of inventory rows.
	AppendRecords(ctx context.Context, records []domain.RasterFileRecord) error

	// ProcessedPaths returns the set of file paths already present,
	// used to filter discovery on resumed runs.
	ProcessedPaths(ctx context.Context) (map[string]struct{}, error)

	// LoadRecords returns the complete inventory in insertion order.
	LoadRecords(ctx context.Context) ([]domain.RasterFileRecord, error)

	// AppendLog appends a batch of conversion log rows.
	AppendLog(ctx context.Context, rows []domain.COGOutputRecord) error

	// LoadLog returns the complete conversion log in insertion order.
	LoadLog(ctx context.Context) ([]domain.COGOutputRecord, error)

	// Close releases the underlying storage.
	Close() error
}
