package application

import (
	"context"

	"github.com/jobrunner/stratum/internal/domain"
	"github.com/jobrunner/stratum/internal/ports/output"
)

// Grid validation modes.
const (
	GridModeFixed    = "fixed"
	GridModeInferred = "inferred"
)

// GridConfig selects how expected grid parameters are obtained: fixed
// constants from configuration, or the mode of the observed values.
type GridConfig struct {
	Mode string
	Grid domain.ExpectedGrid // used in fixed mode
}

// markValidation fills the validation outcome of every successfully-read
// record in place. In inferred mode the expected grid is derived from the
// records themselves first, which is why this needs the complete table.
func markValidation(records []domain.RasterFileRecord, cfg GridConfig) error {
	grid := cfg.Grid
	if cfg.Mode == GridModeInferred {
		inferred, err := domain.InferGrid(records)
		if err != nil {
			return err
		}
		grid = inferred
	}

	for i := range records {
		if !records[i].ReadSucceeded {
			continue
		}
		passes, reason := grid.Validate(&records[i])
		records[i].MarkValidated(passes, reason)
	}
	return nil
}

// loadPartitions loads the complete inventory, applies validation per the
// grid config, and partitions it. Inventory and conversion stages share
// this so they agree on what "consistent" means.
func loadPartitions(ctx context.Context, store output.InventoryStore, cfg GridConfig) (domain.InventoryPartitions, error) {
	records, err := store.LoadRecords(ctx)
	if err != nil {
		return domain.InventoryPartitions{}, err
	}
	if err := markValidation(records, cfg); err != nil {
		return domain.InventoryPartitions{}, err
	}
	return domain.PartitionRecords(records), nil
}

// consistentRecords returns the consistent partition, failing with a
// missing-artifact error when the inventory is empty so the operator knows
// which stage to run first.
func consistentRecords(ctx context.Context, store output.InventoryStore, cfg GridConfig, inventoryPath string) ([]domain.RasterFileRecord, error) {
	parts, err := loadPartitions(ctx, store, cfg)
	if err != nil {
		return nil, err
	}
	if parts.Total() == 0 {
		return nil, &domain.MissingArtifactError{Path: inventoryPath, ProducedBy: "stratum inventory"}
	}
	return parts.Consistent, nil
}
