// Package domain contains the core business entities and value objects.
package domain

// DataType classifies a raster file by its role in the dataset.
type DataType string

// Data type constants.
const (
	DataTypeIndicator  DataType = "indicator"
	DataTypeAggregate  DataType = "aggregate"
	DataTypeFinalScore DataType = "final_score"
	DataTypeExclude    DataType = "exclude"
)

// IsProcessable returns true if files of this type enter the pipeline.
func (d DataType) IsProcessable() bool {
	return d == DataTypeIndicator || d == DataTypeAggregate || d == DataTypeFinalScore
}

// Dimension identifies the layer dimension encoded in a filename.
// The zero value means no dimension could be derived.
type Dimension string

// Dimension constants.
const (
	DimensionNone        Dimension = ""
	DimensionResistance  Dimension = "resistance"
	DimensionRecovery    Dimension = "recovery"
	DimensionStatus      Dimension = "status"
	DimensionDomainScore Dimension = "domain_score"
	DimensionResilience  Dimension = "resilience"
)

// IsCategorical returns true for dimensions whose pixel values are class
// labels rather than continuous measurements.
func (d Dimension) IsCategorical() bool {
	return d == DimensionStatus
}

// DomainUnknown is the fallback when no domain can be derived from a path.
const DomainUnknown = "unknown"
