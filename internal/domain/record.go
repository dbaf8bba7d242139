package domain

// SampleStats holds summary statistics computed from a pixel sample.
type SampleStats struct {
	Min        float64 // Minimum sampled value
	Max        float64 // Maximum sampled value
	Mean       float64 // Mean of non-NA sampled values
	NAPercent  float64 // Share of NA pixels in the sample, 0-100
	SampleSize int     // Number of pixels drawn
}

// RasterFileRecord is one row of the inventory: everything known about a
// single source raster. Records are append-only; once flushed to the store
// they are never mutated.
type RasterFileRecord struct {
	// Identity
	FilePath string // Unique key within a run
	FileName string

	// Classification
	DataType  DataType
	Domain    string
	Dimension Dimension

	// Structural header fields (valid only when ReadSucceeded)
	Rows       int
	Cols       int
	CellCount  int64
	BandCount  int
	ResX       float64
	ResY       float64
	CRSCode    *int // EPSG code, nil when not derivable
	CRSWKT     string
	XMin       float64
	XMax       float64
	YMin       float64
	YMax       float64
	PixelType  string
	FileSizeMB float64

	// Sampled statistics, nil when only headers were read
	Stats *SampleStats

	// Outcome
	ReadSucceeded     bool
	ReadError         string
	PassesAssumptions *bool // nil if and only if the read failed
	AssumptionError   string

	// Derived
	CanonicalName string // Collision-safe output basename
}

// Extent returns the record's native bounding box.
func (r *RasterFileRecord) Extent() Extent {
	return Extent{MinX: r.XMin, MinY: r.YMin, MaxX: r.XMax, MaxY: r.YMax}
}

// MarkReadFailure degrades the record to a failed read. The classification
// and identity fields are kept so the failure can be reported and retried.
func (r *RasterFileRecord) MarkReadFailure(err error) {
	r.ReadSucceeded = false
	r.ReadError = err.Error()
	r.PassesAssumptions = nil
	r.AssumptionError = ""
}

// MarkValidated records the assumption check outcome.
func (r *RasterFileRecord) MarkValidated(passes bool, reason string) {
	r.PassesAssumptions = &passes
	r.AssumptionError = reason
}

// IsConsistent returns true if the read succeeded and all assumptions held.
func (r *RasterFileRecord) IsConsistent() bool {
	return r.ReadSucceeded && r.PassesAssumptions != nil && *r.PassesAssumptions
}

// IsInconsistent returns true if the read succeeded but an assumption failed.
func (r *RasterFileRecord) IsInconsistent() bool {
	return r.ReadSucceeded && r.PassesAssumptions != nil && !*r.PassesAssumptions
}

// InventoryPartitions is the result of the finalize pass over the full
// inventory table.
type InventoryPartitions struct {
	Consistent   []RasterFileRecord // Read OK, assumptions hold
	Inconsistent []RasterFileRecord // Read OK, assumptions violated
	Failed       []RasterFileRecord // Read failed
}

// Total returns the number of records across all partitions.
func (p *InventoryPartitions) Total() int {
	return len(p.Consistent) + len(p.Inconsistent) + len(p.Failed)
}

// PartitionRecords splits a complete inventory table into its three
// partitions, preserving table order within each.
func PartitionRecords(records []RasterFileRecord) InventoryPartitions {
	var p InventoryPartitions
	for _, rec := range records {
		switch {
		case !rec.ReadSucceeded:
			p.Failed = append(p.Failed, rec)
		case rec.IsConsistent():
			p.Consistent = append(p.Consistent, rec)
		default:
			p.Inconsistent = append(p.Inconsistent, rec)
		}
	}
	return p
}

// ConversionStatus is the outcome of one COG conversion attempt.
type ConversionStatus string

// Conversion status constants.
const (
	StatusConverted     ConversionStatus = "converted"
	StatusSkippedExists ConversionStatus = "skipped_exists"
	StatusFailed        ConversionStatus = "failed"
)

// COGOutputRecord is one row of the conversion log.
type COGOutputRecord struct {
	SourcePath string
	OutputPath string
	DataType   DataType
	Domain     string
	Dimension  Dimension
	Resampling Resampling
	Status     ConversionStatus
	Message    string
}
