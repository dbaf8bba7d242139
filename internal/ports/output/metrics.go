package output

import "time"

// MetricsCollector defines the secondary port for metrics collection.
type MetricsCollector interface {
	// IncFilesProcessed increments the per-stage file counter.
	IncFilesProcessed(stage, status string)

	// ObserveFileDuration records how long one file took in a stage.
	ObserveFileDuration(stage string, duration time.Duration)

	// SetPartitionSize sets the size of an inventory partition.
	SetPartitionSize(partition string, count int)

	// IncStorageOperations increments the storage operation counter.
	IncStorageOperations(operation string, success bool)

	// ObserveStorageDuration records storage operation duration.
	ObserveStorageDuration(operation string, duration time.Duration)
}

// NoOpMetrics is a no-op implementation of MetricsCollector.
type NoOpMetrics struct{}

// IncFilesProcessed implements MetricsCollector.
func (n *NoOpMetrics) IncFilesProcessed(_, _ string) {}

// ObserveFileDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveFileDuration(_ string, _ time.Duration) {}

// SetPartitionSize implements MetricsCollector.
func (n *NoOpMetrics) SetPartitionSize(_ string, _ int) {}

// IncStorageOperations implements MetricsCollector.
func (n *NoOpMetrics) IncStorageOperations(_ string, _ bool) {}

// ObserveStorageDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveStorageDuration(_ string, _ time.Duration) {}
