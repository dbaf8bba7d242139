// Package metrics provides Prometheus metrics collection.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements the MetricsCollector port using Prometheus.
type Collector struct {
	filesProcessed    *prometheus.CounterVec
	fileDuration      *prometheus.HistogramVec
	partitionSize     *prometheus.GaugeVec
	storageOperations *prometheus.CounterVec
	storageDuration   *prometheus.HistogramVec
}

// NewCollector creates a new Prometheus metrics collector.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "stratum"
	}

	return &Collector{
		filesProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_processed_total",
				Help:      "Total number of files processed per stage",
			},
			[]string{"stage", "status"},
		),

		fileDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "file_duration_seconds",
				Help:      "Per-file processing duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),

		partitionSize: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "inventory_partition_size",
				Help:      "Number of inventory rows per partition",
			},
			[]string{"partition"},
		),

		storageOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_operations_total",
				Help:      "Total number of remote storage operations",
			},
			[]string{"operation", "status"},
		),

		storageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "storage_duration_seconds",
				Help:      "Remote storage operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// IncFilesProcessed increments the per-stage file counter.
func (c *Collector) IncFilesProcessed(stage, status string) {
	c.filesProcessed.WithLabelValues(stage, status).Inc()
}

// ObserveFileDuration records how long one file took in a stage.
func (c *Collector) ObserveFileDuration(stage string, duration time.Duration) {
	c.fileDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// SetPartitionSize sets the size of an inventory partition.
func (c *Collector) SetPartitionSize(partition string, count int) {
	c.partitionSize.WithLabelValues(partition).Set(float64(count))
}

// IncStorageOperations increments the storage operation counter.
func (c *Collector) IncStorageOperations(operation string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	c.storageOperations.WithLabelValues(operation, status).Inc()
}

// ObserveStorageDuration records storage operation duration.
func (c *Collector) ObserveStorageDuration(operation string, duration time.Duration) {
	c.storageDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
