package domain

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnsupported  = errors.New("unsupported operation")
	ErrInternal     = errors.New("internal error")
	ErrUnavailable  = errors.New("service unavailable")
)

// Specific errors.
var (
	ErrNoUsableRecords    = fmt.Errorf("no usable records: %w", ErrInvalidInput)
	ErrNothingToProcess   = errors.New("nothing to process")
	ErrUploadNotSupported = fmt.Errorf("upload: %w", ErrUnsupported)
)

// MissingArtifactError reports a missing upstream artifact together with the
// stage that should have produced it. It is fatal for the running stage.
type MissingArtifactError struct {
	Path       string // The expected file
	ProducedBy string // The stage command that writes it
}

// Error implements the error interface.
func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("missing input %s: run %q first", e.Path, e.ProducedBy)
}

// Unwrap returns the underlying error type.
func (e *MissingArtifactError) Unwrap() error {
	return ErrNotFound
}

// RasterError wraps a failure of the raster reader or writer for one file.
type RasterError struct {
	Op   string // Operation that failed (info, sample, convert)
	Path string // Source file path
	Err  error  // Underlying error
}

// Error implements the error interface.
func (e *RasterError) Error() string {
	return fmt.Sprintf("raster %s failed for %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *RasterError) Unwrap() error {
	return e.Err
}

// StorageError represents an error during object storage operations.
type StorageError struct {
	Operation string // Operation that failed (upload, list, exists)
	Key       string // Object key
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage error during %s for %s: %v",
			e.Operation, e.Key, e.Err)
	}
	return fmt.Sprintf("storage error during %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// StacError represents a data-integrity problem while building one item.
type StacError struct {
	ItemID string // Item identifier
	Err    error  // Underlying error
}

// Error implements the error interface.
func (e *StacError) Error() string {
	return fmt.Sprintf("stac item %s: %v", e.ItemID, e.Err)
}

// Unwrap returns the underlying error.
func (e *StacError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string // Configuration field
	Message string // Error message
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error type.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidInput
}
