package output

import "context"

// ObjectStorage defines the secondary port for the remote host COGs are
// published to. The Exists probe doubles as the remote-availability check
// the catalog emitter uses for hybrid asset references.
type ObjectStorage interface {
	// List returns all COG objects on the remote host.
	List(ctx context.Context) ([]StorageObject, error)

	// Upload publishes a local file under the given key.
	Upload(ctx context.Context, localPath, key string) error

	// Exists checks if an object exists. A timeout or connection error
	// is reported as absence, never as a failure.
	Exists(ctx context.Context, key string) (bool, error)

	// URL returns the public URL for a key.
	URL(key string) string
}

// StorageObject represents a file on the remote host.
type StorageObject struct {
	Key          string // Object key/path
	Size         int64  // Size in bytes
	LastModified int64  // Unix timestamp
	ETag         string // Content hash
}

// StorageType represents the type of storage backend.
type StorageType string

const (
	StorageTypeS3    StorageType = "s3"
	StorageTypeAzure StorageType = "azure"
	StorageTypeHTTP  StorageType = "http"
	StorageTypeLocal StorageType = "local"
)
