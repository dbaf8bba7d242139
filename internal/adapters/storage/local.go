// Package storage provides the remote-host adapters COGs are published to.
package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jobrunner/stratum/internal/ports/output"
)

// LocalStorage implements ObjectStorage on a local directory. It exists so
// the publish and hybrid-catalog paths can be exercised without a cloud
// account, e.g. against a directory served by a separate web server.
type LocalStorage struct {
	basePath string
	baseURL  string
}

// NewLocalStorage creates a local storage adapter.
func NewLocalStorage(basePath, baseURL string) *LocalStorage {
	return &LocalStorage{
		basePath: basePath,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
	}
}

// List returns all COG files under the base directory.
func (s *LocalStorage) List(_ context.Context) ([]output.StorageObject, error) {
	var objects []output.StorageObject

	err := filepath.Walk(s.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(info.Name()), ".tif") {
			return nil
		}

		relPath, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}

		objects = append(objects, output.StorageObject{
			Key:          filepath.ToSlash(relPath),
			Size:         info.Size(),
			LastModified: info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return objects, nil
}

// Upload copies a local file under the base directory.
func (s *LocalStorage) Upload(_ context.Context, localPath, key string) error {
	dest := filepath.Join(s.basePath, filepath.FromSlash(key))
	if dest == localPath {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer func() { _ = dst.Close() }()

	_, err = io.Copy(dst, src)
	return err
}

// Exists checks if a file exists under the base directory.
func (s *LocalStorage) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.basePath, filepath.FromSlash(key)))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// URL returns the public URL for a key when a base URL is configured, the
// absolute file path otherwise.
func (s *LocalStorage) URL(key string) string {
	if s.baseURL != "" {
		return s.baseURL + "/" + key
	}
	return filepath.Join(s.basePath, filepath.FromSlash(key))
}
