// local.go: filesystem backed image store
package imagestore

import (
	"context"
	"os"
	"path/filepath"

	"github.com/wildwatch/wildwatch-go/internal/errors"
)

// ServePath is the route prefix under which the application serves locally
// stored blobs.
const ServePath = "/api/detection/uploads"

// LocalStore persists image blobs in a directory and resolves them to the
// application's own upload serving route.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the storage directory if needed and returns the store.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.New(err).
			Component("imagestore").
			Category(errors.CategoryConfiguration).
			Context("path", dir).
			Build()
	}
	return &LocalStore{dir: dir}, nil
}

// Name identifies the backend variant.
func (s *LocalStore) Name() string {
	return "local"
}

// Dir returns the storage directory, used by the upload serving route.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Save writes the blob under the storage directory. The name is reduced to
// its base component so uploads cannot escape the directory.
func (s *LocalStore) Save(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	base := filepath.Base(name)
	path := filepath.Join(s.dir, base)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.New(err).
			Component("imagestore").
			Category(errors.CategoryImageStorage).
			Context("backend", "local").
			Context("image_name", base).
			Build()
	}
	return s.URL(base), nil
}

// Delete removes the stored blob. A missing file is not an error.
func (s *LocalStore) Delete(ctx context.Context, name string) (bool, error) {
	path := filepath.Join(s.dir, filepath.Base(name))
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.New(err).
			Component("imagestore").
			Category(errors.CategoryImageStorage).
			Context("backend", "local").
			Context("image_name", name).
			Build()
	}
	return true, nil
}

// URL resolves a stored blob to the application's serving route.
func (s *LocalStore) URL(name string) string {
	return ServePath + "/" + filepath.Base(name)
}
