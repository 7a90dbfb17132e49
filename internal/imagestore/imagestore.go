// Package imagestore persists processed image blobs and resolves their public
// URLs. Two backends exist: the local filesystem and Google Cloud Storage.
// The backend is a process-wide decision made once at startup.
package imagestore

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/wildwatch/wildwatch-go/internal/conf"
)

// Store is the persistence strategy for processed image bytes.
type Store interface {
	// Name identifies the backend variant ("local" or "gcs").
	Name() string
	// Save persists the blob and returns its publicly resolvable URL.
	Save(ctx context.Context, name string, data []byte, contentType string) (string, error)
	// Delete removes the blob where the backend supports it. It reports
	// whether a blob was actually removed; backends may legitimately no-op.
	Delete(ctx context.Context, name string) (bool, error)
	// URL resolves the public URL of a stored blob without writing.
	URL(name string) string
}

// New selects the storage backend from settings. A failure to initialize the
// remote backend degrades to the local filesystem with a warning so the
// serving capability is never entirely lost.
func New(ctx context.Context, settings *conf.Settings, logger *slog.Logger) (Store, error) {
	switch strings.ToLower(settings.Storage.Backend) {
	case "gcs":
		store, err := NewGCSStore(ctx, &settings.Storage.GCS)
		if err != nil {
			if logger != nil {
				logger.Warn("failed to initialize GCS storage backend, falling back to local",
					"bucket", settings.Storage.GCS.Bucket,
					"error", err)
			}
			return NewLocalStore(settings.Storage.Local.Path)
		}
		if logger != nil {
			logger.Info("using GCS storage backend", "bucket", settings.Storage.GCS.Bucket)
		}
		return store, nil
	default:
		if logger != nil {
			logger.Info("using local storage backend", "path", settings.Storage.Local.Path)
		}
		return NewLocalStore(settings.Storage.Local.Path)
	}
}

// ContentType derives the blob content type from the stored file's extension.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".bmp":
		return "image/bmp"
	case ".tiff":
		return "image/tiff"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
