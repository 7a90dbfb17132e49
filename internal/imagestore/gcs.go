// gcs.go: Google Cloud Storage backed image store
package imagestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/wildwatch/wildwatch-go/internal/conf"
	"github.com/wildwatch/wildwatch-go/internal/errors"
)

const gcsWriteTimeout = 2 * time.Minute

// GCSStore persists image blobs as publicly readable objects in a bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStore creates a storage client for the configured bucket.
func NewGCSStore(ctx context.Context, settings *conf.GCSStorageSettings) (*GCSStore, error) {
	if settings.Bucket == "" {
		return nil, errors.Newf("gcs storage backend selected but bucket is empty").
			Component("imagestore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	var opts []option.ClientOption
	if settings.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(settings.CredentialsPath))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.New(err).
			Component("imagestore").
			Category(errors.CategoryConfiguration).
			Context("bucket", settings.Bucket).
			Build()
	}

	return &GCSStore{
		client: client,
		bucket: settings.Bucket,
		prefix: settings.Prefix,
	}, nil
}

// Name identifies the backend variant.
func (s *GCSStore) Name() string {
	return "gcs"
}

// Save uploads the blob with a public-read ACL and returns the provider URL.
func (s *GCSStore) Save(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, gcsWriteTimeout)
	defer cancel()

	object := s.client.Bucket(s.bucket).Object(s.prefix + name)
	w := object.NewWriter(ctx)
	w.ContentType = contentType
	w.PredefinedACL = "publicRead"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", errors.New(err).
			Component("imagestore").
			Category(errors.CategoryImageStorage).
			Context("backend", "gcs").
			Context("image_name", name).
			Build()
	}
	if err := w.Close(); err != nil {
		return "", errors.New(err).
			Component("imagestore").
			Category(errors.CategoryImageStorage).
			Context("backend", "gcs").
			Context("image_name", name).
			Build()
	}

	return s.URL(name), nil
}

// Delete is a documented no-op: remote blobs are left in place when an image
// group is deleted, only the local backend removes its file.
func (s *GCSStore) Delete(ctx context.Context, name string) (bool, error) {
	return false, nil
}

// URL returns the provider's public object URL.
func (s *GCSStore) URL(name string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s%s", s.bucket, s.prefix, name)
}
