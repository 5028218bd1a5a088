// Package gcs provides a Store backed by Google Cloud Storage.
// Authentication is handled via Application Default Credentials.
package gcs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"cloud.google.com/go/storage"

	"paper-archiver/internal/archive"
)

// Config captures the parameters required to write to GCS.
type Config struct {
	Bucket string
	Prefix string
}

// Store uploads artifacts to a configured GCS bucket.
type Store struct {
	client *storage.Client
	cfg    Config
}

// New creates a GCS-backed store and verifies bucket access, failing fast on
// startup if the configuration is wrong.
func New(ctx context.Context, client *storage.Client, cfg Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if _, err := client.Bucket(cfg.Bucket).Attrs(ctx); err != nil {
		return nil, fmt.Errorf("get bucket %q attributes: %w", cfg.Bucket, err)
	}
	return &Store{client: client, cfg: cfg}, nil
}

// Create uploads the file at localPath and returns a gs:// reference.
func (s *Store) Create(ctx context.Context, name, localPath string) (archive.RemoteRef, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return archive.RemoteRef{}, &archive.UploadError{Name: name, Cause: fmt.Errorf("open artifact: %w", err)}
	}
	defer func() { _ = file.Close() }()

	object := path.Join(s.cfg.Prefix, name)
	writer := s.client.Bucket(s.cfg.Bucket).Object(object).NewWriter(ctx)
	writer.ContentType = "application/pdf"

	if _, err := io.Copy(writer, file); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			err = fmt.Errorf("%w (close writer: %v)", err, closeErr)
		}
		return archive.RemoteRef{}, &archive.UploadError{Name: name, Cause: fmt.Errorf("copy object: %w", err)}
	}
	if err := writer.Close(); err != nil {
		return archive.RemoteRef{}, &archive.UploadError{Name: name, Cause: fmt.Errorf("close writer: %w", err)}
	}

	uri := fmt.Sprintf("gs://%s/%s", s.cfg.Bucket, object)
	return archive.RemoteRef{ID: object, Name: name, ViewLink: uri}, nil
}
