// Package store defines the remote object store interface. The abstraction
// keeps the pipeline independent of a specific backend (Google Drive, GCS,
// or a no-op for dry runs).
package store

import (
	"context"

	"paper-archiver/internal/archive"
)

// Store uploads a local file to the remote object store.
type Store interface {
	// Create uploads the file at localPath under name and returns a
	// reference to the remote object.
	Create(ctx context.Context, name, localPath string) (archive.RemoteRef, error)
}

// NoOp is a store that discards uploads. Useful for dry runs where papers
// are fetched but not persisted remotely.
type NoOp struct{}

// Create for NoOp does nothing and reports success.
func (NoOp) Create(_ context.Context, name, _ string) (archive.RemoteRef, error) {
	return archive.RemoteRef{ID: "noop", Name: name}, nil
}
