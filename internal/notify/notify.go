// Package notify publishes completion events for archived artifacts.
package notify

import (
	"context"

	"paper-archiver/internal/archive"
)

// NoOp is a notifier that drops events. Default when no broker is configured.
type NoOp struct{}

// UploadComplete for NoOp does nothing.
func (NoOp) UploadComplete(context.Context, archive.RemoteRef) error {
	return nil
}
