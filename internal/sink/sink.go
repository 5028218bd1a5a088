// Package sink persists downloaded artifacts to the remote store and cleans
// up the local copies.
package sink

import (
	"context"
	"errors"
	"os"
	"time"

	"go.uber.org/zap"

	"paper-archiver/internal/archive"
	"paper-archiver/internal/metrics"
	"paper-archiver/internal/store"
)

// Config controls local cleanup behavior.
type Config struct {
	CleanupAttempts int
	CleanupDelay    time.Duration
}

// Sink implements archive.Sink over an injected store and notifier.
//
// The local file is deleted iff the upload succeeded. A failed upload leaves
// the file on disk so the operator can retry manually. Deletion itself is
// retried a bounded number of times; a file that stays locked is logged and
// left behind rather than escalated.
type Sink struct {
	store    store.Store
	notifier archive.Notifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
	cfg      Config

	// remove is swappable so tests can simulate a held-open file.
	remove func(string) error
}

// New builds a Sink.
func New(st store.Store, notifier archive.Notifier, m *metrics.Metrics, cfg Config, logger *zap.Logger) *Sink {
	if cfg.CleanupAttempts <= 0 {
		cfg.CleanupAttempts = 5
	}
	if cfg.CleanupDelay <= 0 {
		cfg.CleanupDelay = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{
		store:    st,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
		remove:   os.Remove,
	}
}

// Archive uploads the artifact, removes the local copy on success, and
// notifies. Upload failure returns a *archive.UploadError with the local
// file retained; cleanup and notification failures never fail the call.
func (s *Sink) Archive(ctx context.Context, artifact archive.Artifact) (archive.RemoteRef, error) {
	ref, err := s.store.Create(ctx, artifact.Name, artifact.LocalPath)
	if err != nil {
		if s.metrics != nil {
			s.metrics.UploadFailures.Inc()
		}
		var uploadErr *archive.UploadError
		if !errors.As(err, &uploadErr) {
			err = &archive.UploadError{Name: artifact.Name, Cause: err}
		}
		return archive.RemoteRef{}, err
	}
	if s.metrics != nil {
		s.metrics.Uploads.Inc()
	}
	s.logger.Info("artifact uploaded",
		zap.String("name", ref.Name),
		zap.String("id", ref.ID),
		zap.String("view_link", ref.ViewLink),
		zap.String("sha256", artifact.SHA256),
	)

	s.removeLocal(ctx, artifact)

	if s.notifier != nil {
		if err := s.notifier.UploadComplete(ctx, ref); err != nil {
			s.logger.Warn("completion notification failed",
				zap.String("name", ref.Name),
				zap.Error(err),
			)
		}
	}
	return ref, nil
}

func (s *Sink) removeLocal(ctx context.Context, artifact archive.Artifact) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.CleanupAttempts; attempt++ {
		lastErr = s.remove(artifact.LocalPath)
		if lastErr == nil {
			s.logger.Info("deleted local artifact", zap.String("path", artifact.LocalPath))
			return
		}
		if attempt < s.cfg.CleanupAttempts {
			s.logger.Warn("local delete failed, will retry",
				zap.String("path", artifact.LocalPath),
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			if s.metrics != nil {
				s.metrics.CleanupRetries.Inc()
			}
			archive.Sleep(ctx, s.cfg.CleanupDelay)
		}
	}
	// Stale file on disk is an accepted terminal state.
	s.logger.Warn("giving up on local delete, file left on disk",
		zap.String("path", artifact.LocalPath),
		zap.Error(lastErr),
	)
	if s.metrics != nil {
		s.metrics.StaleArtifacts.Inc()
	}
}
