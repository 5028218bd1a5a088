package sink

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paper-archiver/internal/archive"
)

type fakeStore struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (s *fakeStore) Create(_ context.Context, name, _ string) (archive.RemoteRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return archive.RemoteRef{}, s.err
	}
	return archive.RemoteRef{ID: "remote-1", Name: name, ViewLink: "https://example.org/view/remote-1"}, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []archive.RemoteRef
	err    error
}

func (n *fakeNotifier) UploadComplete(_ context.Context, ref archive.RemoteRef) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ref)
	return n.err
}

func writeArtifact(t *testing.T) archive.Artifact {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test-Paper.pdf")
	require.NoError(t, os.WriteFile(path, []byte("pdf"), 0o600))
	return archive.Artifact{Name: "test-Paper.pdf", LocalPath: path, Size: 3}
}

func testConfig() Config {
	return Config{CleanupAttempts: 3, CleanupDelay: time.Millisecond}
}

func TestArchiveUploadsAndDeletesLocal(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	notifier := &fakeNotifier{}
	s := New(store, notifier, nil, testConfig(), zap.NewNop())
	artifact := writeArtifact(t)

	ref, err := s.Archive(context.Background(), artifact)
	require.NoError(t, err)
	require.Equal(t, "remote-1", ref.ID)
	require.Equal(t, 1, store.calls)

	_, statErr := os.Stat(artifact.LocalPath)
	require.True(t, os.IsNotExist(statErr), "local artifact should be removed after a successful upload")
	require.Len(t, notifier.events, 1)
	require.Equal(t, "test-Paper.pdf", notifier.events[0].Name)
}

func TestArchiveUploadFailureRetainsLocal(t *testing.T) {
	t.Parallel()

	store := &fakeStore{err: errors.New("remote rejected write")}
	s := New(store, &fakeNotifier{}, nil, testConfig(), zap.NewNop())
	artifact := writeArtifact(t)

	_, err := s.Archive(context.Background(), artifact)
	require.Error(t, err)

	var uploadErr *archive.UploadError
	require.ErrorAs(t, err, &uploadErr)
	require.Equal(t, "test-Paper.pdf", uploadErr.Name)

	_, statErr := os.Stat(artifact.LocalPath)
	require.NoError(t, statErr, "local artifact must survive a failed upload")
}

func TestArchiveRetriesLockedDelete(t *testing.T) {
	t.Parallel()

	s := New(&fakeStore{}, &fakeNotifier{}, nil, testConfig(), zap.NewNop())
	artifact := writeArtifact(t)

	var attempts int
	s.remove = func(path string) error {
		attempts++
		if attempts < 3 {
			return errors.New("file held open by another process")
		}
		return os.Remove(path)
	}

	_, err := s.Archive(context.Background(), artifact)
	require.NoError(t, err)
	require.Equal(t, 3, attempts)

	_, statErr := os.Stat(artifact.LocalPath)
	require.True(t, os.IsNotExist(statErr))
}

func TestArchiveGivesUpOnStuckDelete(t *testing.T) {
	t.Parallel()

	s := New(&fakeStore{}, &fakeNotifier{}, nil, testConfig(), zap.NewNop())
	artifact := writeArtifact(t)

	var attempts int
	s.remove = func(string) error {
		attempts++
		return errors.New("file held open by another process")
	}

	// Stale file on disk is accepted, not escalated.
	_, err := s.Archive(context.Background(), artifact)
	require.NoError(t, err)
	require.Equal(t, 3, attempts)

	_, statErr := os.Stat(artifact.LocalPath)
	require.NoError(t, statErr)
}

func TestArchiveNotifierFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	notifier := &fakeNotifier{err: errors.New("broker unavailable")}
	s := New(&fakeStore{}, notifier, nil, testConfig(), zap.NewNop())
	artifact := writeArtifact(t)

	_, err := s.Archive(context.Background(), artifact)
	require.NoError(t, err)
}
