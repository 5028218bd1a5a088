package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paper-archiver/internal/archive"
	"paper-archiver/internal/hash/sha256"
)

func newTestDownloader(attempts int) *Downloader {
	return New(
		Config{UserAgent: "archiver-test", Timeout: 5 * time.Second},
		archive.NewExponentialRetryPolicy(attempts, time.Millisecond, 10*time.Millisecond),
		nil,
		zap.NewNop(),
	)
}

func TestDownloadWritesArtifact(t *testing.T) {
	t.Parallel()

	content := []byte("%PDF-1.5 fake pdf bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(content)
	}))
	defer server.Close()

	dir := t.TempDir()
	d := newTestDownloader(3)
	ref := archive.PageRef{URL: server.URL + "/files/1234-Paper-Conference.pdf", Kind: archive.KindPDF}

	artifact, err := d.Download(context.Background(), ref, dir)
	require.NoError(t, err)
	require.Equal(t, "1234-Paper-Conference.pdf", artifact.Name)
	require.Equal(t, int64(len(content)), artifact.Size)
	require.Equal(t, filepath.Join(dir, "1234-Paper-Conference.pdf"), artifact.LocalPath)
	require.Equal(t, sha256.Sum(content), artifact.SHA256)

	written, err := os.ReadFile(artifact.LocalPath)
	require.NoError(t, err)
	require.Equal(t, content, written)
}

func TestDownloadErrorStatusFailsWithoutRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	d := newTestDownloader(3)
	ref := archive.PageRef{URL: server.URL + "/files/missing-Paper.pdf", Kind: archive.KindPDF}

	_, err := d.Download(context.Background(), ref, t.TempDir())
	require.Error(t, err)

	var fetchErr *archive.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, 1, fetchErr.Attempts, "a definitive error status must not enter the retry loop")
	require.Equal(t, int32(1), calls.Load())
}

func TestDownloadTransportErrorRetries(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL + "/files/gone-Paper.pdf"
	server.Close()

	d := newTestDownloader(2)
	_, err := d.Download(context.Background(), archive.PageRef{URL: url, Kind: archive.KindPDF}, t.TempDir())
	require.Error(t, err)

	var fetchErr *archive.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, 2, fetchErr.Attempts)
}

func TestDownloadRejectsURLWithoutFileName(t *testing.T) {
	t.Parallel()

	d := newTestDownloader(1)
	_, err := d.Download(context.Background(), archive.PageRef{URL: "https://example.org/", Kind: archive.KindPDF}, t.TempDir())
	require.Error(t, err)
}
