package collyfetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paper-archiver/internal/archive"
)

func newTestFetcher(attempts int) *Fetcher {
	return New(
		Config{UserAgent: "archiver-test", Timeout: 5 * time.Second},
		archive.NewFixedRetryPolicy(attempts, time.Millisecond),
		nil,
		zap.NewNop(),
	)
}

func TestFetchPageSuccess(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer server.Close()

	f := newTestFetcher(3)
	body, err := f.FetchPage(context.Background(), archive.PageRef{URL: server.URL, Kind: archive.KindRoot})
	require.NoError(t, err)
	require.Equal(t, []byte("<html>ok</html>"), body)
}

func TestFetchPageRecoversWithinRetryBudget(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("<html>recovered</html>"))
	}))
	defer server.Close()

	f := newTestFetcher(3)
	body, err := f.FetchPage(context.Background(), archive.PageRef{URL: server.URL, Kind: archive.KindYear})
	require.NoError(t, err)
	require.Equal(t, []byte("<html>recovered</html>"), body)
	require.Equal(t, int32(3), calls.Load(), "success on the 3rd attempt must not trigger a 4th")
}

func TestFetchPageExhaustsRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := newTestFetcher(3)
	_, err := f.FetchPage(context.Background(), archive.PageRef{URL: server.URL, Kind: archive.KindPaper})
	require.Error(t, err)

	var fetchErr *archive.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, server.URL, fetchErr.URL)
	require.Equal(t, 3, fetchErr.Attempts)
	require.Equal(t, int32(3), calls.Load())
}

func TestFetchPageCanceledContext(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte("late"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newTestFetcher(3)
	_, err := f.FetchPage(ctx, archive.PageRef{URL: server.URL, Kind: archive.KindRoot})
	require.Error(t, err)
}
