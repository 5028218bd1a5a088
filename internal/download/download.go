// Package download streams binary artifacts to local disk.
//
// It deliberately bypasses the colly collector used for page fetches: the
// collector buffers whole responses in memory, which is the wrong shape for
// multi-megabyte PDFs. Transport errors are retried per the injected policy;
// a well-formed non-2xx response is a definitive answer from the server and
// fails immediately without entering the retry loop.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"paper-archiver/internal/archive"
	"paper-archiver/internal/hash/sha256"
	"paper-archiver/internal/metrics"
)

// Config controls transfer behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Downloader implements archive.Downloader over a plain HTTP client.
type Downloader struct {
	cfg     Config
	client  *http.Client
	policy  archive.RetryPolicy
	metrics *metrics.Metrics
	logger  *zap.Logger
}

type statusError struct {
	url  string
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.code, e.url)
}

// New builds a Downloader.
func New(cfg Config, policy archive.RetryPolicy, m *metrics.Metrics, logger *zap.Logger) *Downloader {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		policy:  policy,
		metrics: m,
		logger:  logger,
	}
}

// Download retrieves ref into dir, naming the file after the URL's final path
// segment. The returned artifact belongs to the caller.
func (d *Downloader) Download(ctx context.Context, ref archive.PageRef, dir string) (archive.Artifact, error) {
	name, err := artifactName(ref.URL)
	if err != nil {
		return archive.Artifact{}, err
	}
	target := filepath.Join(dir, name)

	var lastErr error
	for attempt := 1; ; attempt++ {
		size, digest, err := d.downloadOnce(ctx, ref.URL, target)
		if err == nil {
			if d.metrics != nil {
				d.metrics.Downloads.Inc()
				d.metrics.DownloadBytes.Add(float64(size))
			}
			return archive.Artifact{
				Name:      name,
				LocalPath: target,
				Size:      size,
				SHA256:    digest,
				SourceURL: ref.URL,
				Fetched:   time.Now().UTC(),
			}, nil
		}
		lastErr = err

		var se *statusError
		terminal := errors.As(err, &se) || !d.policy.ShouldRetry(err, attempt)
		if terminal {
			if d.metrics != nil {
				d.metrics.FetchFailures.WithLabelValues(string(ref.Kind)).Inc()
			}
			return archive.Artifact{}, &archive.FetchError{URL: ref.URL, Attempts: attempt, Cause: lastErr}
		}
		d.logger.Warn("retrying download",
			zap.String("url", ref.URL),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if d.metrics != nil {
			d.metrics.FetchRetries.WithLabelValues(string(ref.Kind)).Inc()
		}
		archive.Sleep(ctx, d.policy.Backoff(attempt))
	}
}

func (d *Downloader) downloadOnce(ctx context.Context, rawURL, target string) (int64, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, "", fmt.Errorf("build request: %w", err)
	}
	if d.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", d.cfg.UserAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, "", &statusError{url: rawURL, code: resp.StatusCode}
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return 0, "", fmt.Errorf("create download dir: %w", err)
	}
	file, err := os.Create(target)
	if err != nil {
		return 0, "", fmt.Errorf("create %s: %w", target, err)
	}
	// Hash the stream while writing it so the file is read only once.
	digest := sha256.New()
	size, err := io.Copy(io.MultiWriter(file, digest), resp.Body)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(target)
		return 0, "", fmt.Errorf("write %s: %w", target, err)
	}
	return size, digest.Sum(), nil
}

func artifactName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %s: %w", rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("url %s has no file name", rawURL)
	}
	return name, nil
}
