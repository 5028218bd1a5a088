// Package collyfetcher implements the HTML page fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"paper-archiver/internal/archive"
	"paper-archiver/internal/metrics"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements archive.PageFetcher using the Colly collector.
// A failed visit is retried per the injected policy; a well-formed error
// status counts as a failed attempt the same as a transport error, matching
// how the page-fetch path has always behaved.
type Fetcher struct {
	cfg           Config
	policy        archive.RetryPolicy
	metrics       *metrics.Metrics
	logger        *zap.Logger
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config, policy archive.RetryPolicy, m *metrics.Metrics, logger *zap.Logger) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	return &Fetcher{
		cfg:           cfg,
		policy:        policy,
		metrics:       m,
		logger:        logger,
		baseCollector: c,
	}
}

// FetchPage retrieves ref's body, retrying failed attempts until the policy
// gives up, then returns a *archive.FetchError.
func (f *Fetcher) FetchPage(ctx context.Context, ref archive.PageRef) ([]byte, error) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		body, err := f.fetchOnce(ctx, ref.URL)
		if err == nil {
			if f.metrics != nil {
				f.metrics.PagesFetched.WithLabelValues(string(ref.Kind)).Inc()
			}
			return body, nil
		}
		lastErr = err
		if !f.policy.ShouldRetry(err, attempt) {
			if f.metrics != nil {
				f.metrics.FetchFailures.WithLabelValues(string(ref.Kind)).Inc()
			}
			return nil, &archive.FetchError{URL: ref.URL, Attempts: attempt, Cause: lastErr}
		}
		f.logger.Warn("retrying page fetch",
			zap.String("url", ref.URL),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if f.metrics != nil {
			f.metrics.FetchRetries.WithLabelValues(string(ref.Kind)).Inc()
		}
		archive.Sleep(ctx, f.policy.Backoff(attempt))
	}
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = true
	// Retries revisit the same URL.
	collector.AllowURLRevisit = true
	collector.SetRequestTimeout(f.cfg.Timeout)

	var (
		body     []byte
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("visit %s: %w", url, err)
		}
		if fetchErr != nil {
			return nil, fmt.Errorf("response from %s: %w", url, fetchErr)
		}
		return body, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
