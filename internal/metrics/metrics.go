// Package metrics exposes Prometheus collectors for the archiver pipeline.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics owns all collectors for the archiver run. Counters are partitioned
// by traversal level or outcome where that helps an operator read a run.
type Metrics struct {
	PagesFetched   *prometheus.CounterVec
	FetchRetries   *prometheus.CounterVec
	FetchFailures  *prometheus.CounterVec
	PapersSkipped  prometheus.Counter
	Downloads      prometheus.Counter
	DownloadBytes  prometheus.Counter
	Uploads        prometheus.Counter
	UploadFailures prometheus.Counter
	CleanupRetries prometheus.Counter
	StaleArtifacts prometheus.Counter
}

// New registers the archiver collectors against the provided registry.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		PagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "archiver_pages_fetched_total",
			Help: "HTML pages fetched successfully, partitioned by level.",
		}, []string{"level"}),
		FetchRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "archiver_fetch_retries_total",
			Help: "Fetch attempts that failed and were retried, partitioned by level.",
		}, []string{"level"}),
		FetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "archiver_fetch_failures_total",
			Help: "Fetches that exhausted their retry budget, partitioned by level.",
		}, []string{"level"}),
		PapersSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archiver_papers_skipped_total",
			Help: "Paper pages with no recognizable PDF link.",
		}),
		Downloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archiver_downloads_total",
			Help: "PDF files downloaded to local disk.",
		}),
		DownloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archiver_download_bytes_total",
			Help: "Bytes of PDF content downloaded.",
		}),
		Uploads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archiver_uploads_total",
			Help: "Artifacts uploaded to the remote store.",
		}),
		UploadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archiver_upload_failures_total",
			Help: "Uploads rejected by the remote store.",
		}),
		CleanupRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archiver_cleanup_retries_total",
			Help: "Local delete attempts that failed and were retried.",
		}),
		StaleArtifacts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archiver_stale_artifacts_total",
			Help: "Local files left on disk after cleanup gave up.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		m.PagesFetched,
		m.FetchRetries,
		m.FetchFailures,
		m.PapersSkipped,
		m.Downloads,
		m.DownloadBytes,
		m.Uploads,
		m.UploadFailures,
		m.CleanupRetries,
		m.StaleArtifacts,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register archiver collector: %w", err)
		}
	}
	return m, nil
}
