// Package pipeline drives the three-level traversal of the publication
// archive: root page to year listings to paper pages to PDF artifacts.
//
// Both traversal levels fan out into one shared bounded pool, so total
// in-flight work is capped by pool size regardless of level. Each level is a
// counting barrier: a parent observes completion of every child it spawned
// before it is itself complete, and a child's failure still counts as
// completion. Failures are contained at the smallest unit that raised them;
// only failure to resolve the root page aborts the run.
package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"paper-archiver/internal/archive"
	"paper-archiver/internal/extract"
	"paper-archiver/internal/metrics"
)

// Config controls fan-out and pacing.
type Config struct {
	BaseURL       string
	MaxYears      int
	Concurrency   int
	CourtesyDelay time.Duration
	ShutdownWait  time.Duration
	WorkDir       string
}

// Pipeline orchestrates the crawl-fetch-upload run.
type Pipeline struct {
	cfg        Config
	pages      archive.PageFetcher
	downloader archive.Downloader
	sink       archive.Sink
	metrics    *metrics.Metrics
	logger     *zap.Logger
	pool       *semaphore.Weighted
	base       *url.URL
}

// New builds a Pipeline.
func New(
	cfg Config,
	pages archive.PageFetcher,
	downloader archive.Downloader,
	sink archive.Sink,
	m *metrics.Metrics,
	logger *zap.Logger,
) (*Pipeline, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.MaxYears <= 0 {
		cfg.MaxYears = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:        cfg,
		pages:      pages,
		downloader: downloader,
		sink:       sink,
		metrics:    m,
		logger:     logger,
		pool:       semaphore.NewWeighted(int64(cfg.Concurrency)),
		base:       base,
	}, nil
}

// Run executes the full traversal and blocks until every barrier drains,
// then gives still-running workers a bounded grace period before returning.
// Only root-page resolution failure is returned as an error.
func (p *Pipeline) Run(ctx context.Context) error {
	start := time.Now()
	p.logger.Info("starting archive run", zap.String("base_url", p.cfg.BaseURL))

	years, err := p.resolveYears(ctx)
	if err != nil {
		return err
	}
	if len(years) == 0 {
		p.logger.Info("no year links found on root page")
	} else {
		urls := make([]string, len(years))
		for i, y := range years {
			urls[i] = y.Ref.URL
		}
		p.logger.Info("processing years", zap.Strings("urls", urls))
	}

	var wg sync.WaitGroup
	for _, year := range years {
		wg.Add(1)
		go func(task archive.YearTask) {
			defer wg.Done()
			p.processYear(ctx, task)
		}(year)
	}
	wg.Wait()

	p.drainPool(ctx)
	p.logger.Info("archive run finished", zap.Duration("elapsed", time.Since(start)))
	return nil
}

// resolveYears fetches the root page and enumerates the newest year tasks.
func (p *Pipeline) resolveYears(ctx context.Context) ([]archive.YearTask, error) {
	root := archive.PageRef{URL: p.cfg.BaseURL, Kind: archive.KindRoot}
	body, err := p.pages.FetchPage(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("resolve root page: %w", err)
	}
	doc, err := extract.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse root page: %w", err)
	}
	return extract.YearTasks(doc, p.base, p.cfg.MaxYears), nil
}

// processYear resolves one year listing and fans its papers out into the
// shared pool. The year is complete only once every paper it spawned has
// completed. The pool slot is held for the year's own fetch and extract work
// and released before the barrier wait, so a waiting year never starves the
// papers it is waiting on.
func (p *Pipeline) processYear(ctx context.Context, task archive.YearTask) {
	if err := p.pool.Acquire(ctx, 1); err != nil {
		return
	}
	papers, err := p.resolvePapers(ctx, task)
	p.pool.Release(1)
	if err != nil {
		p.logger.Error("year processing failed",
			zap.String("url", task.Ref.URL),
			zap.Int("year", task.Year),
			zap.Error(err),
		)
		return
	}
	p.logger.Info("year resolved",
		zap.String("url", task.Ref.URL),
		zap.Int("papers", len(papers)),
	)
	if len(papers) == 0 {
		return
	}

	var yearWG sync.WaitGroup
	for _, paper := range papers {
		yearWG.Add(1)
		go func(pt archive.PaperTask) {
			defer yearWG.Done()
			if err := p.pool.Acquire(ctx, 1); err != nil {
				return
			}
			defer p.pool.Release(1)
			p.processPaper(ctx, pt)
			// Courtesy pause between successive requests to the source
			// site, applied on success and failure alike.
			archive.Sleep(ctx, p.cfg.CourtesyDelay)
		}(paper)
	}
	yearWG.Wait()
}

func (p *Pipeline) resolvePapers(ctx context.Context, task archive.YearTask) ([]archive.PaperTask, error) {
	body, err := p.pages.FetchPage(ctx, task.Ref)
	if err != nil {
		return nil, err
	}
	doc, err := extract.Parse(body)
	if err != nil {
		return nil, err
	}
	return extract.PaperTasks(doc, p.base), nil
}

// processPaper resolves, downloads, and archives a single paper. Every
// failure is logged here and goes no further.
func (p *Pipeline) processPaper(ctx context.Context, task archive.PaperTask) {
	body, err := p.pages.FetchPage(ctx, task.Ref)
	if err != nil {
		p.logger.Error("paper processing failed",
			zap.String("url", task.Ref.URL),
			zap.Error(err),
		)
		return
	}
	doc, err := extract.Parse(body)
	if err != nil {
		p.logger.Error("paper page unparsable",
			zap.String("url", task.Ref.URL),
			zap.Error(err),
		)
		return
	}

	pdfRef, ok := extract.PDFRef(doc, p.base)
	if !ok {
		p.logger.Info("no pdf link on paper page, skipping",
			zap.String("url", task.Ref.URL),
		)
		if p.metrics != nil {
			p.metrics.PapersSkipped.Inc()
		}
		return
	}

	artifact, err := p.downloader.Download(ctx, pdfRef, p.cfg.WorkDir)
	if err != nil {
		p.logger.Error("pdf download failed",
			zap.String("url", pdfRef.URL),
			zap.Error(err),
		)
		return
	}
	p.logger.Info("downloaded",
		zap.String("name", artifact.Name),
		zap.Int64("bytes", artifact.Size),
	)

	if _, err := p.sink.Archive(ctx, artifact); err != nil {
		p.logger.Error("upload failed, local file retained",
			zap.String("name", artifact.Name),
			zap.String("path", artifact.LocalPath),
			zap.Error(err),
		)
	}
}

// drainPool waits up to ShutdownWait for every pool slot to free. Workers
// still running past the deadline are abandoned, not killed.
func (p *Pipeline) drainPool(ctx context.Context) {
	if p.cfg.ShutdownWait <= 0 {
		return
	}
	drainCtx, cancel := context.WithTimeout(ctx, p.cfg.ShutdownWait)
	defer cancel()
	if err := p.pool.Acquire(drainCtx, int64(p.cfg.Concurrency)); err != nil {
		p.logger.Warn("shutdown wait elapsed with workers still running", zap.Error(err))
		return
	}
	p.pool.Release(int64(p.cfg.Concurrency))
}
