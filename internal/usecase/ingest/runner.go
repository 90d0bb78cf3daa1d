package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"resource-jobs/internal/domain/job"
	"resource-jobs/internal/infrastructure/cache"
	"resource-jobs/internal/normalize"
	"resource-jobs/internal/repository"
	"resource-jobs/internal/scraper"
	"resource-jobs/internal/usecase/retention"
)

// ErrUnknownSource is the only hard trigger error. Everything else is
// reported inside the summary.
var ErrUnknownSource = errors.New("unknown source")

const runLockTTL = 30 * time.Minute

// Runner orchestrates scrape runs: it resolves the trigger selector, runs
// adapters sequentially with pacing, persists run lifecycles and aggregates
// a summary.
type Runner struct {
	registry *scraper.Registry
	jobs     repository.JobStore
	runs     repository.RunStore
	sweeper  *retention.Service
	cache    *cache.Redis
	logger   *log.Logger
	pace     time.Duration
}

func NewRunner(
	registry *scraper.Registry,
	jobs repository.JobStore,
	runs repository.RunStore,
	sweeper *retention.Service,
	rc *cache.Redis,
	logger *log.Logger,
	paceMS int,
) *Runner {
	if paceMS <= 0 {
		paceMS = 1000
	}
	return &Runner{
		registry: registry,
		jobs:     jobs,
		runs:     runs,
		sweeper:  sweeper,
		cache:    rc,
		logger:   logger,
		pace:     time.Duration(paceMS) * time.Millisecond,
	}
}

// Run executes the trigger described by selector. Valid selectors are an
// adapter tag, "all" (or empty), "clear" and "cleanup". Unknown selectors
// return ErrUnknownSource; per-source failures end up in the summary only.
func (r *Runner) Run(ctx context.Context, selector, clearSource string) (job.RunSummary, error) {
	if r == nil || r.registry == nil {
		return job.RunSummary{}, fmt.Errorf("runner not configured")
	}
	selector = strings.ToLower(strings.TrimSpace(selector))

	started := time.Now()
	switch selector {
	case job.SelectorClear:
		summary, err := r.clear(ctx, clearSource)
		summary.TotalDurationMS = time.Since(started).Milliseconds()
		return summary, err
	case job.SelectorCleanup:
		summary := r.cleanup(ctx)
		summary.TotalDurationMS = time.Since(started).Milliseconds()
		return summary, nil
	}

	var sources []scraper.Source
	switch selector {
	case "", job.SelectorAll:
		for _, tag := range r.registry.Tags() {
			if src, ok := r.registry.Lookup(tag); ok {
				sources = append(sources, src)
			}
		}
	default:
		src, ok := r.registry.Lookup(selector)
		if !ok {
			return job.RunSummary{}, fmt.Errorf("%w: %q", ErrUnknownSource, selector)
		}
		sources = []scraper.Source{src}
	}

	if r.cache != nil {
		ok, err := r.cache.SetIfNotExists(ctx, cache.KeyRunLock, selector, runLockTTL)
		if err == nil && !ok {
			if r.logger != nil {
				r.logger.Printf("[Ingest] run already in progress, skipping selector=%q", selector)
			}
			return job.RunSummary{
				Results:         []job.SourceResult{{Source: pickSelector(selector), Status: "skipped"}},
				TotalDurationMS: time.Since(started).Milliseconds(),
			}, nil
		}
		defer func() { _ = r.cache.Delete(ctx, cache.KeyRunLock) }()
	}

	summary := job.RunSummary{Results: make([]job.SourceResult, 0, len(sources))}
	for i, src := range sources {
		if i > 0 {
			pause(ctx, r.pace)
		}
		if ctx.Err() != nil {
			break
		}
		res := r.runOne(ctx, src)
		summary.Results = append(summary.Results, res)
		summary.SourcesRun++
		if res.Status == job.RunStatusCompleted {
			summary.SourcesSucceeded++
		} else {
			summary.SourcesFailed++
		}
		summary.TotalJobsFound += res.JobsFound
		summary.TotalJobsAdded += res.JobsAdded
		summary.TotalJobsUpdated += res.JobsUpdated
	}
	summary.TotalDurationMS = time.Since(started).Milliseconds()

	if r.cache != nil {
		_ = r.cache.InvalidateStatus(ctx)
	}
	if r.logger != nil {
		r.logger.Printf("[Ingest] selector=%q sources=%d ok=%d failed=%d found=%d added=%d updated=%d in %dms",
			pickSelector(selector), summary.SourcesRun, summary.SourcesSucceeded, summary.SourcesFailed,
			summary.TotalJobsFound, summary.TotalJobsAdded, summary.TotalJobsUpdated, summary.TotalDurationMS)
	}
	return summary, nil
}

// runOne drives a single adapter through its run lifecycle. A transport
// error fails the run with zero counts; postings that fail normalization are
// dropped silently and never counted as found.
func (r *Runner) runOne(ctx context.Context, src scraper.Source) job.SourceResult {
	tag := src.Tag()
	res := job.SourceResult{Source: tag}

	runID := uuid.Nil
	if r.runs != nil {
		id, err := r.runs.Create(ctx, tag)
		if err != nil {
			if r.logger != nil {
				r.logger.Printf("[Ingest] source=%s create run: %v", tag, err)
			}
		} else {
			runID = id
		}
	}

	postings, err := src.Scrape(ctx)
	if err != nil {
		res.Status = job.RunStatusFailed
		res.Error = err.Error()
		if r.logger != nil {
			r.logger.Printf("[Ingest] source=%s scrape failed: %v", tag, err)
		}
		r.finish(ctx, runID, res)
		return res
	}
	res.JobsFound = len(postings)

	kept := postings[:0]
	for i := range postings {
		if normalize.Apply(&postings[i]) {
			kept = append(kept, postings[i])
		}
	}

	added, updated, err := r.jobs.InsertMany(ctx, kept)
	res.JobsAdded = added
	res.JobsUpdated = updated
	if err != nil {
		res.Status = job.RunStatusFailed
		res.Error = err.Error()
		r.finish(ctx, runID, res)
		return res
	}

	res.Status = job.RunStatusCompleted
	if r.logger != nil {
		r.logger.Printf("[Ingest] source=%s found=%d kept=%d added=%d updated=%d",
			tag, res.JobsFound, len(kept), added, updated)
	}
	r.finish(ctx, runID, res)
	return res
}

func (r *Runner) finish(ctx context.Context, runID uuid.UUID, res job.SourceResult) {
	if r.runs == nil || runID == uuid.Nil {
		return
	}
	if err := r.runs.Finish(ctx, runID, res.Status, res.JobsFound, res.JobsAdded, res.JobsUpdated, res.Error); err != nil {
		if r.logger != nil {
			r.logger.Printf("[Ingest] source=%s finish run: %v", res.Source, err)
		}
	}
}

func (r *Runner) clear(ctx context.Context, clearSource string) (job.RunSummary, error) {
	clearSource = strings.ToLower(strings.TrimSpace(clearSource))
	if clearSource != "" {
		if _, ok := r.registry.Lookup(clearSource); !ok {
			return job.RunSummary{}, fmt.Errorf("%w: %q", ErrUnknownSource, clearSource)
		}
	}

	var (
		deleted int64
		err     error
	)
	if clearSource == "" {
		deleted, err = r.jobs.DeleteAll(ctx)
	} else {
		deleted, err = r.jobs.DeleteBySource(ctx, clearSource)
	}

	res := job.SourceResult{Source: job.SelectorClear, Status: job.RunStatusCompleted}
	if err != nil {
		res.Status = job.RunStatusFailed
		res.Error = err.Error()
	} else if r.logger != nil {
		r.logger.Printf("[Ingest] cleared %d postings source=%q", deleted, pickSelector(clearSource))
	}
	if r.cache != nil {
		_ = r.cache.InvalidateStatus(ctx)
	}
	summary := job.RunSummary{Results: []job.SourceResult{res}}
	if res.Status == job.RunStatusFailed {
		summary.SourcesFailed = 1
	}
	return summary, nil
}

func (r *Runner) cleanup(ctx context.Context) job.RunSummary {
	res := job.SourceResult{Source: job.SelectorCleanup, Status: job.RunStatusCompleted}
	if r.sweeper == nil {
		res.Status = job.RunStatusFailed
		res.Error = "retention not configured"
	} else if n, err := r.sweeper.Sweep(ctx); err != nil {
		res.Status = job.RunStatusFailed
		res.Error = err.Error()
	} else {
		res.JobsUpdated = int(n)
	}
	summary := job.RunSummary{Results: []job.SourceResult{res}}
	if res.Status == job.RunStatusFailed {
		summary.SourcesFailed = 1
	}
	return summary
}

func pickSelector(s string) string {
	if s == "" {
		return job.SelectorAll
	}
	return s
}

func pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
