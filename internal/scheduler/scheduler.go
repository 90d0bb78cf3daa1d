package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"resource-jobs/internal/domain/job"
	"resource-jobs/internal/usecase/ingest"
	"resource-jobs/internal/usecase/retention"
)

// Scheduler runs the full ingest cycle on a fixed interval, with a retention
// sweep after every cycle. A zero interval disables scheduling entirely.
type Scheduler struct {
	runner        *ingest.Runner
	sweeper       *retention.Service
	logger        *log.Logger
	intervalHours int
	runOnStart    bool
	cron          *cron.Cron
}

func New(runner *ingest.Runner, sweeper *retention.Service, logger *log.Logger, intervalHours int, runOnStart bool) *Scheduler {
	return &Scheduler{
		runner:        runner,
		sweeper:       sweeper,
		logger:        logger,
		intervalHours: intervalHours,
		runOnStart:    runOnStart,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s == nil || s.runner == nil {
		return fmt.Errorf("scheduler not configured")
	}
	if s.runOnStart {
		go s.cycle(ctx)
	}
	if s.intervalHours <= 0 {
		if s.logger != nil {
			s.logger.Printf("[Scheduler] interval disabled")
		}
		return nil
	}

	s.cron = cron.New()
	spec := fmt.Sprintf("@every %dh", s.intervalHours)
	if _, err := s.cron.AddFunc(spec, func() { s.cycle(ctx) }); err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	s.cron.Start()
	if s.logger != nil {
		s.logger.Printf("[Scheduler] scraping every %dh", s.intervalHours)
	}
	return nil
}

func (s *Scheduler) Stop() {
	if s == nil || s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(10 * time.Second):
	}
}

func (s *Scheduler) cycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	summary, err := s.runner.Run(ctx, job.SelectorAll, "")
	if err != nil {
		if s.logger != nil {
			s.logger.Printf("[Scheduler] scheduled run: %v", err)
		}
		return
	}
	if s.logger != nil {
		s.logger.Printf("[Scheduler] cycle done sources=%d added=%d updated=%d",
			summary.SourcesRun, summary.TotalJobsAdded, summary.TotalJobsUpdated)
	}
	if s.sweeper != nil {
		if _, err := s.sweeper.Sweep(ctx); err != nil && s.logger != nil {
			s.logger.Printf("[Scheduler] retention sweep: %v", err)
		}
	}
}
