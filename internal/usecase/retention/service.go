package retention

import (
	"context"
	"fmt"
	"log"
	"time"

	"resource-jobs/internal/infrastructure/cache"
	"resource-jobs/internal/repository"
)

const lockTTL = 5 * time.Minute

// Service deactivates postings that have not been seen by any scrape for
// longer than the retention window.
type Service struct {
	jobs   repository.JobStore
	cache  *cache.Redis
	logger *log.Logger
	days   int
}

func NewService(jobs repository.JobStore, rc *cache.Redis, logger *log.Logger, days int) *Service {
	if days <= 0 {
		days = 30
	}
	return &Service{jobs: jobs, cache: rc, logger: logger, days: days}
}

func (s *Service) Days() int { return s.days }

// Sweep marks stale postings inactive and reports how many were touched.
// A redis lock keeps concurrent sweeps from doubling up; losing the lock is
// not an error, the other sweep does the work.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	if s == nil || s.jobs == nil {
		return 0, fmt.Errorf("retention service not configured")
	}

	if s.cache != nil {
		ok, err := s.cache.SetIfNotExists(ctx, cache.KeyRetentionLock, "1", lockTTL)
		if err == nil && !ok {
			if s.logger != nil {
				s.logger.Printf("[Retention] sweep already in progress, skipping")
			}
			return 0, nil
		}
		defer func() { _ = s.cache.Delete(ctx, cache.KeyRetentionLock) }()
	}

	n, err := s.jobs.DeactivateOlderThan(ctx, s.days)
	if err != nil {
		return 0, fmt.Errorf("deactivate stale postings: %w", err)
	}
	if s.logger != nil {
		s.logger.Printf("[Retention] deactivated=%d threshold_days=%d", n, s.days)
	}
	if n > 0 && s.cache != nil {
		_ = s.cache.InvalidateStatus(ctx)
	}
	return n, nil
}
