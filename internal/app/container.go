package app

import (
	"context"
	"log"
	"time"

	"resource-jobs/internal/config"
	"resource-jobs/internal/database"
	dbpostgres "resource-jobs/internal/database/postgres"
	"resource-jobs/internal/infrastructure/cache"
	"resource-jobs/internal/infrastructure/fetch"
	"resource-jobs/internal/repository"
	"resource-jobs/internal/scheduler"
	"resource-jobs/internal/scraper"
	"resource-jobs/internal/usecase/ingest"
	"resource-jobs/internal/usecase/retention"
)

type Container struct {
	Config config.Config
	Logger *log.Logger

	DB    database.DB
	Cache *cache.Redis

	Jobs repository.JobStore
	Runs repository.RunStore

	Registry  *scraper.Registry
	Runner    *ingest.Runner
	Retention *retention.Service
	Scheduler *scheduler.Scheduler
}

func NewContainer(cfg config.Config) (*Container, error) {
	logger := log.Default()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := dbpostgres.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	rc := cache.NewRedis(cfg.Redis, logger)

	jobs := repository.NewPostgresJobStore(db, logger)
	runs := repository.NewPostgresRunStore(db)

	fetcher := fetch.New(cfg.Fetch, logger)

	workday := scraper.NewWorkdaySource(logger)
	lever := scraper.NewLeverSource(logger)
	greenhouse := scraper.NewGreenhouseSource(logger)

	registry := scraper.NewRegistry(
		scraper.NewDiscoverySource(workday, lever, greenhouse, logger),
		scraper.NewCompanyPagesSource(fetcher, logger),
		workday,
		lever,
		greenhouse,
		scraper.NewIndeedSource(logger),
		scraper.NewRigzoneSource(logger),
		scraper.NewInfomineSource(logger),
		scraper.NewSampleSource(),
	)

	sweeper := retention.NewService(jobs, rc, logger, cfg.Scrape.RetentionDays)
	runner := ingest.NewRunner(registry, jobs, runs, sweeper, rc, logger, cfg.Scrape.SourcePaceMS)
	sched := scheduler.New(runner, sweeper, logger, cfg.Scrape.IntervalHours, cfg.Scrape.RunOnStart)

	return &Container{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Cache:     rc,
		Jobs:      jobs,
		Runs:      runs,
		Registry:  registry,
		Runner:    runner,
		Retention: sweeper,
		Scheduler: sched,
	}, nil
}

func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
