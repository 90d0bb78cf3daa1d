package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"resource-jobs/internal/database"
	"resource-jobs/internal/domain/job"

	"github.com/google/uuid"
)

type RunStore interface {
	Create(ctx context.Context, source string) (uuid.UUID, error)
	Finish(ctx context.Context, runID uuid.UUID, status string, found, added, updated int, runErr string) error
	Recent(ctx context.Context, limit int) ([]job.ScrapeRun, error)
}

type PostgresRunStore struct {
	db database.DB
}

func NewPostgresRunStore(db database.DB) *PostgresRunStore {
	return &PostgresRunStore{db: db}
}

func (s *PostgresRunStore) Create(ctx context.Context, source string) (uuid.UUID, error) {
	if s == nil || s.db == nil {
		return uuid.Nil, fmt.Errorf("nil store/db")
	}
	source = strings.TrimSpace(source)
	if source == "" {
		return uuid.Nil, fmt.Errorf("empty source")
	}
	id := uuid.New()
	_, err := s.db.Exec(ctx,
		`INSERT INTO scrape_runs (id, source, started_at, status) VALUES ($1,$2,$3,$4)`,
		id, source, time.Now().UTC(), job.RunStatusRunning,
	)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (s *PostgresRunStore) Finish(ctx context.Context, runID uuid.UUID, status string, found, added, updated int, runErr string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("nil store/db")
	}
	if runID == uuid.Nil {
		return nil
	}
	_, err := s.db.Exec(ctx,
		`UPDATE scrape_runs SET finished_at = $2, status = $3, jobs_found = $4, jobs_added = $5, jobs_updated = $6, error = $7 WHERE id = $1`,
		runID, time.Now().UTC(), strings.TrimSpace(status), found, added, updated, nullableText(runErr),
	)
	return err
}

func (s *PostgresRunStore) Recent(ctx context.Context, limit int) ([]job.ScrapeRun, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("nil store/db")
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, source, started_at, finished_at, status, jobs_found, jobs_added, jobs_updated, COALESCE(error, '')
		FROM scrape_runs
		ORDER BY started_at DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]job.ScrapeRun, 0, limit)
	for rows.Next() {
		var r job.ScrapeRun
		if err := rows.Scan(&r.ID, &r.Source, &r.StartedAt, &r.FinishedAt, &r.Status,
			&r.JobsFound, &r.JobsAdded, &r.JobsUpdated, &r.Error); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

var _ RunStore = (*PostgresRunStore)(nil)
