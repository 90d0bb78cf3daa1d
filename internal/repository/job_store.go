package repository

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"resource-jobs/internal/database"
	"resource-jobs/internal/domain/job"

	"github.com/google/uuid"
)

type ActiveFilter struct {
	Source   string
	Province string
	Sector   string
	Limit    int
	Offset   int
}

type JobStore interface {
	InsertMany(ctx context.Context, postings []job.Posting) (added, updated int, err error)
	QueryActive(ctx context.Context, f ActiveFilter) ([]job.Posting, error)
	CountBySource(ctx context.Context) (map[string]int, error)
	DeactivateOlderThan(ctx context.Context, thresholdDays int) (int64, error)
	DeleteBySource(ctx context.Context, source string) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type PostgresJobStore struct {
	db     database.DB
	logger *log.Logger
	now    func() time.Time
}

func NewPostgresJobStore(db database.DB, logger *log.Logger) *PostgresJobStore {
	return &PostgresJobStore{db: db, logger: logger, now: time.Now}
}

// InsertMany upserts a batch keyed by (source, external id). A record that
// fails is logged and skipped; the rest of the batch still commits.
func (s *PostgresJobStore) InsertMany(ctx context.Context, postings []job.Posting) (int, int, error) {
	if s == nil || s.db == nil {
		return 0, 0, fmt.Errorf("nil store/db")
	}

	added, updated := 0, 0
	for i := range postings {
		p := postings[i]
		inserted, err := s.upsertOne(ctx, p)
		if err != nil {
			if s.logger != nil {
				s.logger.Printf("[Store] upsert failed source=%s title=%q err=%v", p.Source, p.Title, err)
			}
			continue
		}
		if inserted {
			added++
		} else {
			updated++
		}
	}
	return added, updated, nil
}

func (s *PostgresJobStore) upsertOne(ctx context.Context, p job.Posting) (bool, error) {
	source := strings.TrimSpace(p.Source)
	if source == "" {
		return false, fmt.Errorf("empty source")
	}
	externalID := DedupKey(p)
	if externalID == "" {
		return false, fmt.Errorf("no dedup key for title=%q", p.Title)
	}

	id := p.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	scrapedAt := p.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = time.Now().UTC()
	}

	n, err := s.db.Exec(ctx,
		`INSERT INTO jobs (
			id, source, external_id, title, company, location, city, province, region,
			sector, job_type, salary_min, salary_max, salary_raw, description,
			requirements, url, is_remote, is_rotational, is_active, posted_at, scraped_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
		ON CONFLICT (source, external_id) DO NOTHING`,
		id, source, externalID, p.Title, p.Company,
		nullableText(p.Location), nullableText(p.City), nullableText(p.Province), nullableText(p.Region),
		nullableText(p.Sector), nullableText(p.JobType),
		nullableInt(p.SalaryMin), nullableInt(p.SalaryMax), nullableText(p.SalaryRaw),
		nullableText(p.Description), p.Requirements, nullableText(p.URL),
		p.Remote, p.Rotational, true, p.PostedAt, scrapedAt,
	)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	// existing row: refresh mutable fields, keep the original id
	_, err = s.db.Exec(ctx,
		`UPDATE jobs SET
			title = $3,
			company = $4,
			location = COALESCE($5, location),
			city = COALESCE($6, city),
			province = COALESCE($7, province),
			region = COALESCE($8, region),
			sector = COALESCE($9, sector),
			job_type = COALESCE($10, job_type),
			salary_min = COALESCE($11, salary_min),
			salary_max = COALESCE($12, salary_max),
			salary_raw = COALESCE($13, salary_raw),
			description = COALESCE($14, description),
			url = COALESCE($15, url),
			is_remote = $16,
			is_rotational = $17,
			is_active = true,
			posted_at = COALESCE($18, posted_at),
			scraped_at = $19
		WHERE source = $1 AND external_id = $2`,
		source, externalID, p.Title, p.Company,
		nullableText(p.Location), nullableText(p.City), nullableText(p.Province), nullableText(p.Region),
		nullableText(p.Sector), nullableText(p.JobType),
		nullableInt(p.SalaryMin), nullableInt(p.SalaryMax), nullableText(p.SalaryRaw),
		nullableText(p.Description), nullableText(p.URL),
		p.Remote, p.Rotational, p.PostedAt, scrapedAt,
	)
	return false, err
}

func (s *PostgresJobStore) QueryActive(ctx context.Context, f ActiveFilter) ([]job.Posting, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("nil store/db")
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 200 {
		f.Limit = 200
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	where := []string{"is_active"}
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, cond+" = $"+strconv.Itoa(len(args)))
	}
	if v := strings.TrimSpace(f.Source); v != "" {
		add("source", v)
	}
	if v := strings.TrimSpace(f.Province); v != "" {
		add("province", strings.ToUpper(v))
	}
	if v := strings.TrimSpace(f.Sector); v != "" {
		add("sector", v)
	}
	args = append(args, f.Limit, f.Offset)

	query := fmt.Sprintf(
		`SELECT id, source, COALESCE(external_id, ''), title, company,
			COALESCE(location, ''), COALESCE(city, ''), COALESCE(province, ''), COALESCE(region, ''),
			COALESCE(sector, ''), COALESCE(job_type, ''),
			COALESCE(salary_min, 0), COALESCE(salary_max, 0), COALESCE(salary_raw, ''),
			COALESCE(description, ''), COALESCE(url, ''),
			is_remote, is_rotational, is_active, posted_at, scraped_at
		FROM jobs
		WHERE %s
		ORDER BY scraped_at DESC
		LIMIT $%d OFFSET $%d`,
		strings.Join(where, " AND "), len(args)-1, len(args),
	)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]job.Posting, 0)
	for rows.Next() {
		var p job.Posting
		if err := rows.Scan(
			&p.ID, &p.Source, &p.ExternalID, &p.Title, &p.Company,
			&p.Location, &p.City, &p.Province, &p.Region,
			&p.Sector, &p.JobType,
			&p.SalaryMin, &p.SalaryMax, &p.SalaryRaw,
			&p.Description, &p.URL,
			&p.Remote, &p.Rotational, &p.IsActive, &p.PostedAt, &p.ScrapedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresJobStore) CountBySource(ctx context.Context) (map[string]int, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("nil store/db")
	}
	rows, err := s.db.Query(ctx,
		`SELECT source, COUNT(*) FROM jobs WHERE is_active GROUP BY source`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			return nil, err
		}
		out[source] = n
	}
	return out, rows.Err()
}

// DeactivateOlderThan marks postings stale. The boundary is half-open: a row
// scraped exactly thresholdDays ago stays active.
func (s *PostgresJobStore) DeactivateOlderThan(ctx context.Context, thresholdDays int) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("nil store/db")
	}
	if thresholdDays <= 0 {
		thresholdDays = 30
	}
	cutoff := s.now().UTC().AddDate(0, 0, -thresholdDays)
	return s.db.Exec(ctx,
		`UPDATE jobs SET is_active = false WHERE is_active AND scraped_at < $1`,
		cutoff,
	)
}

func (s *PostgresJobStore) DeleteBySource(ctx context.Context, source string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("nil store/db")
	}
	source = strings.TrimSpace(source)
	if source == "" {
		return 0, fmt.Errorf("empty source")
	}
	return s.db.Exec(ctx, `DELETE FROM jobs WHERE source = $1`, source)
}

func (s *PostgresJobStore) DeleteAll(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("nil store/db")
	}
	return s.db.Exec(ctx, `DELETE FROM jobs`)
}

// DedupKey resolves the identity of a posting: the adapter's external id,
// else a stable hash of (title, company). Records without a vendor id are
// never keyed on their URL; feed links carry tracking tokens, and the same
// posting re-observed under a reshuffled link must hit the same row.
func DedupKey(p job.Posting) string {
	if id := strings.TrimSpace(p.ExternalID); id != "" {
		return id
	}
	title := strings.ToLower(strings.TrimSpace(p.Title))
	company := strings.ToLower(strings.TrimSpace(p.Company))
	if title == "" || company == "" {
		return ""
	}
	h := sha1.Sum([]byte(title + "|" + company))
	return "tcsha1-" + hex.EncodeToString(h[:])
}

func nullableText(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}

var _ JobStore = (*PostgresJobStore)(nil)
