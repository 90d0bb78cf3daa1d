package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"resource-jobs/internal/database"
	"resource-jobs/internal/domain/job"

	"github.com/google/uuid"
)

type fakeJobRow struct {
	title     string
	company   string
	active    bool
	scrapedAt time.Time
}

type fakeDB struct {
	mu sync.Mutex

	jobsByKey  map[string]fakeJobRow
	runsByID   map[uuid.UUID]job.ScrapeRun
	failTitles map[string]struct{}
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		jobsByKey:  map[string]fakeJobRow{},
		runsByID:   map[uuid.UUID]job.ScrapeRun{},
		failTitles: map[string]struct{}{},
	}
}

func (db *fakeDB) Ping(ctx context.Context) error { return nil }
func (db *fakeDB) Close() error                   { return nil }
func (db *fakeDB) SQLDB() *sql.DB                 { return nil }

func (db *fakeDB) Begin(ctx context.Context) (database.Tx, error) {
	return nil, fmt.Errorf("not implemented")
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}

func (db *fakeDB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	q := normalizeQuery(query)

	switch {
	case strings.HasPrefix(q, "insert into jobs"):
		// args: id, source, external_id, title, company, ..., scraped_at
		source := args[1].(string)
		externalID := args[2].(string)
		title := args[3].(string)
		if _, fail := db.failTitles[title]; fail {
			return 0, fmt.Errorf("forced insert failure")
		}
		key := source + "|" + externalID
		if _, ok := db.jobsByKey[key]; ok {
			return 0, nil
		}
		db.jobsByKey[key] = fakeJobRow{
			title:     title,
			company:   args[4].(string),
			active:    true,
			scrapedAt: args[21].(time.Time),
		}
		return 1, nil

	case strings.HasPrefix(q, "update jobs set is_active = false"):
		cutoff := args[0].(time.Time)
		var n int64
		for k, row := range db.jobsByKey {
			if row.active && row.scrapedAt.Before(cutoff) {
				row.active = false
				db.jobsByKey[k] = row
				n++
			}
		}
		return n, nil

	case strings.HasPrefix(q, "update jobs set"):
		// upsert refresh: args[0]=source, args[1]=external_id, args[2]=title
		source := args[0].(string)
		externalID := args[1].(string)
		title := args[2].(string)
		if _, fail := db.failTitles[title]; fail {
			return 0, fmt.Errorf("forced update failure")
		}
		key := source + "|" + externalID
		row, ok := db.jobsByKey[key]
		if !ok {
			return 0, nil
		}
		row.title = title
		row.company = args[3].(string)
		row.active = true
		row.scrapedAt = args[18].(time.Time)
		db.jobsByKey[key] = row
		return 1, nil

	case strings.HasPrefix(q, "delete from jobs where source"):
		source := args[0].(string)
		var n int64
		for k := range db.jobsByKey {
			if strings.HasPrefix(k, source+"|") {
				delete(db.jobsByKey, k)
				n++
			}
		}
		return n, nil

	case strings.HasPrefix(q, "delete from jobs"):
		n := int64(len(db.jobsByKey))
		db.jobsByKey = map[string]fakeJobRow{}
		return n, nil

	case strings.HasPrefix(q, "insert into scrape_runs"):
		id := args[0].(uuid.UUID)
		db.runsByID[id] = job.ScrapeRun{
			ID:        id,
			Source:    args[1].(string),
			StartedAt: args[2].(time.Time),
			Status:    args[3].(string),
		}
		return 1, nil

	case strings.HasPrefix(q, "update scrape_runs set"):
		id := args[0].(uuid.UUID)
		run, ok := db.runsByID[id]
		if !ok {
			return 0, nil
		}
		finished := args[1].(time.Time)
		run.FinishedAt = &finished
		run.Status = args[2].(string)
		run.JobsFound = args[3].(int)
		run.JobsAdded = args[4].(int)
		run.JobsUpdated = args[5].(int)
		if v, ok := args[6].(string); ok {
			run.Error = v
		}
		db.runsByID[id] = run
		return 1, nil

	default:
		return 0, nil
	}
}

type fakeRows struct {
	vals [][]any
	idx  int
}

func (r *fakeRows) Close()    {}
func (r *fakeRows) Err() error { return nil }

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.vals) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.vals[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan dest mismatch")
	}
	for i := range dest {
		switch d := dest[i].(type) {
		case *string:
			*d = row[i].(string)
		case *int:
			*d = row[i].(int)
		case *bool:
			*d = row[i].(bool)
		case *time.Time:
			*d = row[i].(time.Time)
		case **time.Time:
			if row[i] == nil {
				*d = nil
			} else {
				v := row[i].(time.Time)
				*d = &v
			}
		case *uuid.UUID:
			*d = row[i].(uuid.UUID)
		default:
			return fmt.Errorf("unsupported scan type %T", dest[i])
		}
	}
	return nil
}

func (db *fakeDB) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	q := normalizeQuery(query)

	switch {
	case strings.HasPrefix(q, "select source, count(*)"):
		counts := map[string]int{}
		for k, row := range db.jobsByKey {
			if !row.active {
				continue
			}
			source := strings.SplitN(k, "|", 2)[0]
			counts[source]++
		}
		rows := &fakeRows{}
		for s, n := range counts {
			rows.vals = append(rows.vals, []any{s, n})
		}
		return rows, nil

	case strings.HasPrefix(q, "select id, source, started_at"):
		rows := &fakeRows{}
		for _, run := range db.runsByID {
			rows.vals = append(rows.vals, []any{
				run.ID, run.Source, run.StartedAt, timePtrOrNil(run.FinishedAt),
				run.Status, run.JobsFound, run.JobsAdded, run.JobsUpdated, run.Error,
			})
		}
		return rows, nil

	default:
		return nil, fmt.Errorf("unsupported query: %s", q)
	}
}

func timePtrOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

type fakeRow struct {
	err error
}

func (r fakeRow) Scan(dest ...any) error { return r.err }

func (db *fakeDB) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return fakeRow{err: fmt.Errorf("unsupported queryrow")}
}

func postingsFixture(n int) []job.Posting {
	out := make([]job.Posting, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, job.Posting{
			Source:     job.SourceWorkday,
			ExternalID: fmt.Sprintf("req-%d", i),
			Title:      fmt.Sprintf("Mining Engineer %d", i),
			Company:    "Acme Corp",
			Location:   "Calgary, AB",
			ScrapedAt:  time.Now().UTC(),
		})
	}
	return out
}

func TestInsertManyIdempotent(t *testing.T) {
	db := newFakeDB()
	store := NewPostgresJobStore(db, nil)
	ctx := context.Background()

	batch := postingsFixture(5)

	added, updated, err := store.InsertMany(ctx, batch)
	if err != nil {
		t.Fatalf("insert error: %v", err)
	}
	if added != 5 || updated != 0 {
		t.Fatalf("first run: expected added=5 updated=0, got added=%d updated=%d", added, updated)
	}

	added, updated, err = store.InsertMany(ctx, batch)
	if err != nil {
		t.Fatalf("insert error (2nd): %v", err)
	}
	if added != 0 || updated != 5 {
		t.Fatalf("second run: expected added=0 updated=5, got added=%d updated=%d", added, updated)
	}
}

func TestInsertManyPartialBatch(t *testing.T) {
	db := newFakeDB()
	store := NewPostgresJobStore(db, nil)
	ctx := context.Background()

	batch := postingsFixture(5)
	db.failTitles[batch[2].Title] = struct{}{}

	added, updated, err := store.InsertMany(ctx, batch)
	if err != nil {
		t.Fatalf("insert error: %v", err)
	}
	if added != 4 || updated != 0 {
		t.Fatalf("expected 4 committed despite one failure, got added=%d updated=%d", added, updated)
	}
	if len(db.jobsByKey) != 4 {
		t.Fatalf("expected 4 rows stored, got %d", len(db.jobsByKey))
	}
}

func TestInsertManyFallbackKey(t *testing.T) {
	db := newFakeDB()
	store := NewPostgresJobStore(db, nil)
	ctx := context.Background()

	// no external id and no URL: keyed by (title, company)
	p := job.Posting{
		Source:    job.SourceCompanies,
		Title:     "Millwright",
		Company:   "Acme Corp",
		ScrapedAt: time.Now().UTC(),
	}
	added, updated, err := store.InsertMany(ctx, []job.Posting{p})
	if err != nil || added != 1 || updated != 0 {
		t.Fatalf("first insert: added=%d updated=%d err=%v", added, updated, err)
	}
	added, updated, err = store.InsertMany(ctx, []job.Posting{p})
	if err != nil || added != 0 || updated != 1 {
		t.Fatalf("second insert: added=%d updated=%d err=%v", added, updated, err)
	}
}

func TestInsertManyIgnoresURLChurn(t *testing.T) {
	db := newFakeDB()
	store := NewPostgresJobStore(db, nil)
	ctx := context.Background()

	// feed items have no vendor id and re-appear under reshuffled tracking links
	first := job.Posting{
		Source:    job.SourceIndeed,
		Title:     "Haul Truck Operator",
		Company:   "Suncor",
		URL:       "https://ca.indeed.com/viewjob?jk=abc&from=rss&tk=111",
		ScrapedAt: time.Now().UTC(),
	}
	second := first
	second.URL = "https://ca.indeed.com/viewjob?jk=abc&from=rss&tk=222"

	if DedupKey(first) != DedupKey(second) {
		t.Fatalf("expected URL-independent dedup key, got %q vs %q", DedupKey(first), DedupKey(second))
	}

	added, updated, err := store.InsertMany(ctx, []job.Posting{first})
	if err != nil || added != 1 || updated != 0 {
		t.Fatalf("first insert: added=%d updated=%d err=%v", added, updated, err)
	}
	added, updated, err = store.InsertMany(ctx, []job.Posting{second})
	if err != nil || added != 0 || updated != 1 {
		t.Fatalf("re-observed posting: added=%d updated=%d err=%v", added, updated, err)
	}
	if len(db.jobsByKey) != 1 {
		t.Fatalf("expected a single row, got %d", len(db.jobsByKey))
	}
}

func TestDeactivateOlderThanBoundary(t *testing.T) {
	db := newFakeDB()
	store := NewPostgresJobStore(db, nil)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	threshold := 30
	atThreshold := job.Posting{
		Source: job.SourceLever, ExternalID: "at", Title: "Geologist",
		Company: "Acme", ScrapedAt: now.AddDate(0, 0, -threshold),
	}
	pastThreshold := job.Posting{
		Source: job.SourceLever, ExternalID: "past", Title: "Driller",
		Company: "Acme", ScrapedAt: now.AddDate(0, 0, -threshold).Add(-time.Second),
	}
	if _, _, err := store.InsertMany(ctx, []job.Posting{atThreshold, pastThreshold}); err != nil {
		t.Fatalf("insert error: %v", err)
	}

	n, err := store.DeactivateOlderThan(ctx, threshold)
	if err != nil {
		t.Fatalf("deactivate error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly 1 row deactivated, got %d", n)
	}

	if row := db.jobsByKey[string(job.SourceLever)+"|at"]; !row.active {
		t.Fatalf("row at the threshold must stay active")
	}
	if row := db.jobsByKey[string(job.SourceLever)+"|past"]; row.active {
		t.Fatalf("row past the threshold must be deactivated")
	}
}

func TestDeleteBySource(t *testing.T) {
	db := newFakeDB()
	store := NewPostgresJobStore(db, nil)
	ctx := context.Background()

	batch := postingsFixture(3)
	batch = append(batch, job.Posting{
		Source: job.SourceLever, ExternalID: "x", Title: "Agronomist",
		Company: "GrowCo", ScrapedAt: time.Now().UTC(),
	})
	if _, _, err := store.InsertMany(ctx, batch); err != nil {
		t.Fatalf("insert error: %v", err)
	}

	n, err := store.DeleteBySource(ctx, job.SourceWorkday)
	if err != nil {
		t.Fatalf("delete error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 deleted, got %d", n)
	}

	counts, err := store.CountBySource(ctx)
	if err != nil {
		t.Fatalf("count error: %v", err)
	}
	if counts[job.SourceLever] != 1 || counts[job.SourceWorkday] != 0 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestRunStoreLifecycle(t *testing.T) {
	db := newFakeDB()
	runs := NewPostgresRunStore(db)
	ctx := context.Background()

	id, err := runs.Create(ctx, job.SourceGreenhouse)
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if db.runsByID[id].Status != job.RunStatusRunning {
		t.Fatalf("expected running status, got %q", db.runsByID[id].Status)
	}

	if err := runs.Finish(ctx, id, job.RunStatusCompleted, 7, 5, 2, ""); err != nil {
		t.Fatalf("finish error: %v", err)
	}
	run := db.runsByID[id]
	if run.Status != job.RunStatusCompleted || run.JobsFound != 7 || run.JobsAdded != 5 || run.JobsUpdated != 2 {
		t.Fatalf("unexpected finished run: %+v", run)
	}
	if run.FinishedAt == nil {
		t.Fatalf("expected finishedAt set")
	}

	recent, err := runs.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent error: %v", err)
	}
	if len(recent) != 1 || recent[0].Status != job.RunStatusCompleted {
		t.Fatalf("unexpected recent runs: %+v", recent)
	}
}
