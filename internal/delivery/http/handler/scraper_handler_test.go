package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"resource-jobs/internal/delivery/http/middleware"
	"resource-jobs/internal/domain/job"
	"resource-jobs/internal/repository"
	"resource-jobs/internal/scraper"
	"resource-jobs/internal/usecase/ingest"
)

type stubJobs struct {
	active []job.Posting
	counts map[string]int
	added  int
}

func (s *stubJobs) InsertMany(_ context.Context, postings []job.Posting) (int, int, error) {
	s.added += len(postings)
	return len(postings), 0, nil
}

func (s *stubJobs) QueryActive(_ context.Context, _ repository.ActiveFilter) ([]job.Posting, error) {
	return s.active, nil
}

func (s *stubJobs) CountBySource(context.Context) (map[string]int, error) {
	return s.counts, nil
}

func (s *stubJobs) DeactivateOlderThan(context.Context, int) (int64, error) { return 0, nil }
func (s *stubJobs) DeleteBySource(context.Context, string) (int64, error)   { return 0, nil }
func (s *stubJobs) DeleteAll(context.Context) (int64, error)                { return 0, nil }

type stubRuns struct {
	recent []job.ScrapeRun
}

func (s *stubRuns) Create(context.Context, string) (uuid.UUID, error) { return uuid.New(), nil }

func (s *stubRuns) Finish(context.Context, uuid.UUID, string, int, int, int, string) error {
	return nil
}

func (s *stubRuns) Recent(context.Context, int) ([]job.ScrapeRun, error) { return s.recent, nil }

type stubSource struct{}

func (stubSource) Tag() string { return "workday" }

func (stubSource) Scrape(context.Context) ([]job.Posting, error) {
	return []job.Posting{{Source: "workday", Title: "Mining Engineer", Company: "Teck Resources", Location: "Sparwood, BC"}}, nil
}

func newTestApp(jobs *stubJobs, runs *stubRuns) *fiber.App {
	app := fiber.New()
	app.Use(middleware.NewErrorMiddleware().Middleware())

	runner := ingest.NewRunner(scraper.NewRegistry(stubSource{}), jobs, runs, nil, nil, nil, 1)

	v1 := app.Group("/api").Group("/v1")
	NewJobsHandler(jobs).RegisterRoutes(v1)
	NewScraperHandler(runner, jobs, runs, nil, 30, 20).RegisterRoutes(v1)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	var parsed map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, parsed
}

func TestHandleRun(t *testing.T) {
	jobs := &stubJobs{counts: map[string]int{}}
	app := newTestApp(jobs, &stubRuns{})

	resp, parsed := doJSON(t, app, http.MethodPost, "/api/v1/scraper/run", `{"source":"workday"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	data, ok := parsed["data"].(map[string]any)
	if !ok {
		t.Fatalf("data = %T", parsed["data"])
	}
	if data["sourcesRun"] != float64(1) || data["sourcesSucceeded"] != float64(1) {
		t.Errorf("summary = %v", data)
	}
	if jobs.added != 1 {
		t.Errorf("added = %d", jobs.added)
	}
}

func TestHandleRunUnknownSource(t *testing.T) {
	app := newTestApp(&stubJobs{}, &stubRuns{})

	resp, parsed := doJSON(t, app, http.MethodPost, "/api/v1/scraper/run", `{"source":"nope"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	msg, _ := parsed["message"].(string)
	if !strings.Contains(msg, "unknown source") {
		t.Errorf("message = %q", msg)
	}
}

func TestHandleStatus(t *testing.T) {
	jobs := &stubJobs{counts: map[string]int{"workday": 12, "rigzone": 3}}
	runs := &stubRuns{recent: []job.ScrapeRun{{
		ID: uuid.New(), Source: "workday", StartedAt: time.Now(), Status: job.RunStatusCompleted,
	}}}
	app := newTestApp(jobs, runs)

	resp, parsed := doJSON(t, app, http.MethodGet, "/api/v1/scraper/status", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	data := parsed["data"].(map[string]any)
	if data["total_active"] != float64(15) {
		t.Errorf("total_active = %v", data["total_active"])
	}
	if data["retention_days"] != float64(30) {
		t.Errorf("retention_days = %v", data["retention_days"])
	}
}

func TestHandleListJobs(t *testing.T) {
	posted := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	jobs := &stubJobs{active: []job.Posting{{
		ID: uuid.New(), Source: "greenhouse", Title: "Wind Technician", Company: "Innergex Renewable Energy",
		Province: "QC", Sector: job.SectorRenewables, URL: "https://example.org/1",
		PostedAt: &posted, ScrapedAt: posted,
	}}}
	app := newTestApp(jobs, &stubRuns{})

	resp, parsed := doJSON(t, app, http.MethodGet, "/api/v1/jobs?province=QC", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	items := parsed["data"].([]any)
	if len(items) != 1 {
		t.Fatalf("items = %d", len(items))
	}
	first := items[0].(map[string]any)
	if first["title"] != "Wind Technician" || first["province"] != "QC" {
		t.Errorf("item = %v", first)
	}
	if first["posted_date"] != "2026-05-01T12:00:00Z" {
		t.Errorf("posted_date = %v", first["posted_date"])
	}
}

func TestHandleListJobsBadLimit(t *testing.T) {
	app := newTestApp(&stubJobs{}, &stubRuns{})

	resp, _ := doJSON(t, app, http.MethodGet, "/api/v1/jobs?limit=abc", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
