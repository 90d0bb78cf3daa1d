package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"resource-jobs/internal/domain/job"
	"resource-jobs/internal/extract"
	"resource-jobs/internal/infrastructure/fetch"
)

func TestWorkdayFetchCompany(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/wday/cxs/suncor/Suncor_External/jobs" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req workdaySearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(workdaySearchResponse{
			Total: 3,
			JobPostings: []workdayPosting{
				{Title: "Heavy Equipment Operator", ExternalPath: "/job/Fort-McMurray/HEO_R-100", LocationsText: "Fort McMurray, AB", BulletFields: []string{"R-100"}},
				{Title: "Process Engineer", ExternalPath: "/job/Houston/PE_R-200", LocationsText: "Houston, TX", BulletFields: []string{"R-200"}},
				{Title: "", ExternalPath: "/job/x", LocationsText: "Calgary, AB"},
			},
		})
	}))
	defer srv.Close()

	src := NewWorkdaySource(nil)
	src.client = srv.Client()
	src.hostOverride = srv.URL

	got, err := src.FetchCompany(context.Background(), WorkdayCompany{
		Name: "Suncor Energy", Subdomain: "suncor", WD: "wd1", Site: "Suncor_External", Sector: job.SectorOilGas,
	})
	if err != nil {
		t.Fatalf("FetchCompany: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 posting after Canadian filter, got %d", len(got))
	}
	p := got[0]
	if p.ExternalID != "suncor-R-100" {
		t.Errorf("external id = %q", p.ExternalID)
	}
	if p.Company != "Suncor Energy" || p.Sector != job.SectorOilGas {
		t.Errorf("company/sector = %q/%q", p.Company, p.Sector)
	}
	if !strings.HasSuffix(p.URL, "/job/Fort-McMurray/HEO_R-100") {
		t.Errorf("url = %q", p.URL)
	}
}

func TestLeverFetchCompany(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v0/postings/minesense" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `[
			{"id":"ab-1","text":"Mining Data Scientist","hostedUrl":"https://jobs.lever.co/minesense/ab-1","categories":{"location":"Vancouver, BC","commitment":"Full-time"},"descriptionPlain":"Ore sorting.","createdAt":1700000000000},
			{"id":"ab-2","text":"Sales Lead","hostedUrl":"https://jobs.lever.co/minesense/ab-2","categories":{"location":"Denver, CO"}},
			{"id":"ab-3","text":"Support Engineer","applyUrl":"https://jobs.lever.co/minesense/ab-3/apply","categories":{"location":"Remote"}}
		]`)
	}))
	defer srv.Close()

	src := NewLeverSource(nil)
	src.client = srv.Client()
	src.apiBase = srv.URL

	got, err := src.FetchCompany(context.Background(), LeverCompany{Slug: "minesense", Name: "MineSense Technologies", Sector: job.SectorMining})
	if err != nil {
		t.Fatalf("FetchCompany: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 postings (Denver filtered), got %d", len(got))
	}
	if got[0].JobType != job.JobTypeFullTime {
		t.Errorf("job type = %q", got[0].JobType)
	}
	if got[0].PostedAt == nil || got[0].PostedAt.Year() != 2023 {
		t.Errorf("posted at = %v", got[0].PostedAt)
	}
	if got[1].URL != "https://jobs.lever.co/minesense/ab-3/apply" {
		t.Errorf("apply url fallback = %q", got[1].URL)
	}
}

func TestGreenhouseFetchCompany(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/boards/innergex/jobs" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"jobs":[
			{"id":411,"title":"Wind Technician","location":{"name":"Longueuil, Quebec"},"updated_at":"2026-02-10T09:00:00-05:00","absolute_url":"https://boards.greenhouse.io/innergex/jobs/411","content":"<p>Turbine maintenance.</p>","metadata":[{"name":"Salary Range","value":"\"$70,000 - $90,000\""}]},
			{"id":412,"title":"Analyst","location":{"name":"Paris, France"},"absolute_url":"https://boards.greenhouse.io/innergex/jobs/412"}
		],"meta":{"total":2}}`)
	}))
	defer srv.Close()

	src := NewGreenhouseSource(nil)
	src.client = srv.Client()
	src.apiBase = srv.URL

	got, err := src.FetchCompany(context.Background(), GreenhouseCompany{Token: "innergex", Name: "Innergex Renewable Energy", Sector: job.SectorRenewables})
	if err != nil {
		t.Fatalf("FetchCompany: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 posting, got %d", len(got))
	}
	p := got[0]
	if p.ExternalID != "411" {
		t.Errorf("external id = %q", p.ExternalID)
	}
	if p.SalaryMin != 70000 || p.SalaryMax != 90000 {
		t.Errorf("salary = %d-%d", p.SalaryMin, p.SalaryMax)
	}
	if strings.Contains(p.Description, "<p>") {
		t.Errorf("description not stripped: %q", p.Description)
	}
}

const rigzoneFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel>
<item>
  <title>Rig Manager - Precision Drilling - Grande Prairie, AB</title>
  <link>https://www.rigzone.com/jobs/1</link>
  <description><![CDATA[Run the rig.]]></description>
  <pubDate>Mon, 02 Feb 2026 08:00:00 -0700</pubDate>
</item>
<item>
  <title>Rig Manager - Precision Drilling - Grande Prairie, AB</title>
  <link>https://www.rigzone.com/jobs/1</link>
  <description>duplicate link</description>
</item>
<item>
  <title>no separator here</title>
  <link>https://www.rigzone.com/jobs/2</link>
</item>
</channel></rss>`

func TestFeedSourceScrape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, rigzoneFeed)
	}))
	defer srv.Close()

	src := &FeedSource{
		tag:      job.SourceRigzone,
		feedURLs: []string{srv.URL},
		client:   srv.Client(),
		mapItem:  mapRigzoneItem,
	}
	got, err := src.Scrape(context.Background())
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 posting after dedup and mapping, got %d", len(got))
	}
	p := got[0]
	if p.Title != "Rig Manager" || p.Company != "Precision Drilling" || p.Location != "Grande Prairie, AB" {
		t.Errorf("mapped fields = %q/%q/%q", p.Title, p.Company, p.Location)
	}
	if p.Sector != job.SectorOilGas {
		t.Errorf("sector = %q", p.Sector)
	}
	if p.PostedAt == nil {
		t.Errorf("expected pubDate parsed")
	}
}

func TestFeedSourceBlockedPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><title>Just a moment...</title></html>")
	}))
	defer srv.Close()

	src := &FeedSource{
		tag:      job.SourceInfomine,
		feedURLs: []string{srv.URL},
		client:   srv.Client(),
		mapItem:  mapInfomineItem,
	}
	if _, err := src.Scrape(context.Background()); err == nil {
		t.Fatal("expected error when the only feed is blocked")
	}
}

func TestParseRSSItemsCDATA(t *testing.T) {
	items := parseRSSItems([]byte(`<rss><channel><item>
		<title><![CDATA[Mill Operator]]></title>
		<link><![CDATA[https://example.org/1]]></link>
		<description>plain text</description>
		<source url="x">Canfor</source>
	</item></channel></rss>`))
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	it := items[0]
	if it.Title != "Mill Operator" || it.Link != "https://example.org/1" {
		t.Errorf("title/link = %q/%q", it.Title, it.Link)
	}
	if it.SourceName != "Canfor" {
		t.Errorf("source = %q", it.SourceName)
	}
}

func TestMapIndeedItem(t *testing.T) {
	p, ok := mapIndeedItem(rssItem{
		Title:      "Haul Truck Operator - Fort McMurray, AB",
		Link:       "https://ca.indeed.com/viewjob?jk=1",
		SourceName: "Suncor Energy",
		PubDate:    "Mon, 02 Feb 2026 08:00:00 -0700",
	})
	if !ok {
		t.Fatal("expected mapping to succeed")
	}
	if p.Title != "Haul Truck Operator" {
		t.Errorf("title = %q", p.Title)
	}
	if p.Location != "Fort McMurray, AB" {
		t.Errorf("location = %q", p.Location)
	}
	if p.Company != "Suncor Energy" {
		t.Errorf("company = %q", p.Company)
	}

	p, ok = mapIndeedItem(rssItem{
		Title:       "Forestry Technician",
		Link:        "https://ca.indeed.com/viewjob?jk=2",
		Description: "West Fraser - Plan cut blocks in Quesnel.",
	})
	if !ok || p.Company != "West Fraser" {
		t.Errorf("company from description = %q ok=%v", p.Company, ok)
	}

	if _, ok := mapIndeedItem(rssItem{Title: "No Company", Link: "https://x"}); ok {
		t.Error("expected items without a company to be dropped")
	}
}

func TestMapInfomineItem(t *testing.T) {
	p, ok := mapInfomineItem(rssItem{
		Title:       "Underground Miner",
		Link:        "https://www.infomine.com/careers/1",
		Description: "Company: Vale Canada\nLocation: Sudbury, ON\nShift work.",
	})
	if !ok {
		t.Fatal("expected mapping to succeed")
	}
	if p.Company != "Vale Canada" || p.Location != "Sudbury, ON" {
		t.Errorf("company/location = %q/%q", p.Company, p.Location)
	}
	if p.Sector != job.SectorMining {
		t.Errorf("sector = %q", p.Sector)
	}
}

func TestDetectATS(t *testing.T) {
	tests := []struct {
		name    string
		final   string
		html    string
		wantATS string
		wantRef string
		wantOK  bool
	}{
		{
			name:    "workday redirect",
			final:   "https://suncor.wd1.myworkdayjobs.com/Suncor_External",
			wantATS: "workday", wantRef: "suncor", wantOK: true,
		},
		{
			name:    "workday skips locale segment",
			html:    `<a href="https://suncor.wd1.myworkdayjobs.com/en-US">en</a> <a href="https://suncor.wd1.myworkdayjobs.com/Suncor_External">jobs</a>`,
			wantATS: "workday", wantRef: "suncor", wantOK: true,
		},
		{
			name:    "greenhouse embed",
			html:    `<script src="https://boards.greenhouse.io/innergex/embed"></script>`,
			wantATS: "greenhouse", wantRef: "innergex", wantOK: true,
		},
		{
			name:    "lever link",
			html:    `<a href="https://jobs.lever.co/minesense">Openings</a>`,
			wantATS: "lever", wantRef: "minesense", wantOK: true,
		},
		{
			name:    "recognized without adapter",
			html:    `<iframe src="https://jobs.ashbyhq.com/semios"></iframe>`,
			wantATS: "ashby", wantRef: "semios", wantOK: true,
		},
		{
			name:   "nothing recognized",
			html:   `<p>Email your resume to hr@example.org</p>`,
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det, ok := detectATS(tt.final, tt.html)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if det.ATS != tt.wantATS {
				t.Errorf("ats = %q, want %q", det.ATS, tt.wantATS)
			}
			if det.Refs[0] != tt.wantRef {
				t.Errorf("ref = %q, want %q", det.Refs[0], tt.wantRef)
			}
		})
	}
}

func TestDiscoveryDispatchesWorkday(t *testing.T) {
	var careerSrv *httptest.Server
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(workdaySearchResponse{
			JobPostings: []workdayPosting{
				{Title: "Shovel Operator", ExternalPath: "/job/SO_R-1", LocationsText: "Elkford, BC", BulletFields: []string{"R-1"}},
			},
		})
	}))
	defer apiSrv.Close()
	careerSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><a href="https://teck.wd3.myworkdayjobs.com/Teck_External">Search jobs</a></html>`)
	}))
	defer careerSrv.Close()

	workday := NewWorkdaySource(nil)
	workday.client = apiSrv.Client()
	workday.hostOverride = apiSrv.URL

	src := NewDiscoverySource(workday, nil, nil, nil)
	src.pace = 0
	src.companies = []CompanyTarget{{Name: "Teck Resources", Sector: job.SectorMining, CareerURL: careerSrv.URL}}

	got, err := src.Scrape(context.Background())
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 posting, got %d", len(got))
	}
	if got[0].Source != job.SourceDiscover {
		t.Errorf("source = %q, want %q", got[0].Source, job.SourceDiscover)
	}
	if got[0].Company != "Teck Resources" {
		t.Errorf("company = %q", got[0].Company)
	}
}

type stubFetcher struct {
	body     string
	finalURL string
	err      error
}

func (f *stubFetcher) Fetch(_ context.Context, rawURL string, _ fetch.Options) (fetch.Page, error) {
	if f.err != nil {
		return fetch.Page{}, f.err
	}
	final := f.finalURL
	if final == "" {
		final = rawURL
	}
	return fetch.Page{Body: []byte(f.body), FinalURL: final}, nil
}

func TestCompanyPagesSource(t *testing.T) {
	html := `<html><body>
		<div class="job-row"><span class="t">Sawmill Supervisor</span><span class="l">Quesnel, BC</span><a href="/careers/123">apply</a></div>
		<div class="job-row"><span class="t">Log Truck Driver</span><span class="l">Prince George, BC</span><a href="/careers/124">apply</a></div>
	</body></html>`

	src := NewCompanyPagesSource(&stubFetcher{body: html}, nil)
	src.pages = []CareerPage{{
		Company: "West Fraser", Sector: job.SectorForestry,
		URL: "https://www.westfraser.com/careers",
		Groups: []extract.SelectorGroup{{
			Name:     "test",
			Card:     ".job-row",
			Title:    extract.Field{Selectors: []string{".t"}},
			Location: extract.Field{Selectors: []string{".l"}},
			Link:     extract.Field{Selectors: []string{"a"}},
		}},
	}}

	got, err := src.Scrape(context.Background())
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 postings, got %d", len(got))
	}
	if got[0].URL != "https://www.westfraser.com/careers/123" {
		t.Errorf("relative link not resolved: %q", got[0].URL)
	}
	if !strings.HasPrefix(got[0].ExternalID, "urlsha1-") {
		t.Errorf("external id = %q", got[0].ExternalID)
	}
}

func TestCompanyPagesSourceAllFail(t *testing.T) {
	src := NewCompanyPagesSource(&stubFetcher{err: fmt.Errorf("connection refused")}, nil)
	src.pages = src.pages[:1]
	if _, err := src.Scrape(context.Background()); err == nil {
		t.Fatal("expected error when every page fails")
	}
}

func TestRegistry(t *testing.T) {
	sample := NewSampleSource()
	rigzone := NewRigzoneSource(nil)
	r := NewRegistry(sample, rigzone, nil, sample)

	tags := r.Tags()
	if len(tags) != 2 || tags[0] != job.SourceSample || tags[1] != job.SourceRigzone {
		t.Fatalf("tags = %v", tags)
	}
	if _, ok := r.Lookup(job.SourceRigzone); !ok {
		t.Error("expected rigzone to resolve")
	}
	if _, ok := r.Lookup("unknown"); ok {
		t.Error("unknown tag should not resolve")
	}
}

func TestWorkerPoolRunsAllTasks(t *testing.T) {
	pool := NewWorkerPool(3, 8)
	pool.SetRateLimit(100)
	results := pool.Run(context.Background())

	var ran int32
	for i := 0; i < 8; i++ {
		i := i
		pool.Submit(func(context.Context) error {
			atomic.AddInt32(&ran, 1)
			if i%4 == 0 {
				return fmt.Errorf("task %d", i)
			}
			return nil
		})
	}
	pool.Close()

	got, failed := 0, 0
	for res := range results {
		got++
		if res.Err != nil {
			failed++
		}
	}
	if got != 8 || failed != 2 {
		t.Fatalf("results = %d failed = %d", got, failed)
	}
	if atomic.LoadInt32(&ran) != 8 {
		t.Fatalf("ran = %d", ran)
	}
}

func TestWorkerPoolNilReceiver(t *testing.T) {
	var pool *WorkerPool
	pool.Submit(func(context.Context) error { return nil })
	pool.SetRateLimit(1)
	pool.Close()
	if _, ok := <-pool.Run(context.Background()); ok {
		t.Fatalf("expected a closed result channel from a nil pool")
	}
}

func TestSampleSourceScrape(t *testing.T) {
	src := NewSampleSource()
	fixed := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return fixed }

	got, err := src.Scrape(context.Background())
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if len(got) < len(sampleEmployers)*2 {
		t.Fatalf("expected at least 2 postings per employer, got %d", len(got))
	}
	for _, p := range got {
		if p.ExternalID == "" || p.Title == "" || p.Company == "" {
			t.Fatalf("incomplete posting: %+v", p)
		}
		if p.SalaryMin <= 0 || p.SalaryMax <= p.SalaryMin {
			t.Errorf("%s: salary range %d-%d", p.Title, p.SalaryMin, p.SalaryMax)
		}
		if p.PostedAt == nil || p.PostedAt.After(fixed) || p.PostedAt.Before(fixed.AddDate(0, 0, -30)) {
			t.Errorf("%s: posted at %v", p.Title, p.PostedAt)
		}
	}
}
