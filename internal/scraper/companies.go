package scraper

import (
	"context"
	"fmt"
	"log"
	"sync"

	"resource-jobs/internal/domain/job"
	"resource-jobs/internal/extract"
	"resource-jobs/internal/infrastructure/fetch"
)

// CareerPage is one company career site scraped with the extraction engine.
// Custom selector groups take priority over the hosted-ATS defaults.
type CareerPage struct {
	Company  string
	Sector   string
	URL      string
	RenderJS bool
	WaitMS   int
	Groups   []extract.SelectorGroup
}

func defaultCareerPages() []CareerPage {
	return []CareerPage{
		{
			Company: "CN Rail", Sector: job.SectorGeneralLabor,
			URL: "https://www.cn.ca/en/careers/search-jobs/", RenderJS: true, WaitMS: 3000,
			Groups: []extract.SelectorGroup{{
				Name:     "cn-rail",
				Card:     ".job-listing, .careers-job-item",
				Title:    extract.Field{Selectors: []string{".job-title", "h3 a", "h3"}},
				Location: extract.Field{Selectors: []string{".job-location", ".location"}},
				Link:     extract.Field{Selectors: []string{"a"}},
			}},
		},
		{
			Company: "Teck Resources", Sector: job.SectorMining,
			URL: "https://www.teck.com/careers/search-jobs/", RenderJS: true, WaitMS: 3000,
			Groups: []extract.SelectorGroup{{
				Name:     "teck",
				Card:     ".jobs-list-item, tr.data-row",
				Title:    extract.Field{Selectors: []string{"a.jobTitle-link", ".job-title", "a"}},
				Location: extract.Field{Selectors: []string{".jobLocation", ".location"}},
				Link:     extract.Field{Selectors: []string{"a.jobTitle-link", "a"}},
			}},
		},
		{
			Company: "West Fraser", Sector: job.SectorForestry,
			URL: "https://www.westfraser.com/careers/job-opportunities", RenderJS: true, WaitMS: 2000,
		},
		{
			Company: "BC Hydro", Sector: job.SectorRenewables,
			URL: "https://careers.bchydro.com/search-jobs", RenderJS: true, WaitMS: 3000,
			Groups: []extract.SelectorGroup{{
				Name:     "bchydro",
				Card:     "tr.data-row",
				Title:    extract.Field{Selectors: []string{"a.jobTitle-link"}},
				Location: extract.Field{Selectors: []string{".jobLocation"}},
				Link:     extract.Field{Selectors: []string{"a.jobTitle-link"}},
			}},
		},
	}
}

// CompanyPagesSource runs the extraction engine over configured career pages
// through the fetch capability.
type CompanyPagesSource struct {
	pages   []CareerPage
	fetcher fetch.Fetcher
	logger  *log.Logger
	workers int
}

func NewCompanyPagesSource(fetcher fetch.Fetcher, logger *log.Logger) *CompanyPagesSource {
	return &CompanyPagesSource{
		pages:   defaultCareerPages(),
		fetcher: fetcher,
		logger:  logger,
		workers: 2,
	}
}

func (s *CompanyPagesSource) Tag() string { return job.SourceCompanies }

func (s *CompanyPagesSource) Scrape(ctx context.Context) ([]job.Posting, error) {
	if s == nil || s.fetcher == nil {
		return nil, fmt.Errorf("nil company pages source")
	}
	if len(s.pages) == 0 {
		return nil, nil
	}

	pool := NewWorkerPool(s.workers, len(s.pages))
	pool.SetRateLimit(1)
	results := pool.Run(ctx)

	var mu sync.Mutex
	out := make([]job.Posting, 0)

	for _, page := range s.pages {
		page := page
		pool.Submit(func(ctx context.Context) error {
			ps, err := s.scrapePage(ctx, page)
			if err != nil {
				return fmt.Errorf("%s: %w", page.Company, err)
			}
			mu.Lock()
			out = append(out, ps...)
			mu.Unlock()
			return nil
		})
	}
	pool.Close()

	failures := 0
	for res := range results {
		if res.Err != nil {
			failures++
			if s.logger != nil {
				s.logger.Printf("[Companies] %v", res.Err)
			}
		}
	}
	if failures == len(s.pages) {
		return nil, fmt.Errorf("all %d career pages failed", failures)
	}
	return out, nil
}

func (s *CompanyPagesSource) scrapePage(ctx context.Context, page CareerPage) ([]job.Posting, error) {
	fetched, err := s.fetcher.Fetch(ctx, page.URL, fetch.Options{
		RenderJS:     page.RenderJS,
		WaitMS:       page.WaitMS,
		PremiumProxy: true,
		BlockAds:     true,
	})
	if err != nil {
		return nil, err
	}

	groups := append(append([]extract.SelectorGroup{}, page.Groups...), extract.DefaultGroups()...)
	engine := extract.NewEngine(groups, s.logger)

	candidates, _, err := engine.Extract(fetched.Body, fetched.FinalURL)
	if err != nil {
		return nil, err
	}

	out := make([]job.Posting, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, job.Posting{
			Source:     job.SourceCompanies,
			ExternalID: stableExternalIDFromURL(pickNonEmpty(c.URL, page.URL+"#"+c.Title)),
			Title:      c.Title,
			Company:    page.Company,
			Location:   c.Location,
			Sector:     page.Sector,
			URL:        c.URL,
		})
	}
	return out, nil
}
