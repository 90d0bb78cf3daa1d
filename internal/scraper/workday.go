package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"resource-jobs/internal/domain/job"
)

// WorkdayCompany identifies one tenant career site: postings live at
// https://{subdomain}.{wd}.myworkdayjobs.com/{site}.
type WorkdayCompany struct {
	Name      string
	Subdomain string
	WD        string
	Site      string
	Sector    string
}

func defaultWorkdayCompanies() []WorkdayCompany {
	return []WorkdayCompany{
		{Name: "Suncor Energy", Subdomain: "suncor", WD: "wd1", Site: "Suncor_External", Sector: job.SectorOilGas},
		{Name: "TC Energy", Subdomain: "tcenergy", WD: "wd3", Site: "CAREER_SITE_TC", Sector: job.SectorOilGas},
		{Name: "Enbridge", Subdomain: "enbridge", WD: "wd3", Site: "enbridge_careers", Sector: job.SectorOilGas},
		{Name: "Cenovus Energy", Subdomain: "cenovus", WD: "wd3", Site: "External", Sector: job.SectorOilGas},
		{Name: "Capital Power", Subdomain: "capitalpower", WD: "wd10", Site: "CPC", Sector: job.SectorRenewables},
		{Name: "Agnico Eagle", Subdomain: "agnicoeagle", WD: "wd3", Site: "AgnicoEagle", Sector: job.SectorMining},
		{Name: "Nutrien", Subdomain: "nutrien", WD: "wd3", Site: "Nutrien_Careers", Sector: job.SectorAgriculture},
		{Name: "Canfor", Subdomain: "canfor", WD: "wd3", Site: "Canfor_Careers", Sector: job.SectorForestry},
	}
}

type WorkdaySource struct {
	client    *http.Client
	logger    *log.Logger
	companies []WorkdayCompany
	// overrides the per-company host when set, for tests
	hostOverride string
	pace         time.Duration
	pageLimit    int
}

func NewWorkdaySource(logger *log.Logger) *WorkdaySource {
	return &WorkdaySource{
		client:    &http.Client{Timeout: 25 * time.Second},
		logger:    logger,
		companies: defaultWorkdayCompanies(),
		pace:      2 * time.Second,
		pageLimit: 20,
	}
}

func (s *WorkdaySource) Tag() string { return job.SourceWorkday }

func (s *WorkdaySource) Scrape(ctx context.Context) ([]job.Posting, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("nil workday source")
	}

	out := make([]job.Posting, 0)
	failures := 0
	for i, co := range s.companies {
		if i > 0 {
			sleepCtx(ctx, s.pace)
		}
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		ps, err := s.FetchCompany(ctx, co)
		if err != nil {
			failures++
			if s.logger != nil {
				s.logger.Printf("[Workday] company=%s err=%v", co.Name, err)
			}
			continue
		}
		out = append(out, ps...)
	}
	if len(s.companies) > 0 && failures == len(s.companies) {
		return nil, fmt.Errorf("all %d workday tenants failed", failures)
	}
	return out, nil
}

type workdaySearchRequest struct {
	AppliedFacets map[string]any `json:"appliedFacets"`
	Limit         int            `json:"limit"`
	Offset        int            `json:"offset"`
	SearchText    string         `json:"searchText"`
}

type workdayPosting struct {
	Title         string   `json:"title"`
	ExternalPath  string   `json:"externalPath"`
	LocationsText string   `json:"locationsText"`
	PostedOn      string   `json:"postedOn"`
	BulletFields  []string `json:"bulletFields"`
}

type workdaySearchResponse struct {
	Total       int              `json:"total"`
	JobPostings []workdayPosting `json:"jobPostings"`
}

// FetchCompany pulls the first page of postings for one tenant and keeps the
// Canadian ones. Discovery reuses it for tenants it detects.
func (s *WorkdaySource) FetchCompany(ctx context.Context, co WorkdayCompany) ([]job.Posting, error) {
	host := s.hostOverride
	if host == "" {
		host = fmt.Sprintf("https://%s.%s.myworkdayjobs.com", co.Subdomain, co.WD)
	}
	endpoint := fmt.Sprintf("%s/wday/cxs/%s/%s/jobs", strings.TrimRight(host, "/"), co.Subdomain, co.Site)

	payload, err := json.Marshal(workdaySearchRequest{
		AppliedFacets: map[string]any{},
		Limit:         s.pageLimit,
		Offset:        0,
		SearchText:    "",
	})
	if err != nil {
		return nil, err
	}

	body, err := httpPostJSON(ctx, s.client, endpoint, payload)
	if err != nil {
		return nil, err
	}

	var resp workdaySearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	out := make([]job.Posting, 0, len(resp.JobPostings))
	for _, p := range resp.JobPostings {
		if strings.TrimSpace(p.Title) == "" {
			continue
		}
		if !isCanadianLocation(p.LocationsText) {
			continue
		}
		url := strings.TrimRight(host, "/") + "/" + strings.TrimLeft(p.ExternalPath, "/")
		externalID := ""
		if len(p.BulletFields) > 0 {
			externalID = strings.TrimSpace(p.BulletFields[0])
		}
		if externalID == "" {
			externalID = stableExternalIDFromURL(p.ExternalPath)
		}
		out = append(out, job.Posting{
			Source:     job.SourceWorkday,
			ExternalID: co.Subdomain + "-" + externalID,
			Title:      p.Title,
			Company:    co.Name,
			Location:   p.LocationsText,
			Sector:     co.Sector,
			URL:        url,
		})
	}
	return out, nil
}
