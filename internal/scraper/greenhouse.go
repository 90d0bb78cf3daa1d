package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"resource-jobs/internal/domain/job"
	"resource-jobs/internal/normalize"
)

type GreenhouseCompany struct {
	Token  string
	Name   string
	Sector string
}

func defaultGreenhouseCompanies() []GreenhouseCompany {
	return []GreenhouseCompany{
		{Token: "innergex", Name: "Innergex Renewable Energy", Sector: job.SectorRenewables},
		{Token: "boralex", Name: "Boralex", Sector: job.SectorRenewables},
		{Token: "hatch", Name: "Hatch", Sector: job.SectorMining},
		{Token: "tetratech", Name: "Tetra Tech", Sector: job.SectorEnvironmental},
		{Token: "ghd", Name: "GHD", Sector: job.SectorEnvironmental},
		{Token: "mapleleaffoods", Name: "Maple Leaf Foods", Sector: job.SectorAgriculture},
		{Token: "cookeaqua", Name: "Cooke Aquaculture", Sector: job.SectorFishing},
	}
}

type GreenhouseSource struct {
	client    *http.Client
	logger    *log.Logger
	apiBase   string
	companies []GreenhouseCompany
	pace      time.Duration
}

func NewGreenhouseSource(logger *log.Logger) *GreenhouseSource {
	return &GreenhouseSource{
		client:    &http.Client{Timeout: 25 * time.Second},
		logger:    logger,
		apiBase:   "https://boards-api.greenhouse.io",
		companies: defaultGreenhouseCompanies(),
		pace:      time.Second,
	}
}

func (s *GreenhouseSource) Tag() string { return job.SourceGreenhouse }

func (s *GreenhouseSource) Scrape(ctx context.Context) ([]job.Posting, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("nil greenhouse source")
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
				s.logger.Printf("[Greenhouse] board=%s err=%v", co.Token, err)
			}
			continue
		}
		out = append(out, ps...)
	}
	if len(s.companies) > 0 && failures == len(s.companies) {
		return nil, fmt.Errorf("all %d greenhouse boards failed", failures)
	}
	return out, nil
}

type greenhouseJob struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Location struct {
		Name string `json:"name"`
	} `json:"location"`
	UpdatedAt   string `json:"updated_at"`
	AbsoluteURL string `json:"absolute_url"`
	Content     string `json:"content"`
	Metadata    []struct {
		Name  string          `json:"name"`
		Value json.RawMessage `json:"value"`
	} `json:"metadata"`
}

type greenhouseResponse struct {
	Jobs []greenhouseJob `json:"jobs"`
	Meta struct {
		Total int `json:"total"`
	} `json:"meta"`
}

func (s *GreenhouseSource) FetchCompany(ctx context.Context, co GreenhouseCompany) ([]job.Posting, error) {
	url := fmt.Sprintf("%s/v1/boards/%s/jobs?content=true", strings.TrimRight(s.apiBase, "/"), co.Token)
	body, err := httpGetWithRetry(ctx, s.client, url, 3)
	if err != nil {
		return nil, err
	}

	var resp greenhouseResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	out := make([]job.Posting, 0, len(resp.Jobs))
	for _, gj := range resp.Jobs {
		if strings.TrimSpace(gj.Title) == "" {
			continue
		}
		loc := strings.TrimSpace(gj.Location.Name)
		if loc != "" && !isCanadianLocation(loc) && !normalize.IsRemote(loc) {
			continue
		}
		var postedAt *time.Time
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(gj.UpdatedAt)); err == nil {
			t = t.UTC()
			postedAt = &t
		}
		salaryRaw := metadataSalary(gj)
		min, max := 0, 0
		if salaryRaw != "" {
			min, max, _ = normalize.ParseSalary(salaryRaw)
		}
		out = append(out, job.Posting{
			Source:      job.SourceGreenhouse,
			ExternalID:  strconv.FormatInt(gj.ID, 10),
			Title:       gj.Title,
			Company:     co.Name,
			Location:    loc,
			Sector:      co.Sector,
			SalaryMin:   min,
			SalaryMax:   max,
			SalaryRaw:   salaryRaw,
			Description: normalize.StripHTML(gj.Content),
			URL:         gj.AbsoluteURL,
			PostedAt:    postedAt,
		})
	}
	return out, nil
}

func metadataSalary(gj greenhouseJob) string {
	for _, m := range gj.Metadata {
		name := strings.ToLower(m.Name)
		if !strings.Contains(name, "salary") && !strings.Contains(name, "compensation") {
			continue
		}
		var v string
		if err := json.Unmarshal(m.Value, &v); err == nil && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
