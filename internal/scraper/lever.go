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
	"resource-jobs/internal/normalize"
)

type LeverCompany struct {
	Slug   string
	Name   string
	Sector string
}

func defaultLeverCompanies() []LeverCompany {
	return []LeverCompany{
		{Slug: "bullfrogpower", Name: "Bullfrog Power", Sector: job.SectorRenewables},
		{Slug: "sparkpower", Name: "Spark Power", Sector: job.SectorRenewables},
		{Slug: "carboncure", Name: "CarbonCure Technologies", Sector: job.SectorEnvironmental},
		{Slug: "minesense", Name: "MineSense Technologies", Sector: job.SectorMining},
		{Slug: "terramera", Name: "Terramera", Sector: job.SectorAgriculture},
		{Slug: "semios", Name: "Semios", Sector: job.SectorAgriculture},
	}
}

type LeverSource struct {
	client    *http.Client
	logger    *log.Logger
	apiBase   string
	companies []LeverCompany
	pace      time.Duration
}

func NewLeverSource(logger *log.Logger) *LeverSource {
	return &LeverSource{
		client:    &http.Client{Timeout: 25 * time.Second},
		logger:    logger,
		apiBase:   "https://api.lever.co",
		companies: defaultLeverCompanies(),
		pace:      time.Second,
	}
}

func (s *LeverSource) Tag() string { return job.SourceLever }

func (s *LeverSource) Scrape(ctx context.Context) ([]job.Posting, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("nil lever source")
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
				s.logger.Printf("[Lever] company=%s err=%v", co.Slug, err)
			}
			continue
		}
		out = append(out, ps...)
	}
	if len(s.companies) > 0 && failures == len(s.companies) {
		return nil, fmt.Errorf("all %d lever boards failed", failures)
	}
	return out, nil
}

type leverPosting struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	HostedURL  string `json:"hostedUrl"`
	ApplyURL   string `json:"applyUrl"`
	Categories struct {
		Location   string `json:"location"`
		Team       string `json:"team"`
		Commitment string `json:"commitment"`
	} `json:"categories"`
	DescriptionPlain string `json:"descriptionPlain"`
	CreatedAt        int64  `json:"createdAt"`
}

func (s *LeverSource) FetchCompany(ctx context.Context, co LeverCompany) ([]job.Posting, error) {
	url := fmt.Sprintf("%s/v0/postings/%s?mode=json", strings.TrimRight(s.apiBase, "/"), co.Slug)
	body, err := httpGetWithRetry(ctx, s.client, url, 3)
	if err != nil {
		return nil, err
	}

	var items []leverPosting
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, err
	}

	out := make([]job.Posting, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.Text) == "" {
			continue
		}
		loc := strings.TrimSpace(it.Categories.Location)
		if loc != "" && !isCanadianLocation(loc) && !normalize.IsRemote(loc) {
			continue
		}
		var postedAt *time.Time
		if it.CreatedAt > 0 {
			t := time.UnixMilli(it.CreatedAt).UTC()
			postedAt = &t
		}
		jobType := ""
		if strings.TrimSpace(it.Categories.Commitment) != "" {
			jobType = normalize.ParseJobType(it.Categories.Commitment)
		}
		out = append(out, job.Posting{
			Source:      job.SourceLever,
			ExternalID:  it.ID,
			Title:       it.Text,
			Company:     co.Name,
			Location:    loc,
			Sector:      co.Sector,
			JobType:     jobType,
			Description: it.DescriptionPlain,
			URL:         pickNonEmpty(it.HostedURL, it.ApplyURL),
			PostedAt:    postedAt,
		})
	}
	return out, nil
}
