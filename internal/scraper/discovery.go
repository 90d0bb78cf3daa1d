package scraper

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"resource-jobs/internal/domain/job"

	"github.com/gocolly/colly/v2"
)

// CompanyTarget is a career page to probe for a hosted ATS.
type CompanyTarget struct {
	Name      string
	Sector    string
	CareerURL string
}

func defaultDiscoveryTargets() []CompanyTarget {
	return []CompanyTarget{
		{Name: "Imperial Oil", Sector: job.SectorOilGas, CareerURL: "https://www.imperialoil.ca/en-ca/careers"},
		{Name: "Pembina Pipeline", Sector: job.SectorOilGas, CareerURL: "https://www.pembina.com/careers"},
		{Name: "Precision Drilling", Sector: job.SectorOilGas, CareerURL: "https://www.precisiondrilling.com/careers"},
		{Name: "Barrick Gold", Sector: job.SectorMining, CareerURL: "https://www.barrick.com/English/careers"},
		{Name: "Cameco", Sector: job.SectorMining, CareerURL: "https://www.cameco.com/careers"},
		{Name: "First Quantum Minerals", Sector: job.SectorMining, CareerURL: "https://www.first-quantum.com/careers"},
		{Name: "Interfor", Sector: job.SectorForestry, CareerURL: "https://www.interfor.com/careers"},
		{Name: "Tolko Industries", Sector: job.SectorForestry, CareerURL: "https://www.tolko.com/careers"},
		{Name: "Mowi Canada", Sector: job.SectorFishing, CareerURL: "https://mowi.com/careers"},
		{Name: "Richardson International", Sector: job.SectorAgriculture, CareerURL: "https://www.richardson.ca/careers"},
		{Name: "Northland Power", Sector: job.SectorRenewables, CareerURL: "https://www.northlandpower.com/careers"},
		{Name: "Stantec", Sector: job.SectorEnvironmental, CareerURL: "https://www.stantec.com/en/careers"},
	}
}

type atsDetection struct {
	ATS  string
	Refs []string
}

var (
	workdayTenantRe = regexp.MustCompile(`https?://([a-z0-9-]+)\.(wd\d+)\.myworkdayjobs\.com(?:/([A-Za-z0-9_-]+))?`)
	greenhouseRe    = regexp.MustCompile(`(?:boards|job-boards)\.greenhouse\.io/([a-z0-9-]+)`)
	leverRe         = regexp.MustCompile(`jobs\.lever\.co/([a-z0-9-]+)`)
	localeSegmentRe = regexp.MustCompile(`^[a-z]{2}-[A-Z]{2}$`)

	// recognized but not yet dispatchable
	otherATSRes = map[string]*regexp.Regexp{
		"smartrecruiters": regexp.MustCompile(`(?:jobs|careers)\.smartrecruiters\.com/([A-Za-z0-9]+)`),
		"icims":           regexp.MustCompile(`([a-z0-9-]+)\.icims\.com`),
		"bamboohr":        regexp.MustCompile(`([a-z0-9-]+)\.bamboohr\.com`),
		"ashby":           regexp.MustCompile(`jobs\.ashbyhq\.com/([a-z0-9-]+)`),
		"recruitee":       regexp.MustCompile(`([a-z0-9-]+)\.recruitee\.com`),
		"jobvite":         regexp.MustCompile(`jobs\.jobvite\.com/([a-z0-9-]+)`),
	}
)

// detectATS tests the page text and final URL against the known ATS
// patterns, in dispatch priority order.
func detectATS(finalURL string, html string) (atsDetection, bool) {
	haystack := html + " " + finalURL

	for _, m := range workdayTenantRe.FindAllStringSubmatch(haystack, -1) {
		sub, wd, site := m[1], m[2], m[3]
		if site == "" || localeSegmentRe.MatchString(site) || len(site) <= 3 {
			continue
		}
		return atsDetection{ATS: "workday", Refs: []string{sub, wd, site}}, true
	}
	if m := greenhouseRe.FindStringSubmatch(haystack); m != nil {
		return atsDetection{ATS: "greenhouse", Refs: []string{m[1]}}, true
	}
	if m := leverRe.FindStringSubmatch(haystack); m != nil {
		return atsDetection{ATS: "lever", Refs: []string{m[1]}}, true
	}
	for name, re := range otherATSRes {
		if m := re.FindStringSubmatch(haystack); m != nil {
			return atsDetection{ATS: name, Refs: m[1:]}, true
		}
	}
	return atsDetection{}, false
}

// DiscoverySource crawls career pages, detects which hosted ATS serves them
// and dispatches detected boards to the matching vendor adapter.
type DiscoverySource struct {
	companies  []CompanyTarget
	workday    *WorkdaySource
	lever      *LeverSource
	greenhouse *GreenhouseSource
	logger     *log.Logger
	pace       time.Duration
}

func NewDiscoverySource(workday *WorkdaySource, lever *LeverSource, greenhouse *GreenhouseSource, logger *log.Logger) *DiscoverySource {
	return &DiscoverySource{
		companies:  defaultDiscoveryTargets(),
		workday:    workday,
		lever:      lever,
		greenhouse: greenhouse,
		logger:     logger,
		pace:       1500 * time.Millisecond,
	}
}

func (s *DiscoverySource) Tag() string { return job.SourceDiscover }

func (s *DiscoverySource) Scrape(ctx context.Context) ([]job.Posting, error) {
	if s == nil {
		return nil, fmt.Errorf("nil discovery source")
	}

	out := make([]job.Posting, 0)
	fetchFailures := 0
	for i, co := range s.companies {
		if i > 0 {
			sleepCtx(ctx, s.pace)
		}
		if ctx.Err() != nil {
			return out, ctx.Err()
		}

		finalURL, html, err := s.fetchCareerPage(ctx, co.CareerURL)
		if err != nil {
			fetchFailures++
			if s.logger != nil {
				s.logger.Printf("[Discover] company=%s fetch err=%v", co.Name, err)
			}
			continue
		}

		det, ok := detectATS(finalURL, html)
		if !ok {
			if s.logger != nil {
				s.logger.Printf("[Discover] company=%s no ATS recognized", co.Name)
			}
			continue
		}

		ps, err := s.dispatch(ctx, co, det)
		if err != nil {
			if s.logger != nil {
				s.logger.Printf("[Discover] company=%s ats=%s err=%v", co.Name, det.ATS, err)
			}
			continue
		}
		out = append(out, ps...)
	}
	if len(s.companies) > 0 && fetchFailures == len(s.companies) {
		return nil, fmt.Errorf("all %d career pages unreachable", fetchFailures)
	}
	return out, nil
}

func (s *DiscoverySource) dispatch(ctx context.Context, co CompanyTarget, det atsDetection) ([]job.Posting, error) {
	switch det.ATS {
	case "workday":
		if s.workday == nil {
			return nil, fmt.Errorf("workday adapter not wired")
		}
		ps, err := s.workday.FetchCompany(ctx, WorkdayCompany{
			Name: co.Name, Subdomain: det.Refs[0], WD: det.Refs[1], Site: det.Refs[2], Sector: co.Sector,
		})
		return retag(ps, job.SourceDiscover), err
	case "greenhouse":
		if s.greenhouse == nil {
			return nil, fmt.Errorf("greenhouse adapter not wired")
		}
		ps, err := s.greenhouse.FetchCompany(ctx, GreenhouseCompany{
			Token: det.Refs[0], Name: co.Name, Sector: co.Sector,
		})
		return retag(ps, job.SourceDiscover), err
	case "lever":
		if s.lever == nil {
			return nil, fmt.Errorf("lever adapter not wired")
		}
		ps, err := s.lever.FetchCompany(ctx, LeverCompany{
			Slug: det.Refs[0], Name: co.Name, Sector: co.Sector,
		})
		return retag(ps, job.SourceDiscover), err
	default:
		if s.logger != nil {
			s.logger.Printf("[Discover] company=%s ats=%s recognized, no adapter", co.Name, det.ATS)
		}
		return nil, nil
	}
}

// retag attributes dispatched postings to the discovery run so dedup keys
// stay stable across direct and discovered scrapes of the same board.
func retag(ps []job.Posting, tag string) []job.Posting {
	for i := range ps {
		ps[i].Source = tag
	}
	return ps
}

func (s *DiscoverySource) fetchCareerPage(ctx context.Context, pageURL string) (finalURL string, html string, err error) {
	c := colly.NewCollector(colly.UserAgent(browserUA))
	_ = c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 1, RandomDelay: 500 * time.Millisecond})

	var body []byte
	var reqErr error
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		if r.Request != nil && r.Request.URL != nil {
			finalURL = r.Request.URL.String()
		}
	})
	c.OnError(func(_ *colly.Response, err error) {
		reqErr = err
	})

	if ctx.Err() != nil {
		return "", "", ctx.Err()
	}
	if err := c.Visit(strings.TrimSpace(pageURL)); err != nil {
		return "", "", err
	}
	c.Wait()
	if reqErr != nil {
		return "", "", reqErr
	}
	if finalURL == "" {
		finalURL = pageURL
	}
	return finalURL, string(body), nil
}
