package scraper

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"resource-jobs/internal/domain/job"
)

// FeedSource scrapes one RSS job feed family. Feeds are fetched in order
// with pacing; per-feed failures are tolerated unless every feed fails.
type FeedSource struct {
	tag      string
	feedURLs []string
	client   *http.Client
	logger   *log.Logger
	pace     time.Duration
	mapItem  func(it rssItem) (job.Posting, bool)
}

type rssItem struct {
	Title       string
	Link        string
	Description string
	PubDate     string
	SourceName  string
}

var indeedSearches = []struct{ query, location string }{
	{"mining", "Alberta"},
	{"oil and gas", "Alberta"},
	{"forestry", "British Columbia"},
	{"mining", "Ontario"},
	{"agriculture", "Saskatchewan"},
	{"fishing", "Nova Scotia"},
	{"renewable energy", "Canada"},
	{"environmental technician", "Canada"},
}

func NewIndeedSource(logger *log.Logger) *FeedSource {
	urls := make([]string, 0, len(indeedSearches))
	for _, s := range indeedSearches {
		urls = append(urls, fmt.Sprintf(
			"https://ca.indeed.com/rss?q=%s&l=%s&sort=date&fromage=14",
			url.QueryEscape(s.query), url.QueryEscape(s.location),
		))
	}
	return &FeedSource{
		tag:      job.SourceIndeed,
		feedURLs: urls,
		client:   &http.Client{Timeout: 25 * time.Second},
		logger:   logger,
		pace:     3 * time.Second,
		mapItem:  mapIndeedItem,
	}
}

func NewRigzoneSource(logger *log.Logger) *FeedSource {
	return &FeedSource{
		tag:      job.SourceRigzone,
		feedURLs: []string{"https://www.rigzone.com/jobs/rss/canada/"},
		client:   &http.Client{Timeout: 25 * time.Second},
		logger:   logger,
		pace:     time.Second,
		mapItem:  mapRigzoneItem,
	}
}

func NewInfomineSource(logger *log.Logger) *FeedSource {
	return &FeedSource{
		tag:      job.SourceInfomine,
		feedURLs: []string{"https://www.infomine.com/careers/rss/canada/"},
		client:   &http.Client{Timeout: 25 * time.Second},
		logger:   logger,
		pace:     time.Second,
		mapItem:  mapInfomineItem,
	}
}

func (s *FeedSource) Tag() string { return s.tag }

func (s *FeedSource) Scrape(ctx context.Context) ([]job.Posting, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("nil feed source")
	}

	out := make([]job.Posting, 0)
	seen := map[string]struct{}{}
	failures := 0
	for i, feedURL := range s.feedURLs {
		if i > 0 {
			sleepCtx(ctx, s.pace)
		}
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		body, err := httpGetWithRetry(ctx, s.client, feedURL, 2)
		if err != nil {
			failures++
			if s.logger != nil {
				s.logger.Printf("[Feed] tag=%s url=%s err=%v", s.tag, feedURL, err)
			}
			continue
		}
		if feedBlocked(body) {
			failures++
			if s.logger != nil {
				s.logger.Printf("[Feed] tag=%s url=%s blocked by anti-bot page", s.tag, feedURL)
			}
			continue
		}
		for _, it := range parseRSSItems(body) {
			p, ok := s.mapItem(it)
			if !ok {
				continue
			}
			key := pickNonEmpty(p.URL, p.Title+"|"+p.Company)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, p)
		}
	}
	if len(s.feedURLs) > 0 && failures == len(s.feedURLs) {
		return nil, fmt.Errorf("all %d feeds failed", failures)
	}
	return out, nil
}

var (
	rssItemRe    = regexp.MustCompile(`(?s)<item>(.*?)</item>`)
	rssTitleRe   = regexp.MustCompile(`(?s)<title>(?:<!\[CDATA\[(.*?)\]\]>|(.*?))</title>`)
	rssLinkRe    = regexp.MustCompile(`(?s)<link>(?:<!\[CDATA\[(.*?)\]\]>|(.*?))</link>`)
	rssDescRe    = regexp.MustCompile(`(?s)<description>(?:<!\[CDATA\[(.*?)\]\]>|(.*?))</description>`)
	rssPubDateRe = regexp.MustCompile(`(?s)<pubDate>(.*?)</pubDate>`)
	rssSourceRe  = regexp.MustCompile(`(?s)<source[^>]*>(.*?)</source>`)
)

func feedBlocked(body []byte) bool {
	s := strings.ToLower(string(body))
	return strings.Contains(s, "just a moment") || strings.Contains(s, "captcha")
}

func parseRSSItems(body []byte) []rssItem {
	matches := rssItemRe.FindAllStringSubmatch(string(body), -1)
	out := make([]rssItem, 0, len(matches))
	for _, m := range matches {
		raw := m[1]
		out = append(out, rssItem{
			Title:       firstGroup(rssTitleRe, raw),
			Link:        firstGroup(rssLinkRe, raw),
			Description: firstGroup(rssDescRe, raw),
			PubDate:     firstGroup(rssPubDateRe, raw),
			SourceName:  firstGroup(rssSourceRe, raw),
		})
	}
	return out
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	for _, g := range m[1:] {
		if strings.TrimSpace(g) != "" {
			return strings.TrimSpace(g)
		}
	}
	return ""
}

func parsePubDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

var (
	indeedCompanyPrefixRe = regexp.MustCompile(`(?m)^([A-Za-z0-9&.,' -]{2,60})\s+-\s`)
	indeedCompanyAtRe     = regexp.MustCompile(`\bat\s+([A-Za-z0-9&.,' -]{2,60})`)
)

func mapIndeedItem(it rssItem) (job.Posting, bool) {
	title := strings.TrimSpace(it.Title)
	if title == "" || strings.TrimSpace(it.Link) == "" {
		return job.Posting{}, false
	}
	company := strings.TrimSpace(it.SourceName)
	if company == "" {
		if m := indeedCompanyPrefixRe.FindStringSubmatch(it.Description); m != nil {
			company = strings.TrimSpace(m[1])
		} else if m := indeedCompanyAtRe.FindStringSubmatch(it.Description); m != nil {
			company = strings.TrimSpace(m[1])
		}
	}
	if company == "" {
		return job.Posting{}, false
	}
	location := ""
	// titles often carry "Title - Location"
	if idx := strings.LastIndex(title, " - "); idx > 0 {
		tail := strings.TrimSpace(title[idx+3:])
		if isCanadianLocation(tail) {
			location = tail
			title = strings.TrimSpace(title[:idx])
		}
	}
	return job.Posting{
		Source:      job.SourceIndeed,
		Title:       title,
		Company:     company,
		Location:    location,
		Description: it.Description,
		URL:         it.Link,
		PostedAt:    parsePubDate(it.PubDate),
	}, true
}

// Rigzone feed titles read "Title - Company - Location".
func mapRigzoneItem(it rssItem) (job.Posting, bool) {
	parts := strings.Split(it.Title, " - ")
	if len(parts) < 2 {
		return job.Posting{}, false
	}
	title := strings.TrimSpace(parts[0])
	company := strings.TrimSpace(parts[1])
	location := ""
	if len(parts) > 2 {
		location = strings.TrimSpace(strings.Join(parts[2:], " - "))
	}
	if title == "" || company == "" {
		return job.Posting{}, false
	}
	return job.Posting{
		Source:      job.SourceRigzone,
		Title:       title,
		Company:     company,
		Location:    location,
		Sector:      job.SectorOilGas,
		Description: it.Description,
		URL:         it.Link,
		PostedAt:    parsePubDate(it.PubDate),
	}, true
}

var (
	infomineCompanyRe  = regexp.MustCompile(`(?i)Company:\s*([^<\n]+)`)
	infomineLocationRe = regexp.MustCompile(`(?i)Location:\s*([^<\n]+)`)
)

func mapInfomineItem(it rssItem) (job.Posting, bool) {
	title := strings.TrimSpace(it.Title)
	if title == "" {
		return job.Posting{}, false
	}
	company := ""
	if m := infomineCompanyRe.FindStringSubmatch(it.Description); m != nil {
		company = strings.TrimSpace(m[1])
	}
	if company == "" {
		return job.Posting{}, false
	}
	location := ""
	if m := infomineLocationRe.FindStringSubmatch(it.Description); m != nil {
		location = strings.TrimSpace(m[1])
	}
	return job.Posting{
		Source:      job.SourceInfomine,
		Title:       title,
		Company:     company,
		Location:    location,
		Sector:      job.SectorMining,
		Description: it.Description,
		URL:         it.Link,
		PostedAt:    parsePubDate(it.PubDate),
	}, true
}
