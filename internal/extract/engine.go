package extract

import (
	"bytes"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// At most this many postings are taken from a single listing page.
const MaxPerPage = 10

// Candidate is a raw posting pulled out of a listing page, before
// normalization.
type Candidate struct {
	Title    string
	Location string
	URL      string
}

// Field is an ordered selector fallback for one posting attribute. The first
// selector yielding a non-empty value wins. Attr reads an attribute instead
// of element text.
type Field struct {
	Selectors []string
	Attr      string
}

// SelectorGroup describes one known listing layout: a card selector plus
// per-field fallbacks evaluated inside each card.
type SelectorGroup struct {
	Name     string
	Card     string
	Title    Field
	Location Field
	Link     Field
}

// Strategy pairs a predicate deciding whether a layout applies to a document
// with the extractor for that layout.
type Strategy struct {
	Name    string
	Match   func(doc *goquery.Document) bool
	Extract func(doc *goquery.Document, base *url.URL) []Candidate
}

// Strategy compiles the group into a predicate/extractor pair. The predicate
// requires at least one card on the page.
func (g SelectorGroup) Strategy() Strategy {
	return Strategy{
		Name: g.Name,
		Match: func(doc *goquery.Document) bool {
			return doc.Find(g.Card).Length() > 0
		},
		Extract: func(doc *goquery.Document, base *url.URL) []Candidate {
			out := make([]Candidate, 0, MaxPerPage)
			doc.Find(g.Card).EachWithBreak(func(_ int, card *goquery.Selection) bool {
				c := Candidate{
					Title:    g.Title.resolve(card),
					Location: g.Location.resolve(card),
					URL:      resolveLink(base, g.Link.resolveAttr(card)),
				}
				if strings.TrimSpace(c.Title) == "" {
					return true
				}
				out = append(out, c)
				return len(out) < MaxPerPage
			})
			return out
		},
	}
}

func (f Field) resolve(card *goquery.Selection) string {
	for _, sel := range f.Selectors {
		var v string
		if f.Attr != "" {
			v, _ = card.Find(sel).First().Attr(f.Attr)
		} else {
			v = card.Find(sel).First().Text()
		}
		v = strings.TrimSpace(v)
		if v != "" {
			return v
		}
	}
	return ""
}

// resolveAttr reads href-like fields: the card itself may be the anchor.
func (f Field) resolveAttr(card *goquery.Selection) string {
	attr := f.Attr
	if attr == "" {
		attr = "href"
	}
	if v, ok := card.Attr(attr); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	for _, sel := range f.Selectors {
		if v, ok := card.Find(sel).First().Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if v, ok := card.Find("a[href]").First().Attr("href"); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

var anchorKeywords = []string{"job", "career", "position", "opportunity", "opening", "vacancy"}

// AnchorHeuristic is the last-resort strategy: collect anchors whose text
// looks like a job link.
func AnchorHeuristic() Strategy {
	return Strategy{
		Name:  "anchor-heuristic",
		Match: func(doc *goquery.Document) bool { return true },
		Extract: func(doc *goquery.Document, base *url.URL) []Candidate {
			out := make([]Candidate, 0, MaxPerPage)
			seen := map[string]struct{}{}
			doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
				text := strings.TrimSpace(a.Text())
				if len(text) < 3 || len(text) > 120 {
					return true
				}
				lower := strings.ToLower(text)
				keyworded := false
				for _, kw := range anchorKeywords {
					if strings.Contains(lower, kw) {
						keyworded = true
						break
					}
				}
				if !keyworded {
					return true
				}
				href, _ := a.Attr("href")
				link := resolveLink(base, href)
				if link == "" {
					return true
				}
				if _, ok := seen[link]; ok {
					return true
				}
				seen[link] = struct{}{}
				out = append(out, Candidate{Title: text, URL: link})
				return len(out) < MaxPerPage
			})
			return out
		},
	}
}

type Engine struct {
	strategies []Strategy
	fallback   Strategy
	logger     *log.Logger
}

// NewEngine compiles the groups in priority order. The anchor heuristic is
// held aside as the fallback for pages no group recognizes.
func NewEngine(groups []SelectorGroup, logger *log.Logger) *Engine {
	strategies := make([]Strategy, 0, len(groups))
	for _, g := range groups {
		strategies = append(strategies, g.Strategy())
	}
	return &Engine{strategies: strategies, fallback: AnchorHeuristic(), logger: logger}
}

// Extract parses the page and runs the first strategy whose predicate
// matches. A matching strategy is authoritative even when it yields nothing;
// later groups and the anchor heuristic only run when no predicate fired.
// An empty result is not an error.
func (e *Engine) Extract(html []byte, pageURL string) ([]Candidate, string, error) {
	if e == nil {
		return nil, "", fmt.Errorf("nil engine")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, "", err
	}
	base, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		base = nil
	}

	for _, s := range e.strategies {
		if s.Match == nil || !s.Match(doc) {
			continue
		}
		got := s.Extract(doc, base)
		if e.logger != nil {
			e.logger.Printf("[Extract] strategy=%s url=%s candidates=%d", s.Name, pageURL, len(got))
		}
		return got, s.Name, nil
	}

	if got := e.fallback.Extract(doc, base); len(got) > 0 {
		if e.logger != nil {
			e.logger.Printf("[Extract] strategy=%s url=%s candidates=%d", e.fallback.Name, pageURL, len(got))
		}
		return got, e.fallback.Name, nil
	}
	return nil, "", nil
}

func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(strings.ToLower(href), "javascript:") ||
		strings.HasPrefix(strings.ToLower(href), "mailto:") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if u.IsAbs() {
		return u.String()
	}
	if base == nil {
		return ""
	}
	return base.ResolveReference(u).String()
}

// Hosted ATS board layouts, in detection priority order.
func DefaultGroups() []SelectorGroup {
	return []SelectorGroup{
		{
			Name:     "workday-embed",
			Card:     `[data-automation-id="jobPostingItem"]`,
			Title:    Field{Selectors: []string{`[data-automation-id="jobPostingTitle"]`, "a", "h3"}},
			Location: Field{Selectors: []string{`[data-automation-id="locations"]`, ".location"}},
			Link:     Field{Selectors: []string{`a[data-automation-id="jobTitle"]`, "a"}},
		},
		{
			Name:     "lever-hosted",
			Card:     ".posting",
			Title:    Field{Selectors: []string{".posting-title h5", ".posting-title", "h5"}},
			Location: Field{Selectors: []string{".posting-categories .location", ".sort-by-location", ".location"}},
			Link:     Field{Selectors: []string{"a.posting-title", "a"}},
		},
		{
			Name:     "greenhouse-hosted",
			Card:     ".opening",
			Title:    Field{Selectors: []string{"a"}},
			Location: Field{Selectors: []string{".location"}},
			Link:     Field{Selectors: []string{"a"}},
		},
	}
}
