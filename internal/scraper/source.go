package scraper

import (
	"context"
	"strings"

	"resource-jobs/internal/domain/job"
)

// Source is one posting provider. Scrape returns raw postings; the
// orchestrator normalizes and stores them.
type Source interface {
	Tag() string
	Scrape(ctx context.Context) ([]job.Posting, error)
}

// Registry maps source tags to adapters, preserving registration order for
// "all" runs.
type Registry struct {
	order []string
	byTag map[string]Source
}

func NewRegistry(sources ...Source) *Registry {
	r := &Registry{byTag: map[string]Source{}}
	for _, s := range sources {
		if s == nil {
			continue
		}
		tag := strings.TrimSpace(s.Tag())
		if tag == "" {
			continue
		}
		if _, ok := r.byTag[tag]; ok {
			continue
		}
		r.byTag[tag] = s
		r.order = append(r.order, tag)
	}
	return r
}

func (r *Registry) Lookup(tag string) (Source, bool) {
	if r == nil {
		return nil, false
	}
	s, ok := r.byTag[strings.TrimSpace(tag)]
	return s, ok
}

func (r *Registry) Tags() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
