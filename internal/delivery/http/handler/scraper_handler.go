package handler

import (
	"errors"

	"resource-jobs/internal/delivery/http/dto"
	"resource-jobs/internal/delivery/http/middleware"
	"resource-jobs/internal/infrastructure/cache"
	"resource-jobs/internal/pkg/response"
	"resource-jobs/internal/repository"
	"resource-jobs/internal/usecase/ingest"

	"github.com/gofiber/fiber/v3"
)

type ScraperHandler struct {
	runner        *ingest.Runner
	jobs          repository.JobStore
	runs          repository.RunStore
	cache         *cache.Redis
	retentionDays int
	recentRuns    int
}

func NewScraperHandler(
	runner *ingest.Runner,
	jobs repository.JobStore,
	runs repository.RunStore,
	rc *cache.Redis,
	retentionDays int,
	recentRuns int,
) *ScraperHandler {
	if recentRuns <= 0 {
		recentRuns = 20
	}
	return &ScraperHandler{
		runner:        runner,
		jobs:          jobs,
		runs:          runs,
		cache:         rc,
		retentionDays: retentionDays,
		recentRuns:    recentRuns,
	}
}

func (h *ScraperHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	g := r.Group("/scraper")
	g.Post("/run", h.HandleRun)
	g.Get("/status", h.HandleStatus)
}

type runRequest struct {
	Source      string `json:"source"`
	ClearSource string `json:"clear_source"`
}

// HandleRun triggers a scrape synchronously and returns the run summary.
// Only an unknown source tag is a client error; per-source failures are
// reported inside the summary with a 200.
func (h *ScraperHandler) HandleRun(c fiber.Ctx) error {
	var req runRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().Body(&req); err != nil {
			return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
		}
	}

	summary, err := h.runner.Run(c.Context(), req.Source, req.ClearSource)
	if err != nil {
		if errors.Is(err, ingest.ErrUnknownSource) {
			return middleware.NewAppError(fiber.StatusBadRequest, err.Error(), nil, err)
		}
		return middleware.NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, err)
	}
	return response.Success(c, fiber.StatusOK, "success", summary)
}

func (h *ScraperHandler) HandleStatus(c fiber.Ctx) error {
	ctx := c.Context()

	if h.cache != nil {
		var cached dto.ScrapeStatusResponse
		if ok, err := h.cache.GetJSON(ctx, cache.KeyStatusSnapshot, &cached); err == nil && ok {
			return response.Success(c, fiber.StatusOK, "success", cached)
		}
	}

	counts, err := h.jobs.CountBySource(ctx)
	if err != nil {
		return middleware.NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, err)
	}
	recent, err := h.runs.Recent(ctx, h.recentRuns)
	if err != nil {
		return middleware.NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, err)
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	out := dto.ScrapeStatusResponse{
		ActiveBySource: counts,
		TotalActive:    total,
		RecentRuns:     recent,
		RetentionDays:  h.retentionDays,
	}

	if h.cache != nil {
		_ = h.cache.SetJSON(ctx, cache.KeyStatusSnapshot, out, cache.DefaultTTLFromEnv())
	}
	return response.Success(c, fiber.StatusOK, "success", out)
}
