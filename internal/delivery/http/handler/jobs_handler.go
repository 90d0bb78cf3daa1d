package handler

import (
	"strconv"
	"time"

	"resource-jobs/internal/delivery/http/dto"
	"resource-jobs/internal/delivery/http/middleware"
	"resource-jobs/internal/pkg/response"
	"resource-jobs/internal/repository"

	"github.com/gofiber/fiber/v3"
)

const maxListLimit = 100

type JobsHandler struct {
	jobs repository.JobStore
}

func NewJobsHandler(jobs repository.JobStore) *JobsHandler {
	return &JobsHandler{jobs: jobs}
}

func (h *JobsHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Get("/jobs", h.HandleListJobs)
}

func (h *JobsHandler) HandleListJobs(c fiber.Ctx) error {
	limit, err := parseQueryIntStrict(c, "limit", 20)
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}
	offset, err := parseQueryIntStrict(c, "offset", 0)
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}
	if limit <= 0 || limit > maxListLimit {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	items, err := h.jobs.QueryActive(c.Context(), repository.ActiveFilter{
		Source:   c.Query("source"),
		Province: c.Query("province"),
		Sector:   c.Query("sector"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return middleware.NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, err)
	}

	out := make([]dto.JobListResponse, 0, len(items))
	for _, it := range items {
		posted := ""
		if it.PostedAt != nil && !it.PostedAt.IsZero() {
			posted = it.PostedAt.UTC().Format(time.RFC3339)
		}
		out = append(out, dto.JobListResponse{
			JobID:        it.ID,
			Source:       it.Source,
			Title:        it.Title,
			Company:      it.Company,
			Location:     it.Location,
			City:         it.City,
			Province:     it.Province,
			Sector:       it.Sector,
			JobType:      it.JobType,
			SalaryMin:    it.SalaryMin,
			SalaryMax:    it.SalaryMax,
			Description:  it.Description,
			Requirements: it.Requirements,
			URL:          it.URL,
			Remote:       it.Remote,
			Rotational:   it.Rotational,
			PostedDate:   posted,
			ScrapedDate:  it.ScrapedAt.UTC().Format(time.RFC3339),
		})
	}

	return response.Success(c, fiber.StatusOK, "success", out)
}

func parseQueryIntStrict(c fiber.Ctx, key string, defaultVal int) (int, error) {
	s := c.Query(key)
	if s == "" {
		return defaultVal, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	return v, nil
}
