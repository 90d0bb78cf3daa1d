package routes

import (
	"resource-jobs/internal/delivery/http/handler"

	"github.com/gofiber/fiber/v3"
)

type Registry struct {
	health  *handler.HealthHandler
	jobs    *handler.JobsHandler
	scraper *handler.ScraperHandler
}

func NewRegistry(health *handler.HealthHandler, jobs *handler.JobsHandler, scraper *handler.ScraperHandler) *Registry {
	return &Registry{health: health, jobs: jobs, scraper: scraper}
}

func (r *Registry) Register(app *fiber.App) {
	if app == nil {
		return
	}

	if r.health != nil {
		r.health.RegisterRoutes(app)
	}

	v1 := app.Group("/api").Group("/v1")
	if r.jobs != nil {
		r.jobs.RegisterRoutes(v1)
	}
	if r.scraper != nil {
		r.scraper.RegisterRoutes(v1)
	}
}
