package app

import (
	"fmt"
	"log"
	"strings"

	"resource-jobs/internal/delivery/http/handler"
	"resource-jobs/internal/delivery/http/middleware"
	"resource-jobs/internal/delivery/http/routes"

	"github.com/gofiber/fiber/v3"
)

type App struct {
	Fiber *fiber.App
}

func New(c *Container) *App {
	f := fiber.New(fiber.Config{})

	registerGlobalMiddleware(f, c)
	registerRoutes(f, c)

	return &App{Fiber: f}
}

func Bootstrap(c *Container) (*App, func() error, error) {
	app := New(c)
	return app, func() error { return nil }, nil
}

func registerGlobalMiddleware(app *fiber.App, c *Container) {
	if app == nil {
		return
	}

	app.Use(middleware.NewErrorMiddleware().Middleware())

	var logger *log.Logger
	if c != nil {
		logger = c.Logger
	}
	app.Use(middleware.AccessLog(logger))
}

func registerRoutes(app *fiber.App, c *Container) {
	if app == nil || c == nil {
		return
	}

	registry := routes.NewRegistry(
		handler.NewHealthHandler(c.DB),
		handler.NewJobsHandler(c.Jobs),
		handler.NewScraperHandler(
			c.Runner, c.Jobs, c.Runs, c.Cache,
			c.Config.Scrape.RetentionDays, c.Config.Scrape.RecentRuns,
		),
	)
	registry.Register(app)
}

func ListenAddr(port string) (string, error) {
	p := strings.TrimSpace(port)
	if p == "" {
		return "", fmt.Errorf("empty HTTP port")
	}
	if strings.HasPrefix(p, ":") {
		return p, nil
	}
	return ":" + p, nil
}
