// Package main provides the Chatloom API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/chatloom/chatloom/pkg/execution"
	"github.com/chatloom/chatloom/pkg/persistence"
	"github.com/chatloom/chatloom/pkg/web"
)

type API struct {
	logger      *slog.Logger
	executor    *execution.Executor
	persistence persistence.Persistence
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	executor *execution.Executor,
	persist persistence.Persistence,
) *API {
	return &API{
		logger:      logger,
		executor:    executor,
		persistence: persist,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.executor, a.persistence, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Chatloom API")
	})

	e := app.Group("/executions")
	e.Post("/", handlers.Execute)
	e.Post("/stream", handlers.ExecuteStream)
	e.Get("/:id", handlers.GetExecution)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
