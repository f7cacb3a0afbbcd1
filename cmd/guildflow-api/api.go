// Package main provides the GuildFlow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/guildflow/guildflow/pkg/eventbus"
	"github.com/guildflow/guildflow/pkg/genai"
	"github.com/guildflow/guildflow/pkg/persistence"
	"github.com/guildflow/guildflow/pkg/tools"
	"github.com/guildflow/guildflow/pkg/web"
	"github.com/guildflow/guildflow/pkg/workflow"
)

type API struct {
	logger        *slog.Logger
	persistence   persistence.Persistence
	eventBus      eventbus.EventBus
	client        genai.KeyedClient
	registry      *tools.Registry
	invoker       *tools.Invoker
	users         web.UserStore
	webhookSecret string
	jwtSecret     string
	validate      *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	client genai.KeyedClient,
	registry *tools.Registry,
	invoker *tools.Invoker,
	users web.UserStore,
	webhookSecret string,
	jwtSecret string,
) *API {
	return &API{
		logger:        logger,
		persistence:   persistence,
		eventBus:      eventBus,
		client:        client,
		registry:      registry,
		invoker:       invoker,
		users:         users,
		webhookSecret: webhookSecret,
		jwtSecret:     jwtSecret,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	repository := workflow.NewRepository(a.persistence)

	handlers := web.NewAPIHandlers(
		repository,
		a.validate,
		a.eventBus,
		a.webhookSecret,
		a.client,
		a.registry,
		a.invoker,
		a.users,
		a.logger,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("GuildFlow API")
	})

	app.Post("/webhooks/github", handlers.GitHubWebhook)

	v1 := app.Group("/v1", web.NewAuthMiddleware(a.jwtSecret))

	w := v1.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Post("/:id/enable", handlers.EnableWorkflow)
	w.Post("/:id/disable", handlers.DisableWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)

	v1.Post("/chat", handlers.Chat)
	v1.Put("/users/me/api-key", handlers.SetAPIKey)
	v1.Get("/users/me/usage", handlers.GetUsage)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
