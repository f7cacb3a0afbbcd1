package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/guildflow/guildflow/pkg/cmd"
	"github.com/guildflow/guildflow/pkg/genai"
	"github.com/guildflow/guildflow/pkg/log"
	"github.com/guildflow/guildflow/pkg/tools"
	"github.com/guildflow/guildflow/pkg/tools/websearch"
	"github.com/guildflow/guildflow/pkg/users"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "guildflow-api",
		Usage:                 "Receive GitHub webhooks and manage workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:     "github-webhook-secret",
				Usage:    "Shared secret for GitHub webhook signatures",
				Required: true,
				Sources:  cli.EnvVars("GITHUB_WEBHOOK_SECRET"),
			},
			&cli.StringFlag{
				Name:     "jwt-secret",
				Usage:    "HS256 secret for API tokens",
				Required: true,
				Sources:  cli.EnvVars("JWT_SECRET"),
			},
			&cli.StringFlag{
				Name:     "openai-api-key",
				Usage:    "Service API key for the generation backend",
				Required: true,
				Sources:  cli.EnvVars("OPENAI_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "openai-base-url",
				Usage:   "Base URL of an OpenAI-compatible gateway",
				Sources: cli.EnvVars("OPENAI_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "openai-model",
				Usage:   "Model used for generation",
				Value:   "gpt-4o",
				Sources: cli.EnvVars("OPENAI_MODEL"),
			},
			&cli.StringFlag{
				Name:     "redis-url",
				Usage:    "Redis connection URL for user data",
				Required: true,
				Sources:  cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "serper-api-key",
				Usage:   "API key enabling the web_search tool",
				Sources: cli.EnvVars("SERPER_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing GuildFlow API")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "guildflow-api", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			userStore, err := users.NewStore(command.String("redis-url"), logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := userStore.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close user store", "error", err)
				}
			}()

			client := genai.NewOpenAIClient(genai.Config{
				APIKey:  command.String("openai-api-key"),
				BaseURL: command.String("openai-base-url"),
				Model:   command.String("openai-model"),
			}, logger)

			registry := tools.NewRegistry(logger)
			if serperKey := command.String("serper-api-key"); serperKey != "" {
				registry.Register(websearch.NewTool(websearch.Config{APIKey: serperKey}, logger))
			}

			api := NewAPI(
				logger,
				persistence,
				eventBus,
				client,
				registry,
				tools.NewInvoker(registry, logger),
				userStore,
				command.String("github-webhook-secret"),
				command.String("jwt-secret"),
			)

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
