package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/guildflow/guildflow/pkg/cmd"
	"github.com/guildflow/guildflow/pkg/conversation"
	"github.com/guildflow/guildflow/pkg/discord"
	"github.com/guildflow/guildflow/pkg/genai"
	"github.com/guildflow/guildflow/pkg/log"
	"github.com/guildflow/guildflow/pkg/otelhelper"
	"github.com/guildflow/guildflow/pkg/tools"
	"github.com/guildflow/guildflow/pkg/tools/websearch"
	"github.com/guildflow/guildflow/pkg/workflow"
)

func main() {
	command := &cli.Command{
		Name:                  "guildflow-worker",
		EnableShellCompletion: true,
		Usage:                 "Execute workflows triggered by GitHub pushes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
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
				Name:     "discord-bot-token",
				Usage:    "Bot token used to post channel messages",
				Required: true,
				Sources:  cli.EnvVars("DISCORD_BOT_TOKEN"),
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

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("guildflow-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing GuildFlow Worker")

			eventBus := cmd.NewEventBus(command.String("event-bus"), "guildflow-worker", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
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

			poster := discord.NewClient(discord.Config{
				BotToken: command.String("discord-bot-token"),
			}, logger)

			tracer, err := otelhelper.NewTracer(ctx, "guildflow-worker")
			if err != nil {
				return err
			}

			executor := workflow.NewExecutor(
				workflow.NewMatcher(persistence, logger),
				client,
				registry,
				tools.NewInvoker(registry, logger),
				poster,
				eventBus,
				logger,
			).WithNotifierFactory(func(channelID string) conversation.Notifier {
				return poster.Notifier(channelID)
			}).WithTracer(tracer)

			worker := NewWorkerManager(
				workerID,
				executor,
				eventBus,
				logger,
			)

			if err := worker.Start(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to start event-driven worker", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
