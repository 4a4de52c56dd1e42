// Package main provides the Canvasflow API server implementation.
package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/vividlab/canvasflow/pkg/cmd"
	"github.com/vividlab/canvasflow/pkg/log"
	"github.com/vividlab/canvasflow/pkg/otelhelper"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "canvasflow-api",
		Usage:                 "Serve the canvas editing and generation API",
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
				Name:    "database-url",
				Usage:   "Workflow store URL (file:// or redis://)",
				Value:   "file://./data/workflows",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "library-path",
				Usage:   "Directory the content library persists results into",
				Value:   "./data/library",
				Sources: cli.EnvVars("LIBRARY_PATH"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus backend (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "gemini-api-key",
				Usage:   "API key for Gemini image and Veo video generation",
				Sources: cli.EnvVars("GEMINI_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "kling-access-key",
				Usage:   "Access key for Kling generation",
				Sources: cli.EnvVars("KLING_ACCESS_KEY"),
			},
			&cli.StringFlag{
				Name:    "kling-secret-key",
				Usage:   "Secret key for Kling generation",
				Sources: cli.EnvVars("KLING_SECRET_KEY"),
			},
			&cli.StringFlag{
				Name:    "hailuo-api-key",
				Usage:   "API key for Hailuo video generation",
				Sources: cli.EnvVars("HAILUO_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "openai-api-key",
				Usage:   "API key for OpenAI image generation",
				Sources: cli.EnvVars("OPENAI_API_KEY"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Canvasflow API")

			persistence := cmd.NewPersistence(command.String("database-url"))

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			tracer, err := otelhelper.NewTracer(ctx, "canvasflow-api")
			if err != nil {
				logger.WarnContext(ctx, "Tracing disabled", "error", err)
			}

			api, err := NewAPI(
				logger,
				persistence,
				eventBus,
				tracer,
				Credentials{
					GeminiAPIKey:   command.String("gemini-api-key"),
					KlingAccessKey: command.String("kling-access-key"),
					KlingSecretKey: command.String("kling-secret-key"),
					HailuoAPIKey:   command.String("hailuo-api-key"),
					OpenAIAPIKey:   command.String("openai-api-key"),
				},
				command.String("library-path"),
			)
			if err != nil {
				return err
			}

			if err := api.Start(ctx, command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "API server stopped", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
