package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/static"
	"go.opentelemetry.io/otel/trace"

	"github.com/vividlab/canvasflow/pkg/dispatcher"
	"github.com/vividlab/canvasflow/pkg/eventbus"
	"github.com/vividlab/canvasflow/pkg/frames"
	"github.com/vividlab/canvasflow/pkg/graph"
	"github.com/vividlab/canvasflow/pkg/library"
	"github.com/vividlab/canvasflow/pkg/persistence"
	"github.com/vividlab/canvasflow/pkg/providers"
	"github.com/vividlab/canvasflow/pkg/providers/gemini"
	"github.com/vividlab/canvasflow/pkg/providers/hailuo"
	"github.com/vividlab/canvasflow/pkg/providers/kling"
	"github.com/vividlab/canvasflow/pkg/providers/openai"
	"github.com/vividlab/canvasflow/pkg/recovery"
	"github.com/vividlab/canvasflow/pkg/services"
	"github.com/vividlab/canvasflow/pkg/session"
	"github.com/vividlab/canvasflow/pkg/web"
)

// Credentials carries the per-provider API keys. An adapter is only
// registered when its credentials are present; generation requests routed
// to an unconfigured provider fail with a configuration message.
type Credentials struct {
	GeminiAPIKey   string
	KlingAccessKey string
	KlingSecretKey string
	HailuoAPIKey   string
	OpenAIAPIKey   string
}

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	library     *library.Library
	session     *session.Session
	handlers    *web.APIHandlers
}

func NewAPI(
	logger *slog.Logger,
	p persistence.Persistence,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
	credentials Credentials,
	libraryPath string,
) (*API, error) {
	lib, err := library.New(libraryPath, logger)
	if err != nil {
		return nil, err
	}

	g := graph.New()

	adapters := buildAdapters(credentials, logger)
	disp := dispatcher.New(g, lib, adapters, eventBus, tracer, logger)

	poller := recovery.NewPoller(g, lib, recovery.DefaultInterval, logger)
	extractor := frames.NewExtractor(g, lib, &frames.FFmpegRunner{}, logger)

	workflowService := services.NewWorkflow(p, eventBus)
	sess := session.New(g, workflowService, poller, extractor, logger)

	validate := validator.New(validator.WithRequiredStructEnabled())
	handlers := web.NewAPIHandlers(sess, disp, workflowService, lib, p, validate)

	return &API{
		logger:      logger,
		persistence: p,
		library:     lib,
		session:     sess,
		handlers:    handlers,
	}, nil
}

func buildAdapters(credentials Credentials, logger *slog.Logger) map[providers.Provider]providers.Adapter {
	adapters := make(map[providers.Provider]providers.Adapter)

	if credentials.GeminiAPIKey != "" {
		adapters[providers.ProviderGemini] = gemini.NewAdapter(credentials.GeminiAPIKey, logger)
	}

	if credentials.KlingAccessKey != "" && credentials.KlingSecretKey != "" {
		adapters[providers.ProviderKling] = kling.NewAdapter(credentials.KlingAccessKey, credentials.KlingSecretKey, logger)
	}

	if credentials.HailuoAPIKey != "" {
		adapters[providers.ProviderHailuo] = hailuo.NewAdapter(credentials.HailuoAPIKey, logger)
	}

	if credentials.OpenAIAPIKey != "" {
		adapters[providers.ProviderOpenAI] = openai.NewAdapter(credentials.OpenAIAPIKey, logger)
	}

	return adapters
}

func (a *API) App() *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Canvasflow API")
	})

	app.Post("/generate", a.handlers.Generate)
	app.Get("/generation-status/:nodeId", a.handlers.GenerationStatus)
	app.Get("/models", a.handlers.GetModels)

	s := app.Group("/session")
	s.Get("/", a.handlers.GetSession)
	s.Post("/new", a.handlers.NewCanvas)
	s.Post("/open/:id", a.handlers.OpenWorkflow)
	s.Post("/save", a.handlers.SaveCanvas)

	n := app.Group("/nodes")
	n.Post("/", a.handlers.CreateNode)
	n.Patch("/:id", a.handlers.UpdateNode)
	n.Delete("/:id", a.handlers.DeleteNode)
	n.Post("/connect", a.handlers.ConnectNodes)
	n.Post("/insert-before", a.handlers.InsertNodeBefore)

	w := app.Group("/workflows")
	w.Get("/", a.handlers.GetWorkflows)
	w.Get("/:id", a.handlers.GetWorkflow)
	w.Delete("/:id", a.handlers.DeleteWorkflow)
	w.Post("/import", a.handlers.ImportWorkflow)

	app.Get("/library/:kind", a.handlers.GetLibraryAssets)
	app.Use("/library/assets", static.New(a.library.Root()))

	app.Get("/health", a.handlers.HealthCheck)

	return app
}

// Start launches the session's background loops and serves HTTP until the
// listener fails or the process exits.
func (a *API) Start(ctx context.Context, port int) error {
	if err := a.session.Start(ctx); err != nil {
		return err
	}

	return a.App().Listen(":" + strconv.Itoa(port))
}
