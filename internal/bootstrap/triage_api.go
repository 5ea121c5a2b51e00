package bootstrap

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"

	httpin "triage_server/adapter/in/http"
	"triage_server/config"
	"triage_server/infra/middleware"
)

// NewAPI builds the HTTP process: ingestion endpoints, queue management,
// knowledge upload, and health checks.
func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	log := NewLogger("triage-api", cfg.IsDevelopment())

	deps, cleanup, err := NewDependencies(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize dependencies")
		return nil, nil, err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(log),
		DisableStartupMessage: cfg.IsProduction(),

		ReadBufferSize:  16384,
		WriteBufferSize: 16384,

		// go-json for faster JSON serialization
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit: 10 * 1024 * 1024,
	})

	app.Use(middleware.Recover(log))
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.RequestLogger(log))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Request-ID",
	}))

	// Handlers
	httpin.NewHealthHandler(deps.DB, deps.Redis).Register(app)
	httpin.NewIngestHandler(deps.Producer, deps.Redis, log).Register(app)
	httpin.NewQueueHandler(deps.ApprovalRepo, deps.EscalationRepo, deps.Producer, log).Register(app)
	httpin.NewKnowledgeHandler(deps.Producer, log).Register(app)

	return app, cleanup, nil
}
