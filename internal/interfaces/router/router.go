package router

import (
	"context"
	"fmt"
	"net/http"

	capsvc "propshare-backend/internal/application/capabilities"
	"propshare-backend/internal/application/engine"
	"propshare-backend/internal/application/limits"
	"propshare-backend/internal/application/notifications"
	propsvc "propshare-backend/internal/application/properties"
	"propshare-backend/internal/config"
	"propshare-backend/internal/constants"
	"propshare-backend/internal/infrastructure/database"
	"propshare-backend/internal/infrastructure/metrics"
	redisclient "propshare-backend/internal/infrastructure/redis"
	caphandler "propshare-backend/internal/interfaces/handlers/capabilities"
	exithandler "propshare-backend/internal/interfaces/handlers/exits"
	healthhandler "propshare-backend/internal/interfaces/handlers/health"
	payhandler "propshare-backend/internal/interfaces/handlers/payments"
	portfoliohandler "propshare-backend/internal/interfaces/handlers/portfolio"
	prophandler "propshare-backend/internal/interfaces/handlers/properties"
	"propshare-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// CreateApp opens the database and Redis, migrates, seeds the capability
// registry and mounts every route.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil, nil, fmt.Errorf("DATABASE_URL is not set for env %q", cfg.Env)
	}
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, nil, nil, fmt.Errorf("migrate: %w", err)
	}

	ctx := context.Background()
	rdb, err := redisclient.New(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app, err := New(cfg, db, rdb, reg)
	if err != nil {
		return nil, nil, nil, err
	}
	return app, db, rdb, nil
}

// New mounts the routes on an already-migrated database. rdb may be nil.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, reg *prometheus.Registry) (*fiber.App, error) {
	gate := &capsvc.Service{
		DB:           db,
		Rdb:          rdb,
		CacheTTL:     cfg.CapabilityCacheTTL,
		OverrideRole: cfg.SuperadminRole,
	}
	if err := gate.EnsureRegistry(context.Background(), constants.DefaultCapabilities); err != nil {
		return nil, fmt.Errorf("seed capabilities: %w", err)
	}

	eng := engine.New(
		db,
		gate,
		limits.NewPolicy(cfg.Limits),
		notifications.New(cfg.SendinblueAPIKey, cfg.MailFrom),
		metrics.New(reg),
		engine.OptionsFromConfig(cfg.Tx),
	)

	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix:  cfg.FrontendURLEndsWith,
		DevPassword:    cfg.DevPassword,
		AllowLocalhost: cfg.Env != "production",
	}))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	// Mounted before the session and health middleware: the provider has no
	// session and its retries should not count as user traffic.
	webhook := &payhandler.WebhookHandler{Engine: eng, WebhookSecret: cfg.PaymentWebhookSecret}
	app.Post("/api/v1/payments/webhook", webhook.HandleWebhook)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	app.Use(middleware.Session(rdb))
	app.Use(middleware.HealthMarker(rdb))

	hh := &healthhandler.Handlers{Rdb: rdb, DB: db, HealthAdminKey: cfg.HealthAdminKey}
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)
	app.Get("/health/reset", hh.Reset)

	api := app.Group("/api/v1")

	ph := &prophandler.Handlers{Service: &propsvc.Service{DB: db}, Engine: eng}
	api.Get("/properties", ph.List)
	api.Get("/properties/:id", ph.Get)

	admin := api.Group("/admin", middleware.RequireAuth(), middleware.RequireRole(constants.Admin, constants.Superadmin))
	admin.Post("/properties", ph.Create)
	admin.Post("/properties/:id/publish", ph.Publish)
	admin.Post("/properties/:id/distributions", ph.Distribute)

	ch := &caphandler.Handlers{Service: gate}
	api.Get("/me/capabilities", middleware.RequireAuth(), ch.Mine)
	admin.Get("/users/:id/capabilities", ch.List)
	admin.Post("/users/:id/capabilities", ch.Grant)
	admin.Delete("/users/:id/capabilities/:name", ch.Revoke)

	pf := &portfoliohandler.Handlers{DB: db, Engine: eng}
	api.Get("/ownerships", middleware.RequireAuth(), pf.Ownerships)
	api.Get("/transactions", middleware.RequireAuth(), pf.Transactions)
	api.Get("/limits", middleware.RequireAuth(), pf.Limits)

	eh := &exithandler.Handlers{Engine: eng}
	eg := api.Group("/exits", middleware.RequireAuth())
	eg.Post("/", middleware.RequireCapability(gate, constants.WithdrawFunds), eh.Create)
	eg.Post("/:id/cancel", eh.Cancel)
	eg.Post("/:id/decision", middleware.RequireCapability(gate, constants.ReviewExits), eh.Decide)

	return app, nil
}

func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
