package routes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/numvault/numvault/internal/admin"
	"github.com/numvault/numvault/internal/config"
	"github.com/numvault/numvault/internal/delivery"
	"github.com/numvault/numvault/internal/ledger"
	"github.com/numvault/numvault/internal/middleware"
	"github.com/numvault/numvault/internal/notification"
	"github.com/numvault/numvault/internal/pool"
	"github.com/numvault/numvault/internal/ratelimit"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	var store ledger.Store
	if d.DB != nil {
		pg := ledger.NewPostgresStore(d.DB, d.Logger)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		store = pg
	} else {
		store = ledger.NewMemory()
	}

	var limiter ratelimit.Limiter
	if d.Cache != nil {
		limiter = ratelimit.NewRedisLimiter(d.Cache, delivery.CodeCooldown)
	} else {
		limiter = ratelimit.NewMemoryLimiter(delivery.CodeCooldown)
	}

	var provider delivery.Provider
	if d.Cfg.ProviderBaseURL != "" {
		provider = delivery.NewHTTPProvider(d.Cfg.ProviderBaseURL, d.Cfg.ProviderTimeout)
	} else {
		provider = delivery.StaticProvider{}
	}

	notifier := notification.NewLoggerNotifier(d.Logger)
	poolSvc := pool.NewService(store, notifier)
	deliverySvc := delivery.NewService(store, provider, limiter, notifier)
	adminSvc := admin.NewService(store, notifier, d.Cfg.AdminSetupKeyHash)

	poolHandler := pool.NewHandler(poolSvc)
	deliveryHandler := delivery.NewHandler(deliverySvc)
	adminHandler := admin.NewHandler(adminSvc)

	api := app.Group("/api/v1")
	RegisterUserRoutes(api, poolHandler)
	RegisterAllocationRoutes(api, poolHandler, deliveryHandler)
	RegisterAdminRoutes(api, adminHandler)

	return nil
}
