package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/ledgerd/internal/account"
	"github.com/congo-pay/ledgerd/internal/auth"
	"github.com/congo-pay/ledgerd/internal/config"
	"github.com/congo-pay/ledgerd/internal/credential"
	"github.com/congo-pay/ledgerd/internal/history"
	"github.com/congo-pay/ledgerd/internal/identity"
	"github.com/congo-pay/ledgerd/internal/metrics"
	"github.com/congo-pay/ledgerd/internal/middleware"
	"github.com/congo-pay/ledgerd/internal/notification"
	"github.com/congo-pay/ledgerd/internal/transfer"
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
	// Redis holds balances; only dev may fall back to memory.
	if !d.Cfg.IsDev() && d.Cache == nil {
		return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(metrics.Instrument())
	app.Use(middleware.Audit(logger))

	RegisterHealthRoutes(app, d)
	app.Get("/metrics", metrics.Handler())

	accounts, hist, notifier := backends(d, logger)

	tokens, err := auth.NewAuthority(d.Cfg.Auth)
	if err != nil {
		return fmt.Errorf("token authority: %w", err)
	}

	identitySvc := identity.NewService(accounts, credential.NewCodec(credential.DefaultParams))
	identityHandler := identity.NewHandler(identitySvc, tokens, d.Cfg.IsAdmin, logger)
	accountHandler := account.NewHandler(accounts, notifier, logger)
	engine := transfer.NewEngine(accounts, hist, notifier, logger, d.Cfg.IdempotencyTTL)
	transferHandler := transfer.NewHandler(engine)
	historyHandler := history.NewHandler(hist)

	var idempotency fiber.Handler
	if d.Cache != nil {
		idempotency = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, logger)
	}

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterIdentityRoutes(app, identityHandler, middleware.LoginRateLimit(d.Cache, d.Cfg.LoginRateLimit, logger))

	RegisterLedgerRoutes(app, middleware.TokenAuth(tokens), accountHandler, transferHandler, historyHandler, idempotency)

	return nil
}

// backends picks Redis for balances when available and Postgres for history
// when a database is configured, falling back to memory in dev.
func backends(d Deps, logger *slog.Logger) (account.Store, history.Store, notification.Notifier) {
	if d.Cache == nil {
		logger.Warn("redis not configured; using in-memory stores")
		return account.NewMemoryStore(), history.NewMemoryStore(), notification.NewLoggerNotifier(logger)
	}

	accounts := account.NewRedisStore(d.Cache, d.Cfg.StoreTimeout)
	notifier := notification.NewRedisNotifier(d.Cache, d.Cfg.StoreTimeout)
	if d.DB != nil {
		return accounts, history.NewPostgresStore(d.DB, d.Cfg.StoreTimeout), notifier
	}
	return accounts, history.NewRedisStore(d.Cache, d.Cfg.StoreTimeout), notifier
}
