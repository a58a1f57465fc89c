package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/emledger/emledger/internal/accessctl"
	"github.com/emledger/emledger/internal/clearing"
	"github.com/emledger/emledger/internal/compliance"
	"github.com/emledger/emledger/internal/config"
	"github.com/emledger/emledger/internal/funding"
	"github.com/emledger/emledger/internal/hold"
	"github.com/emledger/emledger/internal/ledger"
	"github.com/emledger/emledger/internal/middleware"
	"github.com/emledger/emledger/internal/notification"
	"github.com/emledger/emledger/internal/payout"
	"github.com/emledger/emledger/internal/transfer"
	"github.com/emledger/emledger/internal/wallet"
	"github.com/emledger/emledger/internal/workflow"
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
	// In-memory fallbacks are a development convenience only.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	var ledgerBackend ledger.Ledger
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgres(d.DB)
	} else {
		ledgerBackend = ledger.NewInMemory()
	}

	var registry accessctl.Registry
	if d.DB != nil {
		registry = accessctl.NewPostgresRegistry(d.DB)
	} else {
		registry = accessctl.NewMemoryRegistry()
	}
	if err := seedRoles(context.Background(), registry, d.Cfg); err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}

	var fundingRepo, payoutRepo, clearingRepo workflow.Repository
	if d.DB != nil {
		fundingRepo = workflow.NewPostgresRepository(d.DB, workflow.KindFunding)
		payoutRepo = workflow.NewPostgresRepository(d.DB, workflow.KindPayout)
		clearingRepo = workflow.NewPostgresRepository(d.DB, workflow.KindClearing)
	} else {
		fundingRepo = workflow.NewMemoryRepository()
		payoutRepo = workflow.NewMemoryRepository()
		clearingRepo = workflow.NewMemoryRepository()
	}

	gate := compliance.Gate(compliance.AllowAll{})
	notifier := notification.NewLoggerNotifier(d.Logger)

	holdSvc := hold.NewService(ledgerBackend, gate, registry, notifier, nil)
	fundingSvc := funding.NewService(fundingRepo, ledgerBackend, gate, registry, notifier)
	payoutSvc := payout.NewService(payoutRepo, ledgerBackend, gate, registry, notifier)
	clearingSvc := clearing.NewService(clearingRepo, ledgerBackend, gate, registry, notifier)
	transferSvc := transfer.NewService(ledgerBackend, gate, registry, notifier)
	walletSvc := wallet.NewService(ledgerBackend, gate, registry)

	holdHandler := hold.NewHandler(holdSvc)
	fundingHandler := funding.NewHandler(fundingSvc)
	payoutHandler := payout.NewHandler(payoutSvc)
	clearingHandler := clearing.NewHandler(clearingSvc)
	transferHandler := transfer.NewHandler(transferSvc)
	walletHandler := wallet.NewHandler(walletSvc)
	adminHandler := accessctl.NewHandler(registry)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterAuthRoutes(api, d.Cfg)

	protected := api.Group("", middleware.CallerAuth([]byte(d.Cfg.TokenSecret)))
	RegisterWalletRoutes(protected, walletHandler)
	RegisterHoldRoutes(protected, holdHandler)
	RegisterFundingRoutes(protected, fundingHandler)
	RegisterPayoutRoutes(protected, payoutHandler)
	RegisterClearingRoutes(protected, clearingHandler)
	RegisterTransferRoutes(protected, transferHandler)
	RegisterAdminRoutes(protected, adminHandler)

	return nil
}

func seedRoles(ctx context.Context, registry accessctl.Registry, cfg config.Config) error {
	for _, address := range cfg.Operators {
		if err := registry.GrantRole(ctx, address, accessctl.RoleOperator); err != nil {
			return err
		}
	}
	for _, address := range cfg.CreditOfficers {
		if err := registry.GrantRole(ctx, address, accessctl.RoleCreditOfficer); err != nil {
			return err
		}
	}
	return nil
}
