package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gitbounty/backend/internal/chain"
	"github.com/gitbounty/backend/internal/config"
	"github.com/gitbounty/backend/internal/db"
	"github.com/gitbounty/backend/internal/events"
	"github.com/gitbounty/backend/internal/github"
	apphttp "github.com/gitbounty/backend/internal/http"
	"github.com/gitbounty/backend/internal/http/handlers"
	"github.com/gitbounty/backend/internal/notify"
	"github.com/gitbounty/backend/internal/repositories"
	"github.com/gitbounty/backend/internal/services"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Chain registry: the API signs transactions, so every configured
	// network must carry a valid operator key.
	registry, err := chain.BuildRegistry(cfg, chain.ModeServer, log)
	if err != nil {
		log.Fatal("failed to build network registry", zap.Error(err))
	}
	factory := chain.NewFactory(registry, cfg.RPCTimeout, cfg.ReceiptTimeout, cfg.GasLimit, log)
	defer factory.Close()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	bountyRepo := repositories.NewBountyRepo(pool)
	claimRepo := repositories.NewClaimRepo(pool)
	walletRepo := repositories.NewWalletRepo(pool)
	allowlistRepo := repositories.NewAllowlistRepo(pool)
	intentRepo := repositories.NewIntentRepo(pool)

	// Events + notifications
	publisher := events.NewRedisPublisher(rdb, log)
	ghClient := github.NewClient(cfg.GitHubAPIBaseURL, cfg.GitHubToken, log)
	alerts := notify.NewEmailNotifier(cfg.SMTPAddr, cfg.AlertEmailFrom, cfg.AlertEmailTo, log)
	notifier := notify.NewDispatcher(ghClient, alerts, log)

	// Services
	settlementService := services.NewSettlementService(bountyRepo, claimRepo, factory, notifier, publisher, log)
	claimService := services.NewClaimService(
		bountyRepo, claimRepo, walletRepo, allowlistRepo,
		settlementService, notifier, publisher,
		cfg.Environment, cfg.FundBaseURL, cfg.CommandPrefix,
		log,
	)
	bountyService := services.NewBountyService(bountyRepo, claimRepo, intentRepo, registry, factory, notifier, publisher, log)
	feeService := services.NewFeeService(factory, log)

	// Handlers
	webhookHandler := handlers.NewWebhookHandler(claimService, cfg.GitHubWebhookSecret, log)
	bountyHandler := handlers.NewBountyHandler(bountyService, cfg.Environment, log)
	adminHandler := handlers.NewAdminHandler(feeService, settlementService, claimService, claimRepo, cfg.Environment, log)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, webhookHandler, bountyHandler, adminHandler)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server",
		zap.String("addr", addr),
		zap.Strings("networks", registry.Aliases()),
	)
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
