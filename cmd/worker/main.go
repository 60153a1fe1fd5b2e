package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/gitbounty/backend/internal/chain"
	"github.com/gitbounty/backend/internal/config"
	"github.com/gitbounty/backend/internal/db"
	"github.com/gitbounty/backend/internal/events"
	"github.com/gitbounty/backend/internal/github"
	"github.com/gitbounty/backend/internal/notify"
	"github.com/gitbounty/backend/internal/repositories"
	"github.com/gitbounty/backend/internal/services"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The worker submits refund transactions, so it needs operator keys
	// just like the API.
	registry, err := chain.BuildRegistry(cfg, chain.ModeServer, log)
	if err != nil {
		log.Fatal("failed to build network registry", zap.Error(err))
	}
	factory := chain.NewFactory(registry, cfg.RPCTimeout, cfg.ReceiptTimeout, cfg.GasLimit, log)
	defer factory.Close()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	bountyRepo := repositories.NewBountyRepo(pool)
	claimRepo := repositories.NewClaimRepo(pool)
	walletRepo := repositories.NewWalletRepo(pool)
	allowlistRepo := repositories.NewAllowlistRepo(pool)

	publisher := events.NewRedisPublisher(rdb, log)
	ghClient := github.NewClient(cfg.GitHubAPIBaseURL, cfg.GitHubToken, log)
	alerts := notify.NewEmailNotifier(cfg.SMTPAddr, cfg.AlertEmailFrom, cfg.AlertEmailTo, log)
	notifier := notify.NewDispatcher(ghClient, alerts, log)

	settlementService := services.NewSettlementService(bountyRepo, claimRepo, factory, notifier, publisher, log)
	claimService := services.NewClaimService(
		bountyRepo, claimRepo, walletRepo, allowlistRepo,
		settlementService, notifier, publisher,
		cfg.Environment, cfg.FundBaseURL, cfg.CommandPrefix,
		log,
	)

	log.Info("worker started",
		zap.Duration("expiry_scan_interval", cfg.ExpiryScanInterval),
		zap.Duration("stuck_claim_age", cfg.StuckClaimAge),
	)

	expiryTicker := time.NewTicker(cfg.ExpiryScanInterval)
	stuckTicker := time.NewTicker(time.Hour)
	defer expiryTicker.Stop()
	defer stuckTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-expiryTicker.C:
			runExpiryScan(ctx, settlementService, cfg, log)
		case <-stuckTicker.C:
			runStuckClaimScan(ctx, claimService, cfg, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

func runExpiryScan(ctx context.Context, settlementService *services.SettlementService, cfg *config.Config, log *zap.Logger) {
	refunded, err := settlementService.RunExpiryScan(ctx, cfg.Environment)
	if err != nil {
		log.Error("expiry scan failed", zap.Error(err))
		return
	}
	if refunded > 0 {
		log.Info("expiry scan complete", zap.Int("refunded", refunded))
	}
}

func runStuckClaimScan(ctx context.Context, claimService *services.ClaimService, cfg *config.Config, log *zap.Logger) {
	stuck, err := claimService.RunStuckClaimScan(ctx, cfg.StuckClaimAge)
	if err != nil {
		log.Error("stuck claim scan failed", zap.Error(err))
		return
	}
	if stuck > 0 {
		log.Warn("stuck claims detected", zap.Int("count", stuck))
	}
}
