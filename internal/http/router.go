package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gitbounty/backend/internal/config"
	"github.com/gitbounty/backend/internal/http/handlers"
	"github.com/gitbounty/backend/internal/middleware"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	webhookHandler *handlers.WebhookHandler,
	bountyHandler *handlers.BountyHandler,
	adminHandler *handlers.AdminHandler,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// GitHub deliveries: HMAC-verified, never JWT-gated.
	app.Post("/webhooks/github", webhookHandler.HandleGitHub)

	api := app.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Public reads for the funding UI
	api.Get("/networks", bountyHandler.ListNetworks)
	api.Get("/bounties", bountyHandler.ListBounties)
	api.Get("/bounties/:id", bountyHandler.GetBounty)
	api.Get("/bounties/:id/claims", bountyHandler.GetBountyClaims)
	api.Post("/funding-intents", bountyHandler.DeclareIntent)

	// Operator surface
	admin := api.Group("/admin", middleware.AuthMiddleware(cfg, log), middleware.AdminMiddleware())
	admin.Get("/fees", adminHandler.GetFees)
	admin.Post("/fees/withdraw", adminHandler.WithdrawFees)
	admin.Post("/fees/bps", adminHandler.SetFeeBps)
	admin.Post("/refund-scan", adminHandler.TriggerRefundScan)
	admin.Post("/claims/retry", adminHandler.RetryClaim)
}
