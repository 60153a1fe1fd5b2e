package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gitbounty/backend/internal/github"
	"github.com/gitbounty/backend/internal/http/dto"
	"github.com/gitbounty/backend/internal/services"
)

// WebhookHandler receives GitHub deliveries. Processing happens before
// the acknowledgment: a handler error returns non-2xx so GitHub
// redelivers, and idempotent claim creation absorbs the duplicate.
type WebhookHandler struct {
	claimService  *services.ClaimService
	webhookSecret string
	log           *zap.Logger
}

func NewWebhookHandler(claimService *services.ClaimService, webhookSecret string, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		claimService:  claimService,
		webhookSecret: webhookSecret,
		log:           log,
	}
}

func (h *WebhookHandler) HandleGitHub(c *fiber.Ctx) error {
	body := c.Body()
	if !github.VerifySignature(h.webhookSecret, body, c.Get("X-Hub-Signature-256")) {
		h.log.Warn("webhook signature verification failed",
			zap.String("delivery", c.Get("X-GitHub-Delivery")),
		)
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid signature"})
	}

	eventName := c.Get("X-GitHub-Event")
	ev, err := github.DecodeEvent(eventName, body)
	if err != nil {
		var unhandled *github.ErrUnhandled
		if errors.As(err, &unhandled) {
			// Outside the state machine: acknowledge so GitHub does not
			// retry it forever.
			h.log.Debug("unhandled webhook", zap.String("event", unhandled.Event), zap.String("action", unhandled.Action))
			return c.JSON(dto.SuccessResponse{OK: true})
		}
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "malformed payload"})
	}

	if err := h.claimService.HandleEvent(c.Context(), ev); err != nil {
		h.log.Error("webhook processing failed",
			zap.String("event", eventName),
			zap.String("delivery", c.Get("X-GitHub-Delivery")),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "processing failed"})
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}
