package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gitbounty/backend/internal/http/dto"
	"github.com/gitbounty/backend/internal/models"
	"github.com/gitbounty/backend/internal/repositories"
	"github.com/gitbounty/backend/internal/services"
)

type BountyHandler struct {
	bountyService *services.BountyService
	environment   string
	log           *zap.Logger
}

func NewBountyHandler(bountyService *services.BountyService, environment string, log *zap.Logger) *BountyHandler {
	return &BountyHandler{bountyService: bountyService, environment: environment, log: log}
}

func (h *BountyHandler) ListBounties(c *fiber.Ctx) error {
	filter := repositories.BountyFilter{
		Environment: h.environment,
		Limit:       20,
	}

	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}
	if v := c.Query("repo"); v != "" {
		filter.RepoFullName = &v
	}
	if v := c.Query("status"); v != "" {
		filter.Status = &v
	}
	if v := c.Query("network"); v != "" {
		filter.Network = &v
	}

	bounties, err := h.bountyService.List(c.Context(), filter)
	if err != nil {
		h.log.Error("list bounties failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: bounties})
}

func (h *BountyHandler) GetBounty(c *fiber.Ctx) error {
	bounty, err := h.bountyService.Get(c.Context(), c.Params("id"))
	if err != nil {
		h.log.Error("get bounty failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	if bounty == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "bounty not found"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: bounty})
}

func (h *BountyHandler) GetBountyClaims(c *fiber.Ctx) error {
	claims, err := h.bountyService.Claims(c.Context(), c.Params("id"))
	if err != nil {
		h.log.Error("list bounty claims failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: claims})
}

// DeclareIntent registers a funding intent ahead of the sponsor's
// on-chain transaction. The response carries the precomputed bounty id
// the UI shows alongside the transaction.
func (h *BountyHandler) DeclareIntent(c *fiber.Ctx) error {
	var req dto.DeclareIntentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.RepoFullName == "" || req.RepoID == 0 || req.IssueNumber <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "repo_full_name, repo_id and issue_number are required"})
	}

	intent := &models.FundingIntent{
		RepoFullName:     req.RepoFullName,
		RepoID:           req.RepoID,
		IssueNumber:      req.IssueNumber,
		SponsorAddress:   req.SponsorAddress,
		SponsorAccountID: req.SponsorAccountID,
		Network:          req.Network,
		Environment:      h.environment,
	}
	if err := h.bountyService.DeclareFundingIntent(c.Context(), intent); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: intent})
}

// ListNetworks serves the funding UI: every configured network with its
// escrow address and payout token, secrets excluded by the model's JSON
// tags.
func (h *BountyHandler) ListNetworks(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: h.bountyService.Networks()})
}
