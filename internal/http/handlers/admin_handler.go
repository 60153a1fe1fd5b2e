package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gitbounty/backend/internal/http/dto"
	"github.com/gitbounty/backend/internal/services"
)

// AdminHandler exposes the operator surface: fee administration, manual
// refund scans and claim retries. Mounted behind AdminMiddleware.
type AdminHandler struct {
	feeService        *services.FeeService
	settlementService *services.SettlementService
	claimService      *services.ClaimService
	claims            services.ClaimStore
	environment       string
	log               *zap.Logger
}

func NewAdminHandler(
	feeService *services.FeeService,
	settlementService *services.SettlementService,
	claimService *services.ClaimService,
	claims services.ClaimStore,
	environment string,
	log *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		feeService:        feeService,
		settlementService: settlementService,
		claimService:      claimService,
		claims:            claims,
		environment:       environment,
		log:               log,
	}
}

func (h *AdminHandler) GetFees(c *fiber.Ctx) error {
	network := c.Query("network")
	if network == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "network query parameter is required"})
	}

	available, token, err := h.feeService.AvailableFees(c.Context(), network)
	if err != nil {
		h.log.Error("fee query failed", zap.String("network", network), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.FeesResponse{
		Network:   network,
		Token:     token,
		Available: available.String(),
	}})
}

func (h *AdminHandler) WithdrawFees(c *fiber.Ctx) error {
	var req dto.WithdrawFeesRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.Network == "" || req.To == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "network and to are required"})
	}

	res := h.feeService.WithdrawFees(c.Context(), req.Network, req.To)
	if !res.Ok {
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: res.Err})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: res})
}

func (h *AdminHandler) SetFeeBps(c *fiber.Ctx) error {
	var req dto.SetFeeBpsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.Network == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "network is required"})
	}

	res := h.feeService.SetFeeBps(c.Context(), req.Network, req.FeeBps)
	if !res.Ok {
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: res.Err})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: res})
}

// TriggerRefundScan runs the expiry scan immediately instead of waiting
// for the worker tick.
func (h *AdminHandler) TriggerRefundScan(c *fiber.Ctx) error {
	refunded, err := h.settlementService.RunExpiryScan(c.Context(), h.environment)
	if err != nil {
		h.log.Error("manual refund scan failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "scan failed"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.ScanResponse{Refunded: refunded}})
}

func (h *AdminHandler) RetryClaim(c *fiber.Ctx) error {
	var req dto.RetryClaimRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	claimID, err := uuid.Parse(req.ClaimID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid claim_id"})
	}

	claim, err := h.claims.GetByID(c.Context(), claimID)
	if err != nil {
		h.log.Error("claim lookup failed", zap.String("claim_id", req.ClaimID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	if claim == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "claim not found"})
	}

	if err := h.claimService.RetryClaim(c.Context(), claim); err != nil {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
