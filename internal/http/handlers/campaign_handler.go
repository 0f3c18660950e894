package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/push-campaigns/backend/internal/http/dto"
	"github.com/push-campaigns/backend/internal/middleware"
	"github.com/push-campaigns/backend/internal/services"
	"github.com/push-campaigns/backend/internal/tenancy"
	"go.uber.org/zap"
)

type CampaignHandler struct {
	campaignService *services.CampaignService
	tenants         tenancy.Directory
	log             *zap.Logger
}

func NewCampaignHandler(campaignService *services.CampaignService, tenants tenancy.Directory, log *zap.Logger) *CampaignHandler {
	return &CampaignHandler{campaignService: campaignService, tenants: tenants, log: log}
}

// CreateCampaign sends immediately or schedules, depending on scheduled_at.
func (h *CampaignHandler) CreateCampaign(c *fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	tenant, err := currentTenant(c, h.tenants)
	if err != nil {
		return respondError(c, h.log, err)
	}

	res, err := h.campaignService.CreateAndDispatch(c.Context(), tenant, middleware.GetUserID(c), req.Campaign())
	if errors.Is(err, services.ErrEmptyAudience) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Error: err.Error(), Data: res})
	}
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: res})
}

func (h *CampaignHandler) ListCampaigns(c *fiber.Ctx) error {
	tenant, err := currentTenant(c, h.tenants)
	if err != nil {
		return respondError(c, h.log, err)
	}

	var status *string
	if v := c.Query("status"); v != "" {
		status = &v
	}

	page, err := h.campaignService.ListCampaigns(c.Context(), tenant, c.QueryInt("page", 1), c.QueryInt("page_size", 20), status)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: page})
}

func (h *CampaignHandler) GetCampaign(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	tenant, err := currentTenant(c, h.tenants)
	if err != nil {
		return respondError(c, h.log, err)
	}

	detail, err := h.campaignService.GetCampaignDetail(c.Context(), tenant, id, c.QueryInt("log_limit", 100), c.QueryInt("log_offset", 0))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: detail})
}
