package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/push-campaigns/backend/internal/http/dto"
	"github.com/push-campaigns/backend/internal/middleware"
	"github.com/push-campaigns/backend/internal/services"
	"github.com/push-campaigns/backend/internal/tenancy"
	"go.uber.org/zap"
)

type NotificationHandler struct {
	campaignService *services.CampaignService
	tenants         tenancy.Directory
	log             *zap.Logger
}

func NewNotificationHandler(campaignService *services.CampaignService, tenants tenancy.Directory, log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{campaignService: campaignService, tenants: tenants, log: log}
}

// SendTest pushes to one user's devices; user_id defaults to the caller.
func (h *NotificationHandler) SendTest(c *fiber.Ctx) error {
	var req dto.TestNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	userID := middleware.GetUserID(c)
	if req.UserID != "" {
		id, err := uuid.Parse(req.UserID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid user_id"})
		}
		userID = id
	}

	tenant, err := currentTenant(c, h.tenants)
	if err != nil {
		return respondError(c, h.log, err)
	}

	res, err := h.campaignService.SendTestNotification(c.Context(), tenant, userID, req.Title, req.Body)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: res})
}
