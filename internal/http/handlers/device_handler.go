package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/push-campaigns/backend/internal/alerts"
	"github.com/push-campaigns/backend/internal/http/dto"
	"github.com/push-campaigns/backend/internal/middleware"
	"github.com/push-campaigns/backend/internal/models"
	"github.com/push-campaigns/backend/internal/push"
	"github.com/push-campaigns/backend/internal/rbac"
	"github.com/push-campaigns/backend/internal/services"
	"github.com/push-campaigns/backend/internal/tenancy"
	"go.uber.org/zap"
)

type TopicManager interface {
	SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*push.TopicResult, error)
	UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) (*push.TopicResult, error)
}

// DeviceHandler manages the caller's own push tokens. Admin devices also
// follow the tenant's operator alert topic.
type DeviceHandler struct {
	tokenService *services.TokenService
	tenants      tenancy.Directory
	topics       TopicManager
	log          *zap.Logger
}

func NewDeviceHandler(tokenService *services.TokenService, tenants tenancy.Directory, topics TopicManager, log *zap.Logger) *DeviceHandler {
	return &DeviceHandler{tokenService: tokenService, tenants: tenants, topics: topics, log: log}
}

func (h *DeviceHandler) RegisterDevice(c *fiber.Ctx) error {
	var req dto.RegisterDeviceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	tenant, err := currentTenant(c, h.tenants)
	if err != nil {
		return respondError(c, h.log, err)
	}

	view, err := h.tokenService.Register(c.Context(), tenant, middleware.GetUserID(c), req.Token, req.Platform)
	if err != nil {
		return respondError(c, h.log, err)
	}
	switch {
	case middleware.GetRole(c) == rbac.RoleAdmin:
		h.syncOperatorTopic(c, tenant, req.Token, true)
	case view.Reassigned:
		// a device handed over from another user must stop receiving operator alerts
		h.syncOperatorTopic(c, tenant, req.Token, false)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: view})
}

func (h *DeviceHandler) RemoveDevice(c *fiber.Ctx) error {
	var req dto.RemoveDeviceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	tenant, err := currentTenant(c, h.tenants)
	if err != nil {
		return respondError(c, h.log, err)
	}

	if err := h.tokenService.Remove(c.Context(), tenant, middleware.GetUserID(c), req.Token); err != nil {
		return respondError(c, h.log, err)
	}
	if middleware.GetRole(c) == rbac.RoleAdmin {
		h.syncOperatorTopic(c, tenant, req.Token, false)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *DeviceHandler) ListDevices(c *fiber.Ctx) error {
	tenant, err := currentTenant(c, h.tenants)
	if err != nil {
		return respondError(c, h.log, err)
	}

	devices, err := h.tokenService.List(c.Context(), tenant, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: devices})
}

// syncOperatorTopic is best effort: a topic failure never fails the request.
func (h *DeviceHandler) syncOperatorTopic(c *fiber.Ctx, tenant models.Tenant, token string, subscribe bool) {
	if h.topics == nil {
		return
	}
	topic := alerts.OperatorTopic(tenant.Slug)
	var err error
	if subscribe {
		_, err = h.topics.SubscribeToTopic(c.Context(), []string{token}, topic)
	} else {
		_, err = h.topics.UnsubscribeFromTopic(c.Context(), []string{token}, topic)
	}
	if err != nil {
		h.log.Warn("operator topic sync failed",
			zap.String("tenant", tenant.Slug),
			zap.Bool("subscribe", subscribe),
			zap.Error(err),
		)
	}
}
