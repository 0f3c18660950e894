package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/push-campaigns/backend/internal/http/dto"
	"github.com/push-campaigns/backend/internal/middleware"
	"github.com/push-campaigns/backend/internal/models"
	"github.com/push-campaigns/backend/internal/services"
	"github.com/push-campaigns/backend/internal/tenancy"
	"go.uber.org/zap"
)

// currentTenant resolves the tenant named in the caller's token.
func currentTenant(c *fiber.Ctx, dir tenancy.Directory) (models.Tenant, error) {
	return tenancy.Lookup(c.Context(), dir, middleware.GetTenantSlug(c))
}

// respondError maps service errors to HTTP responses. Unexpected errors are
// logged and hidden from the caller.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	reqID := middleware.GetRequestID(c)

	switch {
	case errors.Is(err, services.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error(), RequestID: reqID})
	case errors.Is(err, tenancy.ErrUnknownTenant):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: "tenant not available", RequestID: reqID})
	case errors.Is(err, services.ErrCampaignNotFound),
		errors.Is(err, services.ErrTokenNotFound),
		errors.Is(err, services.ErrNoTokens):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: err.Error(), RequestID: reqID})
	}

	log.Error("request failed",
		zap.String("request_id", reqID),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error", RequestID: reqID})
}
