package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/push-campaigns/backend/internal/http/dto"
	"github.com/push-campaigns/backend/internal/models"
)

// DeliveryInfo reports which push provider the process is using.
type DeliveryInfo interface {
	ProviderName() string
	IsMock() bool
}

type MetaHandler struct {
	delivery DeliveryInfo
}

func NewMetaHandler(delivery DeliveryInfo) *MetaHandler {
	return &MetaHandler{delivery: delivery}
}

type MetaOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

var platformOptions = []MetaOption{
	{ID: models.PlatformIOS, Label: "iOS"},
	{ID: models.PlatformAndroid, Label: "Android"},
	{ID: models.PlatformWeb, Label: "Web"},
}

var ctaTypeOptions = []MetaOption{
	{ID: models.CTATypeModule, Label: "In-app module"},
	{ID: models.CTATypeLink, Label: "External link"},
}

var campaignStatusOptions = []MetaOption{
	{ID: models.CampaignStatusScheduled, Label: "Scheduled"},
	{ID: models.CampaignStatusProcessing, Label: "Processing"},
	{ID: models.CampaignStatusCompleted, Label: "Completed"},
	{ID: models.CampaignStatusFailed, Label: "Failed"},
}

func (h *MetaHandler) GetPlatforms(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: platformOptions})
}

func (h *MetaHandler) GetCampaignOptions(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{
		"statuses":  campaignStatusOptions,
		"cta_types": ctaTypeOptions,
	}})
}

func (h *MetaHandler) GetDelivery(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{
		"provider": h.delivery.ProviderName(),
		"mock":     h.delivery.IsMock(),
	}})
}
