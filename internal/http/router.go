package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/push-campaigns/backend/internal/config"
	"github.com/push-campaigns/backend/internal/http/handlers"
	"github.com/push-campaigns/backend/internal/middleware"
	"github.com/push-campaigns/backend/internal/rbac"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Handlers groups everything the router mounts. WSHub and Redis are optional.
type Handlers struct {
	Campaigns     *handlers.CampaignHandler
	Devices       *handlers.DeviceHandler
	Notifications *handlers.NotificationHandler
	Meta          *handlers.MetaHandler
	WSHub         *handlers.WSHub
}

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb redis.UniversalClient,
	h Handlers,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))
	app.Use(middleware.MetricsMiddleware())

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1")

	// Meta (public, no auth required)
	api.Get("/meta/platforms", h.Meta.GetPlatforms)
	api.Get("/meta/campaigns", h.Meta.GetCampaignOptions)
	api.Get("/meta/delivery", h.Meta.GetDelivery)

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// Per-route so the limiter sees the matched route
	limit := func(c *fiber.Ctx) error { return c.Next() }
	if rdb != nil {
		limit = middleware.RateLimitMiddleware(rdb, 100, time.Minute)
	}

	// Own devices
	devices := protected.Group("/me/devices", middleware.RequirePermission(rbac.PermManageOwnDevices))
	devices.Post("", limit, h.Devices.RegisterDevice)
	devices.Get("", limit, h.Devices.ListDevices)
	devices.Delete("", limit, h.Devices.RemoveDevice)

	// Campaigns
	protected.Post("/campaigns", limit, middleware.RequirePermission(rbac.PermManageCampaigns), h.Campaigns.CreateCampaign)
	protected.Get("/campaigns", limit, middleware.RequirePermission(rbac.PermViewCampaigns), h.Campaigns.ListCampaigns)
	protected.Get("/campaigns/:id", limit, middleware.RequirePermission(rbac.PermViewCampaigns), h.Campaigns.GetCampaign)

	// Notifications
	protected.Post("/notifications/test", limit, middleware.RequirePermission(rbac.PermSendTest), h.Notifications.SendTest)

	// WebSocket
	if h.WSHub != nil {
		app.Use("/ws", handlers.WSUpgradeMiddleware())
		app.Get("/ws", websocket.New(h.WSHub.HandleWS))
	}
}
