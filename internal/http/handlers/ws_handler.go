package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/push-campaigns/backend/internal/auth"
	"github.com/push-campaigns/backend/internal/config"
	"github.com/push-campaigns/backend/internal/events"
	"github.com/push-campaigns/backend/internal/rbac"
	"go.uber.org/zap"
)

// WSHub streams campaign lifecycle events to admins of the event's tenant.
type WSHub struct {
	cfg         *config.Config
	subscriber  events.Subscriber
	log         *zap.Logger
	mu          sync.RWMutex
	connections map[string][]*websocket.Conn // by tenant slug
}

func NewWSHub(cfg *config.Config, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		cfg:         cfg,
		subscriber:  subscriber,
		log:         log,
		connections: make(map[string][]*websocket.Conn),
	}
}

func (h *WSHub) Start(ctx context.Context) {
	if err := h.subscriber.Subscribe(ctx, events.CampaignStreamPattern, h.broadcast); err != nil {
		h.log.Error("campaign event subscription ended", zap.Error(err))
	}
}

func (h *WSHub) broadcast(event events.Event) {
	tenant, _ := event.Payload["tenant"].(string)
	if tenant == "" {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conn := range h.connections[tenant] {
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		conn.Close()
		return
	}

	claims, err := auth.ParseJWT(h.cfg.JWTSecret, tokenStr)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		conn.Close()
		return
	}
	if !rbac.HasPermission(claims.Role, rbac.PermViewCampaigns) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"permission denied"}`))
		conn.Close()
		return
	}

	tenant := claims.TenantSlug

	h.mu.Lock()
	h.connections[tenant] = append(h.connections[tenant], conn)
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		conns := h.connections[tenant]
		for i, c := range conns {
			if c == conn {
				h.connections[tenant] = append(conns[:i], conns[i+1:]...)
				break
			}
		}
		if len(h.connections[tenant]) == 0 {
			delete(h.connections, tenant)
		}
		h.mu.Unlock()
		conn.Close()
	}()

	// Read loop (keep alive / pings)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
