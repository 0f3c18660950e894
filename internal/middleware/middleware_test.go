package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/push-campaigns/backend/internal/auth"
	"github.com/push-campaigns/backend/internal/config"
	"github.com/push-campaigns/backend/internal/rbac"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestIDMiddleware())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(GetRequestID(c)) })

	tests := []struct {
		name    string
		inbound string
		reuse   bool
	}{
		{"minted", "", false},
		{"reused", "req-123", true},
		{"oversized", strings.Repeat("x", 200), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.inbound != "" {
				req.Header.Set(HeaderRequestID, tt.inbound)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			got := resp.Header.Get(HeaderRequestID)
			if tt.reuse && got != tt.inbound {
				t.Errorf("request id = %q, want %q", got, tt.inbound)
			}
			if !tt.reuse {
				if _, err := uuid.Parse(got); err != nil {
					t.Errorf("request id %q is not a uuid", got)
				}
			}
		})
	}
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		status int
		want   zapcore.Level
	}{
		{200, zapcore.InfoLevel},
		{404, zapcore.WarnLevel},
		{503, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		if got := levelFor(tt.status); got != tt.want {
			t.Errorf("levelFor(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestRequirePermission(t *testing.T) {
	cfg := &config.Config{JWTSecret: "secret"}
	app := fiber.New()
	app.Use(AuthMiddleware(cfg, zap.NewNop()))
	app.Get("/admin", RequirePermission(rbac.PermManageCampaigns), func(c *fiber.Ctx) error {
		return c.SendString(GetTenantSlug(c))
	})

	tests := []struct {
		name string
		role string
		want int
	}{
		{"admin", rbac.RoleAdmin, fiber.StatusOK},
		{"user", rbac.RoleUser, fiber.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := auth.GenerateJWT(cfg.JWTSecret, uuid.New(), "acme", tt.role, 0)
			if err != nil {
				t.Fatal(err)
			}
			req := httptest.NewRequest("GET", "/admin", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/admin", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("missing token status = %d", resp.StatusCode)
	}
}

func TestRateLimitKeyFollowsRoute(t *testing.T) {
	app := fiber.New()
	app.Get("/campaigns/:id", func(c *fiber.Ctx) error { return c.SendString(RateLimitKey(c)) })
	app.Get("/campaigns", func(c *fiber.Ctx) error { return c.SendString(RateLimitKey(c)) })

	key := func(path string) string {
		t.Helper()
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		if err != nil {
			t.Fatal(err)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatal(err)
		}
		return string(body)
	}

	a, b := key("/campaigns/"+uuid.NewString()), key("/campaigns/"+uuid.NewString())
	if a != b {
		t.Errorf("different campaign ids got different buckets: %q vs %q", a, b)
	}
	if !strings.Contains(a, "/campaigns/:id") {
		t.Errorf("key %q does not name the route", a)
	}
	if list := key("/campaigns"); list == a {
		t.Errorf("list and detail share a bucket: %q", list)
	}
}
