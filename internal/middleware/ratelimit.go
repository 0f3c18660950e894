package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/push-campaigns/backend/internal/http/dto"
	"github.com/redis/go-redis/v9"
)

// RateLimitMiddleware counts requests per caller and route in fixed windows.
// Callers are keyed by user when authenticated, by IP otherwise. Redis errors
// fail open. Mount it in a route's handler chain, not with Use, so the bucket
// follows the matched route.
func RateLimitMiddleware(rdb redis.UniversalClient, limit int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := RateLimitKey(c)

		ctx := c.UserContext()
		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			return c.Next() // fail open
		}

		if count == 1 {
			rdb.Expire(ctx, key, window)
		}

		if count > int64(limit) {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{Error: "rate limit exceeded"})
		}

		return c.Next()
	}
}

// RateLimitKey buckets by route template, so /campaigns/<id> requests share
// one counter per caller.
func RateLimitKey(c *fiber.Ctx) string {
	caller := c.IP()
	if id := GetUserID(c); id != uuid.Nil {
		caller = GetTenantSlug(c) + ":" + id.String()
	}
	return fmt.Sprintf("rl:%s:%s:%s", c.Method(), c.Route().Path, caller)
}
