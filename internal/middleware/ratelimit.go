package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"explorer/internal/models"
	"explorer/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy defines the behavior when the rate limit store (Redis) is unavailable.
type FailPolicy int

const (
	// FailOpen allows the request to proceed if Redis is unavailable.
	FailOpen FailPolicy = iota
	// FailClosed blocks the request (503 Service Unavailable) if Redis is unavailable.
	FailClosed
)

// RateLimiter enforces fixed-window request limits backed by Redis.
type RateLimiter struct {
	rdb     *redis.Client
	enabled bool
	logger  *slog.Logger
}

// NewRateLimiter creates a limiter. Limiting is skipped for the development and test
// environments so local workflows are not throttled.
func NewRateLimiter(rdb *redis.Client, env string, logger *slog.Logger) *RateLimiter {
	enabled := true
	switch env {
	case "", "test", "development":
		enabled = false
	}
	return &RateLimiter{rdb: rdb, enabled: enabled, logger: logger}
}

// Check reports whether id may access resource again within window.
func (l *RateLimiter) Check(ctx context.Context, resource, id string, limit int, window time.Duration) (bool, error) {
	if !l.enabled {
		return true, nil
	}
	if l.rdb == nil {
		return false, errors.New("redis client is nil")
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)

	cnt, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if cnt == 1 {
		if err := l.rdb.Expire(ctx, key, window).Err(); err != nil {
			// A counter without a TTL never resets.
			if delErr := l.rdb.Del(ctx, key).Err(); delErr != nil {
				l.logger.WarnContext(ctx, "rate limit key left without expiry",
					slog.String("key", key), slog.String("error", delErr.Error()))
			}
			return false, fmt.Errorf("set rate limit window: %w", err)
		}
	}
	return cnt <= int64(limit), nil
}

// Limit returns a Fiber middleware enforcing limit requests per window under resource.
// It keys by authenticated user when known, otherwise by remote IP.
func (l *RateLimiter) Limit(resource string, limit int, window time.Duration, policy FailPolicy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := "ip:" + c.IP()
		if uid, ok := c.Locals(LocalsUserID).(string); ok && uid != "" {
			id = "user:" + uid
		}

		allowed, err := l.Check(c.UserContext(), resource, id, limit, window)
		if err != nil {
			if policy == FailClosed {
				l.logger.WarnContext(c.UserContext(), "rate limit fail-closed",
					slog.String("resource", resource), slog.String("error", err.Error()))
				return c.Status(fiber.StatusServiceUnavailable).JSON(models.Envelope{
					Status:  models.StatusError,
					Message: "Rate limit unavailable",
				})
			}
			return c.Next()
		}

		if !allowed {
			observability.RateLimitRejections.WithLabelValues(resource).Inc()
			return c.Status(fiber.StatusTooManyRequests).JSON(models.Envelope{
				Status:  models.StatusError,
				Message: "Too many requests, please try again later",
			})
		}
		return c.Next()
	}
}
