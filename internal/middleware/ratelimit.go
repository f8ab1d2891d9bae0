package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Counter increments a windowed counter and reports the new count together
// with the time left in the window.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RedisCounter counts with INCR and starts the window on the first hit.
type RedisCounter struct {
	rdb *redis.Client
}

func NewRedisCounter(rdb *redis.Client) *RedisCounter {
	return &RedisCounter{rdb: rdb}
}

func (r *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	pipe := r.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("rate limit counter %s: %w", key, err)
	}
	return incr.Val(), ttl.Val(), nil
}

const storyRateWindow = 24 * time.Hour

// StoryRateLimit caps the number of stories a user may post per 24 hours.
// Counter failures let the request through.
func StoryRateLimit(counter Counter, limit int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := UserID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		}

		key := fmt.Sprintf("story_post_rate:%s", userID)
		count, ttl, err := counter.Incr(c.UserContext(), key, storyRateWindow)
		if err != nil {
			slog.Warn("rate limit check failed", "user_id", userID, "err", err)
			return c.Next()
		}
		if count > int64(limit) {
			retryAfter := int(ttl.Seconds())
			if retryAfter <= 0 {
				retryAfter = int(storyRateWindow.Seconds())
			}
			c.Set(fiber.HeaderRetryAfter, fmt.Sprint(retryAfter))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Rate limit exceeded",
				"message":     fmt.Sprintf("Maximum %d stories per 24 hours. Please try again later.", limit),
				"retry_after": retryAfter,
			})
		}
		return c.Next()
	}
}
