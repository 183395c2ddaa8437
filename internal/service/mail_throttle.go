package service

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Throttle decides whether another action for key is allowed
type Throttle interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// MailThrottle caps outbound mail per key within a fixed window using Redis counters
type MailThrottle struct {
	redis  redis.Cmdable
	limit  int
	window time.Duration
}

// NewMailThrottle creates a MailThrottle allowing limit sends per window.
// A nil client or non-positive limit disables throttling.
func NewMailThrottle(client redis.Cmdable, limit int, window time.Duration) *MailThrottle {
	return &MailThrottle{
		redis:  client,
		limit:  limit,
		window: window,
	}
}

// Allow implements Throttle. Redis failures are logged and the send is allowed.
func (t *MailThrottle) Allow(ctx context.Context, key string) (bool, error) {
	if t.redis == nil || t.limit <= 0 {
		return true, nil
	}

	redisKey := "mail-throttle:" + key
	count, err := t.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		log.Printf("[MailThrottle] Redis unavailable, allowing %s: %v", key, err)
		return true, nil
	}
	if count == 1 {
		if err := t.redis.Expire(ctx, redisKey, t.window).Err(); err != nil {
			log.Printf("[MailThrottle] Failed to set expiry on %s: %v", redisKey, err)
		}
	}

	return count <= int64(t.limit), nil
}
