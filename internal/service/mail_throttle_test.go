package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/socialhub/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailThrottle_Disabled(t *testing.T) {
	ctx := context.Background()

	for _, throttle := range []*service.MailThrottle{
		service.NewMailThrottle(nil, 1, time.Hour),
		service.NewMailThrottle(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), 0, time.Hour),
	} {
		for i := 0; i < 3; i++ {
			allowed, err := throttle.Allow(ctx, "alice@x.com")
			require.NoError(t, err)
			assert.True(t, allowed)
		}
	}
}

func TestMailThrottle_RedisUnavailableAllows(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	throttle := service.NewMailThrottle(client, 1, time.Hour)
	allowed, err := throttle.Allow(context.Background(), "alice@x.com")
	require.NoError(t, err)
	assert.True(t, allowed)
}
