package lock

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/dormitory/internal/clock"
	"go.uber.org/fx"
)

const redisKeyPrefix = "dormitory:lock:"

var Module = fx.Module("lock",
	fx.Provide(New),
)

// New picks the Redis-backed locker when a client is available.
func New(client *redis.Client, clk clock.Clock) Locker {
	if client == nil {
		return NewLocalLocker(clk)
	}
	return NewRedisLocker(client, redisKeyPrefix)
}
