package ratelimit

import (
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewRedisClient),
	fx.Provide(provideLocker),
	fx.Provide(NewToolCallLimiter),
)

func provideLocker(client *redis.Client) *Locker {
	return NewLocker(client)
}
