package ratelimit

import (
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

type lockerParams struct {
	fx.In

	Redis *redis.Client `optional:"true"`
}

var Module = fx.Module("rate.limit",
	fx.Provide(NewOAuthLimiter),
	fx.Provide(func(p lockerParams) Locker { return NewLocker(p.Redis) }),
)
