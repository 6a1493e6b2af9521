package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/sethvargo/go-limiter"
	"github.com/sethvargo/go-limiter/memorystore"
	"github.com/smallbiznis/drivebridge/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyOAuthClient = "ratelimit:oauth:%s"

// OAuthLimiter throttles the unauthenticated-facing OAuth routes per client IP.
// It uses the shared redis bucket when redis is configured and a process-local
// go-limiter store otherwise.
type OAuthLimiter struct {
	enabled bool
	limit   Limit

	bucket *TokenBucket
	local  limiter.Store
}

type Params struct {
	fx.In

	Lc    fx.Lifecycle
	Cfg   config.Config
	Log   *zap.Logger
	Redis *redis.Client `optional:"true"`
}

func NewOAuthLimiter(p Params) (*OAuthLimiter, error) {
	limitCfg := p.Cfg.RateLimit
	if !limitCfg.Enabled {
		return &OAuthLimiter{}, nil
	}
	if limitCfg.OAuthRate <= 0 || limitCfg.OAuthBurst <= 0 {
		return nil, fmt.Errorf("oauth rate limit must be positive")
	}

	l := &OAuthLimiter{
		enabled: true,
		limit:   Limit{Rate: limitCfg.OAuthRate, Burst: limitCfg.OAuthBurst},
	}
	if p.Redis != nil {
		l.bucket = NewTokenBucket(p.Redis)
		return l, nil
	}

	store, err := newLocalStore(l.limit)
	if err != nil {
		return nil, err
	}
	l.local = store
	if p.Lc != nil {
		p.Lc.Append(fx.Hook{OnStop: store.Close})
	}
	p.Log.Named("ratelimit").Info("using in-process oauth rate limiter")
	return l, nil
}

// newLocalStore converts a Limit into go-limiter's tokens-per-interval form.
func newLocalStore(limit Limit) (limiter.Store, error) {
	interval := time.Duration(math.Ceil(float64(limit.Burst)/limit.Rate)) * time.Second
	return memorystore.New(&memorystore.Config{
		Tokens:   uint64(limit.Burst),
		Interval: interval,
	})
}

func (l *OAuthLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// Allow consumes one token for clientIP.
func (l *OAuthLimiter) Allow(ctx context.Context, clientIP string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyOAuthClient, clientIP)
	if l.bucket != nil {
		return l.bucket.Allow(ctx, key, l.limit)
	}

	tokens, remaining, reset, ok, err := l.local.Take(ctx, key)
	if err != nil {
		return &RateLimitResult{Allowed: false}, err
	}
	resetAt := time.Unix(0, int64(reset))
	res := &RateLimitResult{
		Allowed:   ok,
		Limit:     int(tokens),
		Remaining: int(remaining),
		ResetTime: resetAt,
	}
	if !ok {
		if wait := time.Until(resetAt); wait > 0 {
			res.RetryAfter = wait
		}
	}
	return res, nil
}
