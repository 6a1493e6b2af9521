package ratelimit

import (
	"context"
	"testing"

	"github.com/smallbiznis/drivebridge/internal/config"
	"go.uber.org/zap"
)

func TestOAuthLimiterInProcess(t *testing.T) {
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, OAuthRate: 0.1, OAuthBurst: 2}}
	l, err := NewOAuthLimiter(Params{Cfg: cfg, Log: zap.NewNop()})
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "203.0.113.7")
		if err != nil || !res.Allowed {
			t.Fatalf("request %d should be allowed, res=%+v err=%v", i, res, err)
		}
	}
	res, err := l.Allow(ctx, "203.0.113.7")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if res.Allowed {
		t.Fatalf("third request should be limited")
	}

	other, err := l.Allow(ctx, "198.51.100.1")
	if err != nil || !other.Allowed {
		t.Fatalf("other clients have their own bucket")
	}
}

func TestOAuthLimiterDisabled(t *testing.T) {
	l, err := NewOAuthLimiter(Params{Cfg: config.Config{}, Log: zap.NewNop()})
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	for i := 0; i < 50; i++ {
		res, _ := l.Allow(context.Background(), "203.0.113.7")
		if !res.Allowed {
			t.Fatalf("disabled limiter must allow everything")
		}
	}
}
