package service

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/drivebridge/internal/clock"
	"github.com/smallbiznis/drivebridge/internal/kvstore/domain"
	"github.com/smallbiznis/drivebridge/internal/kvstore/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Redis *redis.Client `optional:"true"`
}

// Service routes durable keys to the options table and, when redis is
// configured, TTL entries to redis. Reads and deletes consult both so a key
// written before redis was enabled is still found.
type Service struct {
	log       *zap.Logger
	durable   *repository.GormStore
	transient domain.Store
}

func New(p Params) *Service {
	durable := repository.NewGormStore(p.DB, p.Clock)
	s := &Service{
		log:     p.Log.Named("kvstore.service"),
		durable: durable,
	}
	if p.Redis != nil {
		s.transient = repository.NewRedisStore(p.Redis)
	}
	return s
}

func (s *Service) Get(ctx context.Context, key string) (string, bool, error) {
	if s.transient != nil {
		value, ok, err := s.transient.Get(ctx, key)
		if err != nil {
			return "", false, err
		}
		if ok {
			return value, true, nil
		}
	}
	return s.durable.Get(ctx, key)
}

func (s *Service) Set(ctx context.Context, key, value string) error {
	return s.durable.Set(ctx, key, value)
}

func (s *Service) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if s.transient == nil {
		return s.durable.SetWithTTL(ctx, key, value, ttl)
	}
	if err := s.transient.SetWithTTL(ctx, key, value, ttl); err != nil {
		return err
	}
	// Drop any stale durable copy so reads cannot resurrect it.
	return s.durable.Delete(ctx, key)
}

func (s *Service) Delete(ctx context.Context, keys ...string) error {
	if s.transient != nil {
		if err := s.transient.Delete(ctx, keys...); err != nil {
			return err
		}
	}
	return s.durable.Delete(ctx, keys...)
}

func (s *Service) Take(ctx context.Context, key string) (string, bool, error) {
	if s.transient != nil {
		value, ok, err := s.transient.Take(ctx, key)
		if err != nil {
			return "", false, err
		}
		if ok {
			return value, true, nil
		}
	}
	return s.durable.Take(ctx, key)
}

// PurgeExpired removes expired rows from the options table.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.durable.PurgeExpired(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Debug("purged expired options", zap.Int64("count", n))
	}
	return n, nil
}

var (
	_ domain.Store  = (*Service)(nil)
	_ domain.Purger = (*Service)(nil)
)
