package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/drivebridge/internal/clock"
	"github.com/smallbiznis/drivebridge/internal/kvstore/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db    *gorm.DB
	clock clock.Clock
}

func NewGormStore(db *gorm.DB, clk clock.Clock) *GormStore {
	if clk == nil {
		clk = clock.New()
	}
	return &GormStore{db: db, clock: clk}
}

func (s *GormStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := domain.ValidateKey(key); err != nil {
		return "", false, err
	}

	var row domain.Option
	err := s.db.WithContext(ctx).
		Where("option_name = ? AND (expires_at IS NULL OR expires_at > ?)", key, s.clock.Now()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Value, true, nil
}

func (s *GormStore) Set(ctx context.Context, key, value string) error {
	return s.upsert(ctx, key, value, nil)
}

func (s *GormStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return domain.ErrInvalidTTL
	}
	expiresAt := s.clock.Now().Add(ttl)
	return s.upsert(ctx, key, value, &expiresAt)
}

func (s *GormStore) upsert(ctx context.Context, key, value string, expiresAt *time.Time) error {
	if err := domain.ValidateKey(key); err != nil {
		return err
	}
	row := domain.Option{
		Name:      key,
		Value:     value,
		ExpiresAt: expiresAt,
		UpdatedAt: s.clock.Now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "option_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"option_value", "expires_at", "updated_at"}),
	}).Create(&row).Error
}

func (s *GormStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	for _, key := range keys {
		if err := domain.ValidateKey(key); err != nil {
			return err
		}
	}
	return s.db.WithContext(ctx).
		Where("option_name IN ?", keys).
		Delete(&domain.Option{}).Error
}

func (s *GormStore) Take(ctx context.Context, key string) (string, bool, error) {
	if err := domain.ValidateKey(key); err != nil {
		return "", false, err
	}

	var (
		value string
		found bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row domain.Option
		err := tx.Where("option_name = ?", key).Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		res := tx.Where("option_name = ? AND option_value = ?", key, row.Value).Delete(&domain.Option{})
		if res.Error != nil {
			return res.Error
		}
		// A concurrent taker already removed it.
		if res.RowsAffected != 1 {
			return nil
		}
		if row.ExpiresAt != nil && !row.ExpiresAt.After(s.clock.Now()) {
			return nil
		}
		value, found = row.Value, true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return value, found, nil
}

func (s *GormStore) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", s.clock.Now()).
		Delete(&domain.Option{})
	return res.RowsAffected, res.Error
}

var (
	_ domain.Store  = (*GormStore)(nil)
	_ domain.Purger = (*GormStore)(nil)
)
