package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	CountPosts(ctx context.Context, db *gorm.DB, postTypes []string, status string) (int64, error)
	ListPostIDs(ctx context.Context, db *gorm.DB, postTypes []string, status string, offset int64, limit int) ([]uint64, error)
	UpsertMeta(ctx context.Context, db *gorm.DB, postIDs []uint64, key, value string) error

	InsertScan(ctx context.Context, db *gorm.DB, scan *PostScan) error
	UpdateScan(ctx context.Context, db *gorm.DB, scan *PostScan) error
	LatestScan(ctx context.Context, db *gorm.DB) (*PostScan, error)
}
