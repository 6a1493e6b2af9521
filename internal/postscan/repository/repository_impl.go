package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/drivebridge/internal/postscan/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) postsQuery(ctx context.Context, db *gorm.DB, postTypes []string, status string) *gorm.DB {
	return db.WithContext(ctx).
		Model(&domain.Post{}).
		Where("post_type IN ? AND post_status = ?", postTypes, status)
}

func (r *repo) CountPosts(ctx context.Context, db *gorm.DB, postTypes []string, status string) (int64, error) {
	var total int64
	if err := r.postsQuery(ctx, db, postTypes, status).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// ListPostIDs pages through matching posts by ascending id.
func (r *repo) ListPostIDs(ctx context.Context, db *gorm.DB, postTypes []string, status string, offset int64, limit int) ([]uint64, error) {
	ids := make([]uint64, 0, limit)
	err := r.postsQuery(ctx, db, postTypes, status).
		Order("id ASC").
		Offset(int(offset)).
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) UpsertMeta(ctx context.Context, db *gorm.DB, postIDs []uint64, key, value string) error {
	if len(postIDs) == 0 {
		return nil
	}
	rows := make([]domain.PostMeta, 0, len(postIDs))
	for _, id := range postIDs {
		rows = append(rows, domain.PostMeta{PostID: id, MetaKey: key, MetaValue: value})
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_id"}, {Name: "meta_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"meta_value"}),
		}).
		Create(&rows).Error
}

func (r *repo) InsertScan(ctx context.Context, db *gorm.DB, scan *domain.PostScan) error {
	return db.WithContext(ctx).Create(scan).Error
}

func (r *repo) UpdateScan(ctx context.Context, db *gorm.DB, scan *domain.PostScan) error {
	res := db.WithContext(ctx).
		Model(&domain.PostScan{}).
		Where("id = ?", scan.ID).
		Updates(map[string]any{
			"status":          scan.Status,
			"cursor_offset":   scan.CursorOffset,
			"processed_count": scan.ProcessedCount,
			"last_batch_at":   scan.LastBatchAt,
			"completed_at":    scan.CompletedAt,
			"updated_at":      scan.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repo) LatestScan(ctx context.Context, db *gorm.DB) (*domain.PostScan, error) {
	var scan domain.PostScan
	err := db.WithContext(ctx).Order("id DESC").Take(&scan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &scan, nil
}
