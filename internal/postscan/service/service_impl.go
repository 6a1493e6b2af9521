package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/drivebridge/internal/clock"
	"github.com/smallbiznis/drivebridge/internal/config"
	obslogger "github.com/smallbiznis/drivebridge/internal/observability/logger"
	"github.com/smallbiznis/drivebridge/internal/observability/metrics"
	"github.com/smallbiznis/drivebridge/internal/postscan/domain"
	"github.com/smallbiznis/drivebridge/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const lockKeyPrefix = "postscan:lock:"

type Params struct {
	fx.In

	DB               *gorm.DB
	Log              *zap.Logger
	Clock            clock.Clock
	Repo             domain.Repository
	Locker           ratelimit.Locker
	Maintenance      *config.MaintenanceConfigHolder
	Metrics          *metrics.Metrics          `optional:"true"`
	SchedulerMetrics *metrics.SchedulerMetrics `optional:"true"`
}

type Service struct {
	db               *gorm.DB
	log              *zap.Logger
	clock            clock.Clock
	repo             domain.Repository
	locker           ratelimit.Locker
	maintenance      *config.MaintenanceConfigHolder
	metrics          *metrics.Metrics
	schedulerMetrics *metrics.SchedulerMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:               p.DB,
		log:              p.Log.Named("postscan.service"),
		clock:            p.Clock,
		repo:             p.Repo,
		locker:           p.Locker,
		maintenance:      p.Maintenance,
		metrics:          p.Metrics,
		schedulerMetrics: p.SchedulerMetrics,
	}
}

// StartScan resets progress to a fresh running scan. A scan already in
// flight is abandoned and its row kept as history.
func (s *Service) StartScan(ctx context.Context, postTypes []string) (domain.ScanProgress, error) {
	types := normalizeTypes(postTypes)
	if len(types) == 0 {
		return domain.ScanProgress{}, domain.ErrInvalidInput
	}
	cfg := s.maintenance.Get()

	previous, err := s.repo.LatestScan(ctx, s.db)
	if err != nil {
		return domain.ScanProgress{}, fmt.Errorf("load scan: %w", err)
	}

	total, err := s.repo.CountPosts(ctx, s.db, types, cfg.PostStatus)
	if err != nil {
		return domain.ScanProgress{}, fmt.Errorf("count posts: %w", err)
	}

	rawTypes, err := json.Marshal(types)
	if err != nil {
		return domain.ScanProgress{}, err
	}
	now := s.clock.Now().UTC()
	scan := domain.PostScan{
		ID:            ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Status:        domain.StatusRunning,
		PostTypes:     datatypes.JSON(rawTypes),
		PostStatus:    cfg.PostStatus,
		TotalEstimate: total,
		Metadata: datatypes.JSONMap{
			"batch_size": cfg.BatchSize,
			"marker_key": cfg.MarkerKey,
		},
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertScan(ctx, s.db, &scan); err != nil {
		return domain.ScanProgress{}, fmt.Errorf("insert scan: %w", err)
	}

	from := domain.StatusIdle
	if previous != nil {
		from = previous.Status
	}
	s.schedulerMetrics.IncScanTransition(string(from), string(domain.StatusRunning))

	obslogger.WithContext(ctx, s.log).Info("postscan.started",
		zap.String("scan_id", scan.ID),
		zap.Strings("post_types", types),
		zap.Int64("total_estimate", total),
	)
	return toProgress(&scan), nil
}

func (s *Service) ProcessBatch(ctx context.Context, req domain.BatchRequest) (domain.BatchResult, error) {
	current, err := s.repo.LatestScan(ctx, s.db)
	if err != nil {
		return domain.BatchResult{}, fmt.Errorf("load scan: %w", err)
	}
	if current == nil || current.Status != domain.StatusRunning {
		return domain.BatchResult{}, domain.ErrScanNotRunning
	}

	types, err := scanTypes(current)
	if err != nil {
		return domain.BatchResult{}, err
	}
	if requested := normalizeTypes(req.PostTypes); len(requested) > 0 && !sameTypes(requested, types) {
		return domain.BatchResult{}, domain.ErrInvalidInput
	}

	cfg := s.maintenance.Get()
	lockKey := lockKeyPrefix + current.ID
	token, ok, err := s.locker.TryLock(ctx, lockKey, cfg.LockTTL)
	if err != nil {
		return domain.BatchResult{}, fmt.Errorf("acquire scan lock: %w", err)
	}
	if !ok {
		return domain.BatchResult{}, fmt.Errorf("%w: %w", domain.ErrScanLocked, ratelimit.ErrLockHeld)
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
			s.log.Warn("postscan.lock.release_failed", zap.String("scan_id", current.ID), zap.Error(err))
		}
	}()

	result := domain.BatchResult{ScanID: current.ID}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Re-read under the lock so the cursor is the committed one.
		scan, err := s.repo.LatestScan(ctx, tx)
		if err != nil {
			return err
		}
		if scan == nil || scan.ID != current.ID || scan.Status != domain.StatusRunning {
			return domain.ErrScanNotRunning
		}

		ids, err := s.repo.ListPostIDs(ctx, tx, types, scan.PostStatus, scan.CursorOffset, cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("list posts: %w", err)
		}

		now := s.clock.Now().UTC()
		stamp := strconv.FormatInt(now.Unix(), 10)
		if err := s.repo.UpsertMeta(ctx, tx, ids, cfg.MarkerKey, stamp); err != nil {
			return fmt.Errorf("write scan markers: %w", err)
		}

		scan.CursorOffset += int64(len(ids))
		scan.ProcessedCount += int64(len(ids))
		scan.LastBatchAt = &now
		scan.UpdatedAt = now
		if len(ids) < cfg.BatchSize {
			scan.Status = domain.StatusCompleted
			scan.CompletedAt = &now
		}
		if err := s.repo.UpdateScan(ctx, tx, scan); err != nil {
			return fmt.Errorf("advance cursor: %w", err)
		}

		result.Processed = len(ids)
		result.Exhausted = scan.Status == domain.StatusCompleted
		return nil
	})
	if err != nil {
		return domain.BatchResult{}, err
	}

	s.metrics.RecordScanItems(ctx, result.Processed)
	if result.Exhausted {
		s.schedulerMetrics.IncScanTransition(string(domain.StatusRunning), string(domain.StatusCompleted))
	}
	obslogger.WithContext(ctx, s.log).Info("postscan.batch.processed",
		zap.String("scan_id", current.ID),
		zap.Int("batch_index", req.BatchIndex),
		zap.Int("processed", result.Processed),
		zap.Bool("exhausted", result.Exhausted),
	)
	return result, nil
}

func (s *Service) GetProgress(ctx context.Context) (domain.ScanProgress, error) {
	scan, err := s.repo.LatestScan(ctx, s.db)
	if err != nil {
		return domain.ScanProgress{}, fmt.Errorf("load scan: %w", err)
	}
	if scan == nil {
		return domain.ScanProgress{Status: domain.StatusIdle, PostTypes: []string{}}, nil
	}
	return toProgress(scan), nil
}

func toProgress(scan *domain.PostScan) domain.ScanProgress {
	types, err := scanTypes(scan)
	if err != nil {
		types = []string{}
	}
	startedAt := scan.StartedAt
	return domain.ScanProgress{
		ScanID:         scan.ID,
		Status:         scan.Status,
		PostTypes:      types,
		CursorOffset:   scan.CursorOffset,
		ProcessedCount: scan.ProcessedCount,
		TotalEstimate:  scan.TotalEstimate,
		StartedAt:      &startedAt,
		LastBatchAt:    scan.LastBatchAt,
		CompletedAt:    scan.CompletedAt,
	}
}

func scanTypes(scan *domain.PostScan) ([]string, error) {
	var types []string
	if err := json.Unmarshal(scan.PostTypes, &types); err != nil {
		return nil, fmt.Errorf("decode post types of scan %s: %w", scan.ID, err)
	}
	if len(types) == 0 {
		return nil, errors.New("scan has no post types")
	}
	return types, nil
}

// normalizeTypes trims, drops blanks and removes duplicates, keeping the
// first occurrence order.
func normalizeTypes(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func sameTypes(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(b))
	for _, t := range b {
		set[t] = struct{}{}
	}
	for _, t := range a {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}

