package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/drivebridge/internal/clock"
	"github.com/smallbiznis/drivebridge/internal/config"
	"github.com/smallbiznis/drivebridge/internal/postscan/domain"
	"github.com/smallbiznis/drivebridge/internal/postscan/repository"
	"github.com/smallbiznis/drivebridge/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const markerKey = "wpmudev_test_last_scan"

type fixture struct {
	db     *gorm.DB
	svc    *Service
	clock  *clock.FakeClock
	locker ratelimit.Locker
}

func newFixture(t *testing.T, repo domain.Repository) *fixture {
	t.Helper()
	return newFixtureWithLocker(t, repo, ratelimit.NewLocalLocker())
}

func newFixtureWithLocker(t *testing.T, repo domain.Repository, locker ratelimit.Locker) *fixture {
	t.Helper()

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&domain.Post{}, &domain.PostMeta{}, &domain.PostScan{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if repo == nil {
		repo = repository.Provide()
	}
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	maintenance := config.NewStaticMaintenanceConfigHolder(config.MaintenanceConfig{
		BatchSize:        20,
		DefaultPostTypes: []string{"post", "page"},
		PostStatus:       "publish",
		MarkerKey:        markerKey,
		LockTTL:          time.Minute,
	})

	svc := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		Clock:       clk,
		Repo:        repo,
		Locker:      locker,
		Maintenance: maintenance,
	}).(*Service)

	return &fixture{db: db, svc: svc, clock: clk, locker: locker}
}

func (f *fixture) seedPosts(t *testing.T, postType, status string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		post := domain.Post{
			PostType:   postType,
			PostStatus: status,
			PostTitle:  fmt.Sprintf("%s %d", postType, i),
			PostDate:   f.clock.Now(),
		}
		if err := f.db.Create(&post).Error; err != nil {
			t.Fatalf("seed post: %v", err)
		}
	}
}

func (f *fixture) markerCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(&domain.PostMeta{}).Where("meta_key = ?", markerKey).Count(&n).Error; err != nil {
		t.Fatalf("count markers: %v", err)
	}
	return n
}

func TestGetProgressIdle(t *testing.T) {
	f := newFixture(t, nil)

	progress, err := f.svc.GetProgress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIdle, progress.Status)
	assert.Empty(t, progress.PostTypes)
	assert.Nil(t, progress.StartedAt)
}

func TestStartScanRejectsEmptyTypes(t *testing.T) {
	f := newFixture(t, nil)

	for _, in := range [][]string{nil, {}, {" ", ""}} {
		_, err := f.svc.StartScan(context.Background(), in)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	}

	progress, err := f.svc.GetProgress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIdle, progress.Status)
}

func TestProcessBatchRequiresRunningScan(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.ProcessBatch(context.Background(), domain.BatchRequest{PostTypes: []string{"post"}})
	assert.ErrorIs(t, err, domain.ErrScanNotRunning)
}

func TestScanProcessesInBatches(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedPosts(t, "post", "publish", 45)
	f.seedPosts(t, "post", "draft", 3)
	f.seedPosts(t, "page", "publish", 4)

	progress, err := f.svc.StartScan(ctx, []string{"post", "post"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, progress.Status)
	assert.Equal(t, []string{"post"}, progress.PostTypes)
	assert.Equal(t, int64(45), progress.TotalEstimate)
	assert.Equal(t, int64(0), progress.CursorOffset)

	want := []domain.BatchResult{
		{Processed: 20, Exhausted: false},
		{Processed: 20, Exhausted: false},
		{Processed: 5, Exhausted: true},
	}
	for i, w := range want {
		f.clock.Advance(time.Minute)
		got, err := f.svc.ProcessBatch(ctx, domain.BatchRequest{PostTypes: []string{"post"}, BatchIndex: i})
		require.NoError(t, err, "batch %d", i)
		assert.Equal(t, progress.ScanID, got.ScanID)
		assert.Equal(t, w.Processed, got.Processed, "batch %d", i)
		assert.Equal(t, w.Exhausted, got.Exhausted, "batch %d", i)
	}

	progress, err = f.svc.GetProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, progress.Status)
	assert.Equal(t, int64(45), progress.ProcessedCount)
	assert.Equal(t, int64(45), progress.CursorOffset)
	require.NotNil(t, progress.LastBatchAt)
	assert.True(t, progress.LastBatchAt.Equal(f.clock.Now()))
	assert.Equal(t, int64(45), f.markerCount(t))

	_, err = f.svc.ProcessBatch(ctx, domain.BatchRequest{PostTypes: []string{"post"}})
	assert.ErrorIs(t, err, domain.ErrScanNotRunning)
}

func TestScanMarkerHoldsEpochSeconds(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedPosts(t, "post", "publish", 1)

	_, err := f.svc.StartScan(ctx, []string{"post"})
	require.NoError(t, err)
	_, err = f.svc.ProcessBatch(ctx, domain.BatchRequest{})
	require.NoError(t, err)

	var meta domain.PostMeta
	require.NoError(t, f.db.Where("meta_key = ?", markerKey).Take(&meta).Error)
	stamp, err := strconv.ParseInt(meta.MetaValue, 10, 64)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Unix(), stamp)
}

func TestRestartResetsProgress(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedPosts(t, "post", "publish", 25)
	f.seedPosts(t, "page", "publish", 5)

	first, err := f.svc.StartScan(ctx, []string{"post"})
	require.NoError(t, err)
	for {
		res, err := f.svc.ProcessBatch(ctx, domain.BatchRequest{})
		require.NoError(t, err)
		if res.Exhausted {
			break
		}
	}

	second, err := f.svc.StartScan(ctx, []string{"post", "page"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ScanID, second.ScanID)
	assert.Equal(t, domain.StatusRunning, second.Status)
	assert.Equal(t, int64(0), second.CursorOffset)
	assert.Equal(t, int64(0), second.ProcessedCount)
	assert.Equal(t, int64(30), second.TotalEstimate)

	res, err := f.svc.ProcessBatch(ctx, domain.BatchRequest{PostTypes: []string{"page", "post"}})
	require.NoError(t, err)
	assert.Equal(t, 20, res.Processed)

	// Markers are overwritten, not duplicated.
	assert.Equal(t, int64(25), f.markerCount(t))
}

func TestProcessBatchRejectsForeignTypes(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.StartScan(ctx, []string{"post"})
	require.NoError(t, err)

	_, err = f.svc.ProcessBatch(ctx, domain.BatchRequest{PostTypes: []string{"page"}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestProcessBatchHonorsLock(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedPosts(t, "post", "publish", 3)

	progress, err := f.svc.StartScan(ctx, []string{"post"})
	require.NoError(t, err)

	token, ok, err := f.locker.TryLock(ctx, "postscan:lock:"+progress.ScanID, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.ProcessBatch(ctx, domain.BatchRequest{})
	assert.ErrorIs(t, err, domain.ErrScanLocked)
	assert.ErrorIs(t, err, ratelimit.ErrLockHeld)

	require.NoError(t, f.locker.Release(ctx, "postscan:lock:"+progress.ScanID, token))
	res, err := f.svc.ProcessBatch(ctx, domain.BatchRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Processed)
}

// flakyRepo fails marker writes on the configured call.
type flakyRepo struct {
	domain.Repository
	failOn int
	calls  int
}

var errInjected = errors.New("injected write failure")

func (r *flakyRepo) UpsertMeta(ctx context.Context, db *gorm.DB, ids []uint64, key, value string) error {
	r.calls++
	if r.calls == r.failOn {
		return errInjected
	}
	return r.Repository.UpsertMeta(ctx, db, ids, key, value)
}

func TestProcessBatchResumesFromCommittedCursor(t *testing.T) {
	repo := &flakyRepo{Repository: repository.Provide(), failOn: 2}
	f := newFixture(t, repo)
	ctx := context.Background()
	f.seedPosts(t, "post", "publish", 45)

	_, err := f.svc.StartScan(ctx, []string{"post"})
	require.NoError(t, err)

	res, err := f.svc.ProcessBatch(ctx, domain.BatchRequest{BatchIndex: 0})
	require.NoError(t, err)
	assert.Equal(t, 20, res.Processed)

	_, err = f.svc.ProcessBatch(ctx, domain.BatchRequest{BatchIndex: 1})
	require.ErrorIs(t, err, errInjected)

	progress, err := f.svc.GetProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(20), progress.CursorOffset)
	assert.Equal(t, int64(20), progress.ProcessedCount)
	assert.Equal(t, domain.StatusRunning, progress.Status)
	assert.Equal(t, int64(20), f.markerCount(t))

	// A fresh service over the same storage picks up where the committed
	// cursor left off.
	restarted := New(Params{
		DB:          f.db,
		Log:         zap.NewNop(),
		Clock:       f.clock,
		Repo:        repo,
		Locker:      ratelimit.NewLocalLocker(),
		Maintenance: f.svc.maintenance,
	})
	var processed []int
	for i := 1; ; i++ {
		res, err := restarted.ProcessBatch(ctx, domain.BatchRequest{BatchIndex: i})
		require.NoError(t, err)
		processed = append(processed, res.Processed)
		if res.Exhausted {
			break
		}
	}
	assert.Equal(t, []int{20, 5}, processed)
	assert.Equal(t, int64(45), f.markerCount(t))

	progress, err = restarted.GetProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, progress.Status)
	assert.Equal(t, int64(45), progress.ProcessedCount)
}

func TestProcessBatchHonorsRedisLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixtureWithLocker(t, nil, ratelimit.NewLocker(client))
	ctx := context.Background()
	f.seedPosts(t, "post", "publish", 2)

	progress, err := f.svc.StartScan(ctx, []string{"post"})
	require.NoError(t, err)

	lockKey := "postscan:lock:" + progress.ScanID
	token, ok, err := f.locker.TryLock(ctx, lockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.ProcessBatch(ctx, domain.BatchRequest{})
	assert.ErrorIs(t, err, domain.ErrScanLocked)
	assert.Zero(t, f.markerCount(t))

	require.NoError(t, f.locker.Release(ctx, lockKey, token))
	res, err := f.svc.ProcessBatch(ctx, domain.BatchRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.False(t, mr.Exists(lockKey), "the batch releases its lock")
}
