package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/drivebridge/internal/clock"
	kvdomain "github.com/smallbiznis/drivebridge/internal/kvstore/domain"
	obsmetrics "github.com/smallbiznis/drivebridge/internal/observability/metrics"
	postscandomain "github.com/smallbiznis/drivebridge/internal/postscan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobPostsScan    = "posts_scan"
	JobPurgeOptions = "purge_expired_options"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log     *zap.Logger
	ScanSvc postscandomain.Service
	Purger  kvdomain.Purger `optional:"true"`
	GenID   *snowflake.Node
	Clock   clock.Clock
	Metrics *obsmetrics.SchedulerMetrics `optional:"true"`
	Config  Config                       `optional:"true"`
}

type Scheduler struct {
	log     *zap.Logger
	cfg     Config
	genID   *snowflake.Node
	clock   clock.Clock
	scanSvc postscandomain.Service
	purger  kvdomain.Purger
	metrics *obsmetrics.SchedulerMetrics

	batches atomic.Int64
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.ScanSvc == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:     p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:     p.Config.withDefaults(),
		genID:   p.GenID,
		clock:   p.Clock,
		scanSvc: p.ScanSvc,
		purger:  p.Purger,
		metrics: p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	s.metrics.IncJobRun(name)

	err := fn(ctx)
	s.metrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// A deadline is a soft timeout; the next tick picks the work up again.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		s.metrics.IncJobTimeout(name)
	}
	s.metrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{JobPostsScan, s.isJobEnabled(JobPostsScan), func(ctx context.Context) error {
			return s.runJob(ctx, JobPostsScan, s.cfg.BatchesPerTick, s.cfg.JobTimeout, s.PostsScanJob)
		}},
		{JobPurgeOptions, s.isJobEnabled(JobPurgeOptions) && s.purger != nil, func(ctx context.Context) error {
			return s.runJob(ctx, JobPurgeOptions, 0, s.cfg.JobTimeout, s.PurgeExpiredOptionsJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			s.metrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// Empty means every job runs (monolith mode).
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// PostsScanJob advances the current scan by up to BatchesPerTick batches.
// A scan that is not running, or is locked by another worker, is deferred
// rather than failed.
func (s *Scheduler) PostsScanJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobPostsScan, s.cfg.BatchesPerTick)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	progress, err := s.scanSvc.GetProgress(ctx)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.scan.progress.failed", JobPostsScan, err)
		return err
	}
	if progress.Status != postscandomain.StatusRunning {
		s.metrics.IncBatchDeferred(JobPostsScan, obsmetrics.SchedulerBatchDeferredReasonNotRunning)
		return nil
	}
	run.TrackScan(progress.ScanID, false)

	for i := 0; i < s.cfg.BatchesPerTick; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		batchIndex := int(s.batches.Add(1) - 1)
		res, err := s.scanSvc.ProcessBatch(ctx, postscandomain.BatchRequest{
			PostTypes:  progress.PostTypes,
			BatchIndex: batchIndex,
		})
		switch {
		case errors.Is(err, postscandomain.ErrScanLocked):
			s.metrics.IncBatchDeferred(JobPostsScan, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
			s.logger(ctx).Debug("scheduler.scan.locked", zap.String("scan_id", progress.ScanID))
			return nil
		case errors.Is(err, postscandomain.ErrScanNotRunning):
			s.metrics.IncBatchDeferred(JobPostsScan, obsmetrics.SchedulerBatchDeferredReasonNotRunning)
			return nil
		case err != nil:
			s.logSchedulerError(ctx, run, "scheduler.scan.batch.failed", JobPostsScan, err,
				zap.String("scan_id", progress.ScanID),
				zap.Int("batch_index", batchIndex),
			)
			return err
		}

		run.AddProcessed(res.Processed)
		run.TrackScan(res.ScanID, res.Exhausted)
		s.metrics.AddBatchProcessed(JobPostsScan, obsmetrics.ResourcePosts, res.Processed)
		if res.Exhausted {
			s.logger(ctx).Info("scheduler.scan.completed", zap.String("scan_id", res.ScanID))
			return nil
		}
	}
	return nil
}

// PurgeExpiredOptionsJob removes expired transient rows from the durable store.
func (s *Scheduler) PurgeExpiredOptionsJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobPurgeOptions, 0)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	purged, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.options.purge.failed", JobPurgeOptions, err)
		return err
	}
	run.AddProcessed(int(purged))
	s.metrics.AddBatchProcessed(JobPurgeOptions, obsmetrics.ResourceOptions, int(purged))
	return nil
}
