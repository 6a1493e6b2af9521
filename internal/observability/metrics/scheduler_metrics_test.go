package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/drivebridge/internal/ratelimit"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			want: SchedulerJobReasonDeadlineExceeded,
		},
		{
			name: "lock_held",
			err:  fmt.Errorf("process batch: %w", ratelimit.ErrLockHeld),
			want: SchedulerJobReasonLockHeld,
		},
		{
			name: "db_lock_timeout",
			err:  &pgconn.PgError{Code: "55P03"},
			want: SchedulerJobReasonDBLockTimeout,
		},
		{
			name: "serialization_failure",
			err:  &pgconn.PgError{Code: "40001"},
			want: SchedulerJobReasonSerializationFailure,
		},
		{
			name: "unique_violation",
			err:  gorm.ErrDuplicatedKey,
			want: SchedulerJobReasonUniqueViolation,
		},
		{
			name: "generic_pg",
			err:  &pgconn.PgError{Code: "08006"},
			want: SchedulerJobReasonDB,
		},
		{
			name: "unknown",
			err:  errors.New("boom"),
			want: SchedulerJobReasonUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySchedulerJobReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestIsSchedulerErrorRetryable(t *testing.T) {
	if IsSchedulerErrorRetryable(nil) {
		t.Fatalf("nil error must not be retryable")
	}
	if !IsSchedulerErrorRetryable(ratelimit.ErrLockHeld) {
		t.Fatalf("held lock should be retried on the next tick")
	}
	if IsSchedulerErrorRetryable(gorm.ErrRecordNotFound) {
		t.Fatalf("record not found is not a transient db error")
	}
}

func TestAddBatchProcessed(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{
		ServiceName: "drivebridge",
		Environment: "test",
	})

	metrics.AddBatchProcessed("posts_scan_batch", ResourcePosts, 20)
	metrics.AddBatchProcessed("posts_scan_batch", ResourcePosts, 5)
	metrics.AddBatchProcessed("posts_scan_batch", ResourcePosts, 0)

	got := testutil.ToFloat64(metrics.batchProcessed.WithLabelValues("posts_scan_batch", ResourcePosts))
	if got != 25 {
		t.Fatalf("expected processed count 25, got %v", got)
	}
}

func TestIncScanTransitionIgnoresSelfLoops(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{Environment: "test"})

	metrics.IncScanTransition("running", "running")
	metrics.IncScanTransition("running", "completed")

	if got := testutil.ToFloat64(metrics.scanTransitions.WithLabelValues("running", "completed")); got != 1 {
		t.Fatalf("expected 1 transition, got %v", got)
	}
	if got := testutil.CollectAndCount(metrics.scanTransitions); got != 1 {
		t.Fatalf("expected a single series, got %d", got)
	}
}
