package metricspush

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const defaultPushInterval = 30 * time.Second

// Worker pushes the gatherer's metrics on a fixed interval until stopped.
type Worker struct {
	pusher   Pusher
	gatherer prometheus.Gatherer
	interval time.Duration
	log      *zap.Logger
}

func NewWorker(pusher Pusher, gatherer prometheus.Gatherer, interval time.Duration, log *zap.Logger) *Worker {
	if interval <= 0 {
		interval = defaultPushInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{pusher: pusher, gatherer: gatherer, interval: interval, log: log.Named("metricspush")}
}

// PushOnce performs a single push and logs failures.
func (w *Worker) PushOnce(ctx context.Context) error {
	if w == nil || w.pusher == nil {
		return nil
	}
	if err := w.pusher.Push(ctx, w.gatherer); err != nil {
		w.log.Warn("metrics push failed", zap.Error(err))
		return err
	}
	return nil
}

// Run pushes immediately, then on every tick. A last push is attempted after
// ctx is cancelled so counters from the final run are not lost.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.pusher == nil {
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	_ = w.PushOnce(ctx)
	for {
		select {
		case <-ticker.C:
			_ = w.PushOnce(ctx)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), w.interval)
			_ = w.PushOnce(flushCtx)
			cancel()
			return
		}
	}
}
