package scheduler

import (
	"context"

	"github.com/smallbiznis/drivebridge/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(startScheduler),
)

// startScheduler runs the tick loop for the life of the app. SCAN_ENABLED=false
// leaves scans to be advanced by another process.
func startScheduler(lc fx.Lifecycle, cfg config.Config, sched *Scheduler, log *zap.Logger) {
	if !cfg.Scan.Enabled {
		log.Info("scan scheduler disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("starting scan scheduler",
				zap.Duration("interval", sched.cfg.RunInterval),
				zap.Int("batches_per_tick", sched.cfg.BatchesPerTick),
			)
			go func() {
				defer close(done)
				sched.RunForever(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}
