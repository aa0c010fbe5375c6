package metricspush

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/dormitory/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultInterval = time.Minute

var Module = fx.Module("metrics.push",
	fx.Provide(NewPusher),
	fx.Invoke(registerOccupancy),
	fx.Invoke(startWorker),
)

func registerOccupancy(reg prometheus.Registerer, db *gorm.DB) error {
	return reg.Register(NewOccupancyCollector(db))
}

func startWorker(lc fx.Lifecycle, cfg config.Config, pusher Pusher, gatherer prometheus.Gatherer, log *zap.Logger) {
	if pusher == nil {
		return
	}
	interval := cfg.MetricsPush.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("starting metrics push worker", zap.String("exporter", cfg.MetricsPush.Exporter), zap.Duration("interval", interval))
			go func() {
				defer close(done)
				run(ctx, pusher, gatherer, interval, log)
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

func run(ctx context.Context, pusher Pusher, gatherer prometheus.Gatherer, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := pusher.Push(ctx, gatherer); err != nil && ctx.Err() == nil {
			log.Warn("metrics push failed", zap.Error(err))
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			log.Info("stopping metrics push worker")
			return
		}
	}
}
