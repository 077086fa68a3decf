package report

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("usage.report",
	fx.Provide(ConfigFrom),
	fx.Provide(providePusher),
	fx.Provide(NewReporter),
	fx.Invoke(runReporter),
)

// providePusher logs and disables reporting on a bad exporter setting rather
// than failing startup.
func providePusher(cfg Config, log *zap.Logger) Pusher {
	pusher, err := NewPusher(cfg)
	if err != nil {
		log.Warn("usage report disabled", zap.Error(err))
		return nil
	}
	return pusher
}

func runReporter(lc fx.Lifecycle, reporter *Reporter) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go reporter.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
