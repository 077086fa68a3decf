package retention

import (
	"context"
	"errors"
	"time"

	obsmetrics "github.com/smallbiznis/voiceassist/internal/observability/metrics"
	"github.com/smallbiznis/voiceassist/internal/ratelimit"
	usagedomain "github.com/smallbiznis/voiceassist/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const lockJob = "usage.retention"

type Params struct {
	fx.In

	Log     *zap.Logger
	Usage   usagedomain.Service
	Config  Config
	Locker  *ratelimit.Locker   `optional:"true"`
	Metrics *obsmetrics.Metrics `optional:"true"`
}

// Worker deletes usage records older than the retention horizon.
type Worker struct {
	log     *zap.Logger
	usage   usagedomain.Service
	locker  *ratelimit.Locker
	metrics *obsmetrics.Metrics
	cfg     Config
}

func NewWorker(p Params) *Worker {
	return &Worker{
		log:     p.Log.Named("usage.retention"),
		usage:   p.Usage,
		locker:  p.Locker,
		metrics: p.Metrics,
		cfg:     p.Config.withDefaults(),
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	if !w.cfg.Enabled() {
		w.log.Info("usage retention disabled")
		return
	}

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil {
			w.log.Warn("usage retention run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce purges expired records. With a redis locker only one replica
// sweeps per interval; the others skip.
func (w *Worker) RunOnce(parentCtx context.Context) (int64, error) {
	if !w.cfg.Enabled() {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(parentCtx, w.cfg.RunTimeout)
	defer cancel()

	if w.locker != nil {
		lease, err := w.locker.Acquire(ctx, lockJob, w.cfg.LockTTL)
		if errors.Is(err, ratelimit.ErrLockHeld) {
			w.log.Debug("usage retention held by another replica")
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		defer func() {
			if err := lease.Release(context.Background()); err != nil {
				w.log.Warn("release retention lock", zap.Error(err))
			}
		}()
	}

	deleted, err := w.usage.Purge(ctx, w.cfg.Retention)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		w.log.Info("usage records purged",
			zap.Int64("deleted", deleted),
			zap.Duration("retention", w.cfg.Retention),
		)
	}
	w.metrics.RecordRetentionPurge(ctx, deleted)
	return deleted, nil
}
