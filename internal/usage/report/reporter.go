// Package report pushes the ledger's daily totals to an external metrics
// store, for deployments that account assistant usage outside this service.
package report

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/voiceassist/internal/config"
	"github.com/smallbiznis/voiceassist/internal/limit"
	"github.com/smallbiznis/voiceassist/internal/ratelimit"
	usagedomain "github.com/smallbiznis/voiceassist/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Usage    usagedomain.Service
	Settings *config.WidgetSettingsHolder
	Pusher   Pusher            `optional:"true"`
	Locker   *ratelimit.Locker `optional:"true"`
	Config   Config
}

const lockJob = "usage.report"

// Reporter owns a private registry so pushes carry only usage totals.
type Reporter struct {
	log      *zap.Logger
	usage    usagedomain.Service
	settings *config.WidgetSettingsHolder
	pusher   Pusher
	locker   *ratelimit.Locker
	cfg      Config

	registry        *prometheus.Registry
	messagesToday   prometheus.Gauge
	globalLimit     prometheus.Gauge
	globalRemaining prometheus.Gauge
	pushes          *prometheus.CounterVec
}

func NewReporter(p Params) *Reporter {
	labels := prometheus.Labels{"service": p.Config.Job}
	if p.Config.Environment != "" {
		labels["environment"] = p.Config.Environment
	}

	r := &Reporter{
		log:      p.Log.Named("usage.report"),
		usage:    p.Usage,
		settings: p.Settings,
		pusher:   p.Pusher,
		locker:   p.Locker,
		cfg:      p.Config.withDefaults(),
		registry: prometheus.NewRegistry(),
		messagesToday: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "voiceassist_usage_messages_today",
			Help:        "Messages counted by the ledger since local midnight.",
			ConstLabels: labels,
		}),
		globalLimit: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "voiceassist_usage_global_limit",
			Help:        "Configured global daily message limit, 0 when unlimited.",
			ConstLabels: labels,
		}),
		globalRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "voiceassist_usage_global_remaining",
			Help:        "Messages left under the global limit, -1 when unlimited.",
			ConstLabels: labels,
		}),
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "voiceassist_usage_report_pushes_total",
			Help:        "Usage report pushes by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
	}
	r.registry.MustRegister(r.messagesToday, r.globalLimit, r.globalRemaining, r.pushes)
	return r
}

func (r *Reporter) Enabled() bool {
	return r != nil && r.pusher != nil
}

func (r *Reporter) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Reporter) RunForever(ctx context.Context) {
	if !r.Enabled() {
		r.log.Info("usage report disabled")
		return
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := r.RunOnce(ctx); err != nil {
			r.log.Warn("usage report push failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce refreshes the gauges from the ledger and pushes them. Replicas
// sharing a redis locker push once per interval between them.
func (r *Reporter) RunOnce(parentCtx context.Context) error {
	if !r.Enabled() {
		return nil
	}

	ctx, cancel := context.WithTimeout(parentCtx, r.cfg.RunTimeout)
	defer cancel()

	if r.locker != nil {
		// the lease is left to expire so the other replicas skip this interval
		_, err := r.locker.Acquire(ctx, lockJob, r.cfg.Interval/2)
		if errors.Is(err, ratelimit.ErrLockHeld) {
			return nil
		}
		if err != nil {
			return err
		}
	}

	today, err := r.usage.CountSince(ctx, r.usage.StartOfDay(), nil)
	if err != nil {
		return err
	}

	settings := config.DefaultWidgetSettings()
	if r.settings != nil {
		settings = r.settings.Get()
	}
	check := limit.CheckScope(today, settings.GlobalUsageLimit)

	r.messagesToday.Set(float64(today))
	r.globalLimit.Set(float64(check.Limit))
	r.globalRemaining.Set(float64(check.Remaining))

	if err := r.pusher.Push(ctx, r.registry); err != nil {
		r.pushes.WithLabelValues("error").Inc()
		return err
	}
	r.pushes.WithLabelValues("ok").Inc()
	r.log.Debug("usage report pushed", zap.Int64("messages_today", today))
	return nil
}
