package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/voiceassist/internal/config"
	"github.com/smallbiznis/voiceassist/internal/identity"
	usagedomain "github.com/smallbiznis/voiceassist/internal/usage/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeUsage struct {
	usagedomain.Service
	today int64
	err   error
}

func (f *fakeUsage) StartOfDay() time.Time {
	return time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
}

func (f *fakeUsage) CountSince(_ context.Context, _ time.Time, filter *identity.Identity) (int64, error) {
	if filter != nil {
		return 0, errors.New("unexpected identity filter")
	}
	return f.today, f.err
}

type recordingPusher struct {
	pushed int
	err    error
}

func (p *recordingPusher) Push(_ context.Context, registry *prometheus.Registry) error {
	p.pushed++
	return p.err
}

func newTestReporter(usage usagedomain.Service, settings config.WidgetSettings, pusher Pusher) *Reporter {
	return NewReporter(Params{
		Log:      zap.NewNop(),
		Usage:    usage,
		Settings: config.NewStaticWidgetSettingsHolder(settings),
		Pusher:   pusher,
		Config:   Config{Job: "voiceassist"},
	})
}

func TestReporterRunOnce(t *testing.T) {
	settings := config.DefaultWidgetSettings()
	settings.GlobalUsageLimit = 100
	pusher := &recordingPusher{}
	r := newTestReporter(&fakeUsage{today: 30}, settings, pusher)

	require.NoError(t, r.RunOnce(context.Background()))

	assert.Equal(t, 1, pusher.pushed)
	assert.Equal(t, 30.0, testutil.ToFloat64(r.messagesToday))
	assert.Equal(t, 100.0, testutil.ToFloat64(r.globalLimit))
	assert.Equal(t, 70.0, testutil.ToFloat64(r.globalRemaining))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.pushes.WithLabelValues("ok")))
}

func TestReporterUnlimitedGlobal(t *testing.T) {
	r := newTestReporter(&fakeUsage{today: 5}, config.DefaultWidgetSettings(), &recordingPusher{})

	require.NoError(t, r.RunOnce(context.Background()))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.globalLimit))
	assert.Equal(t, -1.0, testutil.ToFloat64(r.globalRemaining))
}

func TestReporterErrors(t *testing.T) {
	pusher := &recordingPusher{}
	r := newTestReporter(&fakeUsage{err: errors.New("db down")}, config.DefaultWidgetSettings(), pusher)
	assert.Error(t, r.RunOnce(context.Background()))
	assert.Zero(t, pusher.pushed)

	failing := &recordingPusher{err: errors.New("unreachable")}
	r = newTestReporter(&fakeUsage{today: 1}, config.DefaultWidgetSettings(), failing)
	assert.Error(t, r.RunOnce(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.pushes.WithLabelValues("error")))
}

func TestReporterDisabledWithoutPusher(t *testing.T) {
	r := newTestReporter(&fakeUsage{}, config.DefaultWidgetSettings(), nil)
	assert.False(t, r.Enabled())
	assert.NoError(t, r.RunOnce(context.Background()))
}
