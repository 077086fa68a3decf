package limit

import (
	"testing"

	"github.com/smallbiznis/voiceassist/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestZeroLimitIsUnlimited(t *testing.T) {
	for _, count := range []int64{0, 1, 1000000} {
		d := Evaluate(Counts{Daily: count, Global: count, Session: count}, Limits{})

		assert.True(t, d.Allowed)
		assert.Equal(t, ReasonNone, d.Reason)
		for _, c := range []Check{d.Daily, d.Global, d.Session} {
			assert.True(t, c.Allowed)
			assert.Equal(t, Unlimited, c.Remaining)
			assert.Equal(t, count, c.CurrentCount)
		}
	}
}

func TestLimitBoundary(t *testing.T) {
	const k = 5
	for count := int64(0); count < k; count++ {
		d := Evaluate(Counts{Session: count}, Limits{Session: k})
		assert.True(t, d.Allowed, "count %d", count)
		assert.Equal(t, k-count, d.Session.Remaining)
	}

	for _, count := range []int64{k, k + 1, k * 10} {
		d := Evaluate(Counts{Session: count}, Limits{Session: k})
		assert.False(t, d.Allowed, "count %d", count)
		assert.Equal(t, ReasonSessionLimitExceeded, d.Reason)
		assert.Equal(t, int64(0), d.Session.Remaining)
	}
}

func TestFirstFailingScopeWins(t *testing.T) {
	limits := Limits{Daily: 10, Global: 100, Session: 3}

	d := Evaluate(Counts{Daily: 10, Global: 100, Session: 3}, limits)
	assert.Equal(t, ReasonDailyLimitExceeded, d.Reason)
	assert.False(t, d.Global.Allowed)
	assert.False(t, d.Session.Allowed)

	d = Evaluate(Counts{Daily: 2, Global: 100, Session: 3}, limits)
	assert.Equal(t, ReasonGlobalLimitExceeded, d.Reason)

	d = Evaluate(Counts{Daily: 2, Global: 5, Session: 3}, limits)
	assert.Equal(t, ReasonSessionLimitExceeded, d.Reason)

	d = Evaluate(Counts{Daily: 2, Global: 5, Session: 1}, limits)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(8), d.Daily.Remaining)
	assert.Equal(t, int64(95), d.Global.Remaining)
	assert.Equal(t, int64(2), d.Session.Remaining)
}

func TestFailClosed(t *testing.T) {
	d := FailClosed()
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonInternalError, d.Reason)
}

func TestLimitsFromSettings(t *testing.T) {
	s := config.DefaultWidgetSettings()
	s.DailyUsageLimit = 50
	s.GlobalUsageLimit = 1000
	s.MaxMessagesPerSession = 20

	assert.Equal(t, Limits{Daily: 50, Global: 1000, Session: 20}, LimitsFromSettings(s))
}
