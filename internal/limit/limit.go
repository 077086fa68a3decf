// Package limit decides whether a visitor may keep talking to the assistant.
package limit

import "github.com/smallbiznis/voiceassist/internal/config"

type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonDailyLimitExceeded   Reason = "daily_limit_exceeded"
	ReasonGlobalLimitExceeded  Reason = "global_limit_exceeded"
	ReasonSessionLimitExceeded Reason = "session_limit_exceeded"
	ReasonInternalError        Reason = "internal_error"
)

// Unlimited is reported as Remaining for scopes without a limit.
const Unlimited int64 = -1

// Counts are message totals per scope.
type Counts struct {
	Daily   int64
	Global  int64
	Session int64
}

// Limits are maximum message totals per scope; zero or less means unlimited.
type Limits struct {
	Daily   int64
	Global  int64
	Session int64
}

func LimitsFromSettings(s config.WidgetSettings) Limits {
	return Limits{
		Daily:   s.DailyUsageLimit,
		Global:  s.GlobalUsageLimit,
		Session: s.MaxMessagesPerSession,
	}
}

type Check struct {
	Allowed      bool  `json:"allowed"`
	CurrentCount int64 `json:"current_count"`
	Remaining    int64 `json:"remaining"`
	Limit        int64 `json:"limit"`
}

type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason,omitempty"`
	Daily   Check  `json:"daily"`
	Global  Check  `json:"global"`
	Session Check  `json:"session"`
}

// CheckScope evaluates one scope. A count equal to the limit is already over it.
func CheckScope(count, max int64) Check {
	if max <= 0 {
		return Check{Allowed: true, CurrentCount: count, Remaining: Unlimited, Limit: 0}
	}
	remaining := max - count
	if remaining < 0 {
		remaining = 0
	}
	return Check{
		Allowed:      count < max,
		CurrentCount: count,
		Remaining:    remaining,
		Limit:        max,
	}
}

// Evaluate checks daily, then global, then session. Every scope is reported;
// the reason names the first scope that failed.
func Evaluate(counts Counts, limits Limits) Decision {
	d := Decision{
		Daily:   CheckScope(counts.Daily, limits.Daily),
		Global:  CheckScope(counts.Global, limits.Global),
		Session: CheckScope(counts.Session, limits.Session),
	}

	switch {
	case !d.Daily.Allowed:
		d.Reason = ReasonDailyLimitExceeded
	case !d.Global.Allowed:
		d.Reason = ReasonGlobalLimitExceeded
	case !d.Session.Allowed:
		d.Reason = ReasonSessionLimitExceeded
	default:
		d.Allowed = true
	}
	return d
}

// FailClosed is returned when counts could not be read.
func FailClosed() Decision {
	denied := Check{Allowed: false}
	return Decision{
		Allowed: false,
		Reason:  ReasonInternalError,
		Daily:   denied,
		Global:  denied,
		Session: denied,
	}
}
