package clock

import "time"

// Clock abstracts wall time so day boundaries and retention cutoffs are testable.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
