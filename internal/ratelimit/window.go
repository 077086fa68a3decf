package ratelimit

import (
	"sync"
	"time"

	"github.com/smallbiznis/voiceassist/internal/clock"
)

// WindowLimiter is a fixed-window counter kept in process memory.
type WindowLimiter struct {
	limit  int
	window time.Duration
	clock  clock.Clock

	mu    sync.Mutex
	items map[string]*windowEntry
	swept time.Time
}

type windowEntry struct {
	windowStart time.Time
	count       int
}

func NewWindowLimiter(limit int, window time.Duration, clk clock.Clock) *WindowLimiter {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &WindowLimiter{
		limit:  limit,
		window: window,
		clock:  clk,
		items:  make(map[string]*windowEntry),
	}
}

// Allow counts one hit for key. The returned duration is how long until the
// current window closes.
func (w *WindowLimiter) Allow(key string) (bool, time.Duration) {
	if key == "" {
		return false, 0
	}

	now := w.clock.Now()
	w.mu.Lock()
	defer w.mu.Unlock()

	w.sweep(now)

	entry := w.items[key]
	if entry == nil || now.Sub(entry.windowStart) >= w.window {
		entry = &windowEntry{windowStart: now}
		w.items[key] = entry
	}

	if entry.count >= w.limit {
		return false, entry.windowStart.Add(w.window).Sub(now)
	}

	entry.count++
	return true, 0
}

// sweep drops expired windows at most once per window.
func (w *WindowLimiter) sweep(now time.Time) {
	if now.Sub(w.swept) < w.window {
		return
	}
	for key, entry := range w.items {
		if now.Sub(entry.windowStart) >= w.window {
			delete(w.items, key)
		}
	}
	w.swept = now
}
