// Package ratelimit provides in-memory sliding-window limiters.
package ratelimit

import (
	"sync"
	"time"
)

// Window is a sliding-window limiter for a single subject (one connection, one IP).
type Window struct {
	mu     sync.Mutex
	events []time.Time
	limit  int
	window time.Duration
}

// NewWindow constructs a Window. Non-positive inputs fall back to 1 event per second.
func NewWindow(limit int, window time.Duration) *Window {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &Window{
		events: make([]time.Time, 0, limit+8),
		limit:  limit,
		window: window,
	}
}

// Allow reports whether an event at time "now" should be permitted.
func (r *Window) Allow(now time.Time) bool {
	ok, _ := r.Reserve(now)
	return ok
}

// Reserve is Allow that also reports how long until the oldest event leaves the window.
func (r *Window) Reserve(now time.Time) (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneLocked(now)

	if len(r.events) >= r.limit {
		return false, r.events[0].Add(r.window).Sub(now)
	}
	r.events = append(r.events, now)
	return true, 0
}

func (r *Window) idle(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneLocked(now)
	return len(r.events) == 0
}

func (r *Window) pruneLocked(now time.Time) {
	cut := now.Add(-r.window)
	dst := r.events[:0]
	for _, t := range r.events {
		if t.After(cut) {
			dst = append(dst, t)
		}
	}
	r.events = dst
}

// Keyed keeps one Window per key (client IP). Idle windows are dropped lazily.
type Keyed struct {
	mu      sync.Mutex
	windows map[string]*Window
	limit   int
	window  time.Duration

	calls int
}

// gcEvery controls how often Allow scans for idle keys.
const gcEvery = 1024

// NewKeyed constructs a Keyed limiter. limit <= 0 disables limiting.
func NewKeyed(limit int, window time.Duration) *Keyed {
	return &Keyed{
		windows: make(map[string]*Window),
		limit:   limit,
		window:  window,
	}
}

// Enabled reports whether the limiter enforces anything.
func (k *Keyed) Enabled() bool { return k != nil && k.limit > 0 }

// Allow records an event for key. Empty keys are never limited.
func (k *Keyed) Allow(key string, now time.Time) (bool, time.Duration) {
	if !k.Enabled() || key == "" {
		return true, 0
	}

	k.mu.Lock()
	k.calls++
	if k.calls%gcEvery == 0 {
		k.gcLocked(now)
	}
	w, ok := k.windows[key]
	if !ok {
		w = NewWindow(k.limit, k.window)
		k.windows[key] = w
	}
	k.mu.Unlock()

	return w.Reserve(now)
}

// Len returns the number of tracked keys.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.windows)
}

func (k *Keyed) gcLocked(now time.Time) {
	for key, w := range k.windows {
		if w.idle(now) {
			delete(k.windows, key)
		}
	}
}
