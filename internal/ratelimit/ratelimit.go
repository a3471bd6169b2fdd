// Package ratelimit caps how many requests a key may make within a fixed
// window.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Limit defines a fixed-window cap. Zero values mean no limit.
type Limit struct {
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

// Enabled returns true if the limit is configured.
func (l Limit) Enabled() bool {
	return l.MaxRequests > 0 && l.Window > 0
}

// CheckResult is the outcome of a rate limit check.
type CheckResult struct {
	Exceeded bool
	Key      string
	Current  int
	Limit    int
	Reason   string
}

// Check compares the current count against the limit.
func Check(count int, limit Limit) CheckResult {
	if !limit.Enabled() {
		return CheckResult{}
	}
	if count >= limit.MaxRequests {
		return CheckResult{
			Exceeded: true,
			Current:  count,
			Limit:    limit.MaxRequests,
			Reason: fmt.Sprintf("rate limit exceeded: %d/%d requests in %s window",
				count, limit.MaxRequests, limit.Window),
		}
	}
	return CheckResult{}
}

type window struct {
	start time.Time
	count int
}

// Tracker counts requests per key.
type Tracker struct {
	limit   Limit
	windows map[string]*window
	mu      sync.Mutex
}

// NewTracker creates a tracker enforcing limit. A disabled limit allows
// everything.
func NewTracker(limit Limit) *Tracker {
	return &Tracker{limit: limit, windows: make(map[string]*window)}
}

// Limit returns the configured limit.
func (t *Tracker) Limit() Limit {
	return t.limit
}

// Snapshot reads the current count for key. An expired window is reset.
func (t *Tracker) Snapshot(key string, now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current(key, now).count
}

// Allow checks key against the limit and, when within it, counts the
// request.
func (t *Tracker) Allow(key string, now time.Time) CheckResult {
	if !t.limit.Enabled() {
		return CheckResult{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	w := t.current(key, now)
	result := Check(w.count, t.limit)
	if result.Exceeded {
		result.Key = key
		return result
	}
	w.count++
	return result
}

// Sweep drops windows that have expired at now and returns how many.
func (t *Tracker) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for key, w := range t.windows {
		if now.Sub(w.start) >= t.limit.Window {
			delete(t.windows, key)
			n++
		}
	}
	return n
}

// Len returns the number of tracked keys.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.windows)
}

func (t *Tracker) current(key string, now time.Time) *window {
	w, ok := t.windows[key]
	if !ok || now.Sub(w.start) >= t.limit.Window {
		w = &window{start: now}
		t.windows[key] = w
	}
	return w
}
