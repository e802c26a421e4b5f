package ratelimit

import (
	"sync"
	"time"
)

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

// WeightWindow is a fixed-reset weight budget.
//
// Once the edge has passed, the next Admit resets the budget and always admits,
// even when the cost exceeds the basic weight. Remaining may therefore go negative.
type WeightWindow struct {
	mu        sync.Mutex
	basic     int
	interval  time.Duration
	remaining int
	edge      time.Time
	clock     Clock
}

// NewWeightWindow creates a window whose edge is already elapsed,
// so the first Admit starts a fresh interval.
func NewWeightWindow(basic int, interval time.Duration, clock Clock) *WeightWindow {
	if clock == nil {
		clock = time.Now
	}
	return &WeightWindow{
		basic:     basic,
		interval:  interval,
		remaining: basic,
		clock:     clock,
	}
}

// Admit charges cost against the window and reports whether the request may proceed.
// A denial leaves the window untouched.
func (w *WeightWindow) Admit(cost int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock()
	if now.After(w.edge) {
		w.remaining = w.basic - cost
		w.edge = now.Add(w.interval)
		return true
	}
	if w.remaining >= cost {
		w.remaining -= cost
		return true
	}
	return false
}

// Remaining returns the weight left in the current interval.
func (w *WeightWindow) Remaining() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.remaining
}

// Edge returns the instant after which the window resets.
func (w *WeightWindow) Edge() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.edge
}

// Basic returns the budget the window resets to.
func (w *WeightWindow) Basic() int {
	return w.basic
}
