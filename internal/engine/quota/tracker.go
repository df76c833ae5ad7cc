// internal/engine/quota/tracker.go
package quota

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"creator-match/internal/common/metrics"
)

var (
	ErrQuotaExceeded = errors.New("quota exceeded")
	ErrInvalidCost   = errors.New("quota cost must not be negative")

	// ErrProviderExhausted is wrapped by provider clients when the upstream
	// API reports its own quota spent, whatever the local count says.
	ErrProviderExhausted = errors.New("provider quota exhausted")
)

// Token is proof of a reservation. Release refunds it at most once and only
// inside the window it was taken from.
type Token struct {
	cost     int
	window   time.Time
	released bool
}

func (t *Token) Cost() int {
	if t == nil {
		return 0
	}
	return t.cost
}

// Tracker counts consumption of a provider's daily budget. The window rolls
// over every day at resetHour UTC.
type Tracker struct {
	name      string
	budget    int
	resetHour int
	now       func() time.Time

	mu          sync.Mutex
	used        int
	exhausted   bool
	windowStart time.Time
}

type Option func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

func New(name string, budget, resetHourUTC int, opts ...Option) (*Tracker, error) {
	if budget < 0 {
		return nil, fmt.Errorf("quota %s: budget must not be negative", name)
	}
	if resetHourUTC < 0 || resetHourUTC > 23 {
		return nil, fmt.Errorf("quota %s: reset hour must be within 0-23", name)
	}
	t := &Tracker{
		name:      name,
		budget:    budget,
		resetHour: resetHourUTC,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.windowStart = t.windowFor(t.now())
	metrics.QuotaRemaining.WithLabelValues(name).Set(float64(budget))
	return t, nil
}

func (t *Tracker) Name() string { return t.name }

func (t *Tracker) Budget() int { return t.budget }

// Reserve takes cost units or fails immediately with ErrQuotaExceeded.
func (t *Tracker) Reserve(cost int) (*Token, error) {
	if cost < 0 {
		return nil, ErrInvalidCost
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollLocked()
	if t.exhausted || t.budget-t.used < cost {
		metrics.QuotaReservations.WithLabelValues(t.name, "denied").Inc()
		return nil, fmt.Errorf("%s: need %d, have %d: %w", t.name, cost, t.budget-t.used, ErrQuotaExceeded)
	}
	t.used += cost
	metrics.QuotaReservations.WithLabelValues(t.name, "granted").Inc()
	metrics.QuotaRemaining.WithLabelValues(t.name).Set(float64(t.budget - t.used))
	return &Token{cost: cost, window: t.windowStart}, nil
}

// Release refunds a reservation whose downstream call failed.
func (t *Tracker) Release(token *Token) {
	if token == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollLocked()
	if token.released || t.exhausted || !token.window.Equal(t.windowStart) {
		return
	}
	token.released = true
	t.used -= token.cost
	metrics.QuotaReservations.WithLabelValues(t.name, "released").Inc()
	metrics.QuotaRemaining.WithLabelValues(t.name).Set(float64(t.budget - t.used))
}

func (t *Tracker) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollLocked()
	if t.exhausted {
		return 0
	}
	return t.budget - t.used
}

// Exhaust spends the rest of the current window. Reservations are denied
// and refunds ignored until the next reset.
func (t *Tracker) Exhaust() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollLocked()
	if t.exhausted {
		return
	}
	t.exhausted = true
	metrics.QuotaReservations.WithLabelValues(t.name, "exhausted").Inc()
	metrics.QuotaRemaining.WithLabelValues(t.name).Set(0)
}

// ResetsAt returns the end of the current window.
func (t *Tracker) ResetsAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollLocked()
	return t.windowStart.Add(24 * time.Hour)
}

func (t *Tracker) rollLocked() {
	start := t.windowFor(t.now())
	if start.After(t.windowStart) {
		t.windowStart = start
		t.used = 0
		t.exhausted = false
		metrics.QuotaRemaining.WithLabelValues(t.name).Set(float64(t.budget))
	}
}

func (t *Tracker) windowFor(now time.Time) time.Time {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), t.resetHour, 0, 0, 0, time.UTC)
	if now.Before(start) {
		start = start.AddDate(0, 0, -1)
	}
	return start
}
