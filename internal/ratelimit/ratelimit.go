// Package ratelimit provides an in-memory sliding-window rate limiter with
// separate per-minute and per-day budgets.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

const (
	minuteWindow = time.Minute
	dayWindow    = 24 * time.Hour
)

// Limiter counts calls against a per-minute and a per-day budget using
// sliding windows of call timestamps. All methods are safe for concurrent
// use; one mutex keeps every prune-compare(-append) sequence atomic.
type Limiter struct {
	name      string
	perMinute int
	perDay    int

	mu     sync.Mutex
	minute []time.Time
	day    []time.Time
	now    func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the limiter's time source. Tests use this to slide
// the windows without sleeping.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New returns a limiter named after the upstream resource it guards.
// A budget of 0 admits nothing.
func New(name string, perMinute, perDay int, opts ...Option) *Limiter {
	l := &Limiter{
		name:      name,
		perMinute: perMinute,
		perDay:    perDay,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name returns the upstream resource this limiter guards.
func (l *Limiter) Name() string { return l.name }

// Check reports whether one more call fits inside both budgets. Expired
// timestamps are pruned first, so capacity frees up purely from time
// passing even when no calls arrive. The reason names the limiter and the
// exhausted bound and is empty when the call is allowed. Check never
// counts the call; pair it with Record.
func (l *Limiter) Check() (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())

	if len(l.minute) >= l.perMinute {
		return false, fmt.Sprintf("%s rate limit exceeded: %d/minute", l.name, l.perMinute)
	}
	if len(l.day) >= l.perDay {
		return false, fmt.Sprintf("%s rate limit exceeded: %d/day", l.name, l.perDay)
	}
	return true, ""
}

// Record counts one admitted call against both windows. Callers record at
// most once per allowed Check and never for denied calls.
func (l *Limiter) Record() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.minute = append(l.minute, now)
	l.day = append(l.day, now)
}

// Status reports current usage against both budgets after pruning. It has
// no effect on later Check outcomes beyond that pruning.
func (l *Limiter) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return Status{
		MinuteUsed:  len(l.minute),
		MinuteLimit: l.perMinute,
		DayUsed:     len(l.day),
		DayLimit:    l.perDay,
	}
}

// prune drops timestamps that have aged out of each window. Timestamps
// exactly at the window boundary still count. Caller holds mu.
func (l *Limiter) prune(now time.Time) {
	l.minute = dropBefore(l.minute, now.Add(-minuteWindow))
	l.day = dropBefore(l.day, now.Add(-dayWindow))
}

func dropBefore(window []time.Time, cutoff time.Time) []time.Time {
	for len(window) > 0 && window[0].Before(cutoff) {
		window = window[1:]
	}
	return window
}

// Status is a diagnostics snapshot of one limiter.
type Status struct {
	MinuteUsed  int `json:"minute_used"`
	MinuteLimit int `json:"minute_limit"`
	DayUsed     int `json:"day_used"`
	DayLimit    int `json:"day_limit"`
}
