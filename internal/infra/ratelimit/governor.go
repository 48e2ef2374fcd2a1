// Package ratelimit provides advisory self-throttling of outbound requests.
// State is in-memory and per instance; nothing is coordinated across processes.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultWindow is the rolling window the request limit applies to.
const DefaultWindow = 60 * time.Second

// Governor bounds the number of requests issued in a trailing window.
type Governor struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu     sync.Mutex
	stamps []time.Time // ascending issuance times
}

// Option customises a Governor.
type Option func(*Governor)

// WithWindow overrides the rolling window.
func WithWindow(d time.Duration) Option {
	return func(g *Governor) {
		if d > 0 {
			g.window = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Governor) { g.now = now }
}

// NewGovernor creates a governor allowing maxRequests per window.
// A non-positive limit is clamped to 1.
func NewGovernor(maxRequests int, opts ...Option) *Governor {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	g := &Governor{
		limit:  maxRequests,
		window: DefaultWindow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WaitIfNeeded blocks until issuing a request keeps the trailing window at or
// below the limit, then records the request. The lock is released while
// sleeping so other callers are never blocked by this caller's wait.
// It only fails when ctx is done before capacity frees up.
func (g *Governor) WaitIfNeeded(ctx context.Context) error {
	for {
		wait, ok := g.reserve()
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve records a request if capacity allows; otherwise it returns how
// long until the oldest request leaves the window.
func (g *Governor) reserve() (time.Duration, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.prune(now)

	if len(g.stamps) < g.limit {
		g.stamps = append(g.stamps, now)
		return 0, true
	}

	wait := g.window - now.Sub(g.stamps[0])
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait, false
}

func (g *Governor) prune(now time.Time) {
	cutoff := now.Add(-g.window)
	i := 0
	for i < len(g.stamps) && !g.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		g.stamps = append(g.stamps[:0], g.stamps[i:]...)
	}
}

// InFlight returns how many requests are counted in the current window.
func (g *Governor) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prune(g.now())
	return len(g.stamps)
}

// Limit returns the configured request limit.
func (g *Governor) Limit() int {
	return g.limit
}
