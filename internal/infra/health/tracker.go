// Package health probes endpoint liveness and caches the verdicts briefly
// so that a dead endpoint is not hammered with probes.
package health

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/netgen/internal/domain"

	"go.uber.org/zap"
)

// DefaultTTL is how long a probe verdict is trusted.
const DefaultTTL = 30 * time.Second

// Tracker is a per-orchestrator endpoint health cache.
type Tracker struct {
	client *http.Client
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[string]domain.EndpointHealth
}

// Option customises a Tracker.
type Option func(*Tracker)

// WithTTL overrides how long verdicts are cached.
func WithTTL(d time.Duration) Option {
	return func(t *Tracker) { t.ttl = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// NewTracker creates a tracker whose probes give up after timeout.
// Probes skip TLS verification: lab gear commonly serves self-signed certs.
func NewTracker(timeout time.Duration, opts ...Option) *Tracker {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // probe only

	t := &Tracker{
		client:  &http.Client{Timeout: timeout, Transport: transport},
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  zap.NewNop(),
		entries: make(map[string]domain.EndpointHealth),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// IsHealthy returns the cached verdict for url if it is fresh, otherwise
// probes. Probe failures count as unhealthy and are never returned as errors.
func (t *Tracker) IsHealthy(ctx context.Context, url string) bool {
	t.mu.RLock()
	h, ok := t.entries[url]
	t.mu.RUnlock()

	if ok && t.now().Sub(h.LastCheckedAt) < t.ttl {
		return h.Healthy
	}
	return t.Probe(ctx, url)
}

// Probe hits {url}/health and records the verdict. Concurrent probes of the
// same url may both run; the last one to finish wins. A check cut short by
// ctx reports false and records nothing.
func (t *Tracker) Probe(ctx context.Context, url string) bool {
	healthy := t.probe(ctx, url)
	if !healthy && ctx.Err() != nil {
		t.logger.Debug("health: check abandoned", zap.String("endpoint", url), zap.Error(ctx.Err()))
		return false
	}

	t.mu.Lock()
	t.entries[url] = domain.EndpointHealth{
		URL:           url,
		Healthy:       healthy,
		LastCheckedAt: t.now(),
	}
	t.mu.Unlock()

	return healthy
}

func (t *Tracker) probe(ctx context.Context, url string) bool {
	probeURL := strings.TrimRight(url, "/") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		t.logger.Debug("health: invalid probe url", zap.String("endpoint", url), zap.Error(err))
		return false
	}

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Debug("health: probe failed", zap.String("endpoint", url), zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		t.logger.Debug("health: probe returned non-200",
			zap.String("endpoint", url),
			zap.Int("status", resp.StatusCode),
		)
		return false
	}
	return true
}

// Snapshot returns all cached verdicts ordered by url.
func (t *Tracker) Snapshot() []domain.EndpointHealth {
	t.mu.RLock()
	out := make([]domain.EndpointHealth, 0, len(t.entries))
	for _, h := range t.entries {
		out = append(out, h)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}
