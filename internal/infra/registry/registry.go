// Package registry keeps the ordered set of candidate endpoints of one
// backend together with the orchestrator's health marks.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/boddenberg/netgen/internal/domain"
)

type entry struct {
	spec      domain.EndpointSpec
	healthy   bool
	markedAt  time.Time
	insertion int
}

// Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	seq     int
	now     func() time.Time
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// AddEndpoint registers spec, optimistically healthy. Registering a url
// again replaces its spec in place and keeps its health mark.
func (r *Registry) AddEndpoint(spec domain.EndpointSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[spec.URL]; ok {
		e.spec = spec
		return
	}
	r.seq++
	r.entries[spec.URL] = &entry{
		spec:      spec,
		healthy:   true,
		markedAt:  r.now(),
		insertion: r.seq,
	}
}

// MarkHealth overwrites the health mark of url. Unknown urls are ignored.
func (r *Registry) MarkHealth(url string, healthy bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[url]; ok {
		e.healthy = healthy
		e.markedAt = r.now()
	}
}

// PrimaryEndpoint returns the highest-priority healthy endpoint.
// ok is false when no endpoint is healthy.
func (r *Registry) PrimaryEndpoint() (domain.EndpointSpec, bool) {
	primary, ok, _ := r.Select()
	return primary, ok
}

// FallbackEndpoints returns every registered endpoint except the primary,
// by ascending priority.
func (r *Registry) FallbackEndpoints() []domain.EndpointSpec {
	_, _, fallbacks := r.Select()
	return fallbacks
}

// Select returns the primary and the fallback sequence from one consistent
// view of the registry. Without a healthy endpoint every endpoint is a
// fallback candidate and ok is false.
func (r *Registry) Select() (primary domain.EndpointSpec, ok bool, fallbacks []domain.EndpointSpec) {
	r.mu.RLock()
	ordered := r.sorted()
	r.mu.RUnlock()

	idx := -1
	for i, e := range ordered {
		if e.healthy {
			idx = i
			break
		}
	}

	fallbacks = make([]domain.EndpointSpec, 0, len(ordered))
	for i, e := range ordered {
		if i == idx {
			continue
		}
		fallbacks = append(fallbacks, e.spec)
	}
	if idx < 0 {
		return domain.EndpointSpec{}, false, fallbacks
	}
	return ordered[idx].spec, true, fallbacks
}

// Endpoints returns the health marks of every endpoint by ascending priority.
func (r *Registry) Endpoints() []domain.EndpointHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ordered := r.sorted()
	out := make([]domain.EndpointHealth, 0, len(ordered))
	for _, e := range ordered {
		out = append(out, domain.EndpointHealth{
			URL:           e.spec.URL,
			Priority:      e.spec.Priority,
			Healthy:       e.healthy,
			LastCheckedAt: e.markedAt,
		})
	}
	return out
}

// Len returns the number of registered endpoints.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// sorted copies the entries ordered by priority, then registration order.
// Callers must hold r.mu.
func (r *Registry) sorted() []entry {
	out := make([]entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].spec.Priority != out[j].spec.Priority {
			return out[i].spec.Priority < out[j].spec.Priority
		}
		return out[i].insertion < out[j].insertion
	})
	return out
}
