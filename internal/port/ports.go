// Package port defines the interfaces (ports) between the orchestrator and
// its collaborators. Following hexagonal architecture, these ports decouple
// the service layer from concrete adapters, trackers and caches.
package port

import (
	"context"

	"github.com/boddenberg/netgen/internal/domain"
)

// ProviderAdapter translates a prompt into one backend's wire format.
// Every failure is reported as a *domain.ErrTransport.
type ProviderAdapter interface {
	Call(ctx context.Context, prompt string, endpoint domain.EndpointSpec, cfg *domain.ClientConfig) (string, error)
}

// AdapterFactory resolves the adapter for a backend kind. Unknown kinds
// yield a *domain.ErrConfig.
type AdapterFactory func(kind domain.BackendKind) (ProviderAdapter, error)

// HealthChecker reports endpoint liveness. IsHealthy may answer from cache,
// Probe always hits the network.
type HealthChecker interface {
	IsHealthy(ctx context.Context, url string) bool
	Probe(ctx context.Context, url string) bool
}

// RateGate blocks until an outbound request may be issued.
type RateGate interface {
	WaitIfNeeded(ctx context.Context) error
}

// FallbackGenerator produces text without any network access. It never fails.
type FallbackGenerator interface {
	Generate(prompt string) string
}

// Cache provides generic bounded caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
