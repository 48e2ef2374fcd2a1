package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/boddenberg/netgen/internal/domain"
)

// Metrics holds all Prometheus metrics of the generation pipeline.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration    *prometheus.HistogramVec
	generations        *prometheus.CounterVec
	endpointErrors     *prometheus.CounterVec
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	rateWait           *prometheus.HistogramVec
	breakerTransitions *prometheus.CounterVec
	requestsTotal      *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "netgen_request_duration_seconds",
				Help:    "Duration of pipeline operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		generations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netgen_generations_total",
				Help: "Generations by backend and response source.",
			},
			[]string{"backend", "source"},
		),
		endpointErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netgen_endpoint_errors_total",
				Help: "Failed calls to backend endpoints.",
			},
			[]string{"backend", "endpoint"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netgen_cache_hits_total",
				Help: "Response cache hits.",
			},
			[]string{"backend"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netgen_cache_misses_total",
				Help: "Response cache misses.",
			},
			[]string{"backend"},
		),
		rateWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "netgen_rate_wait_seconds",
				Help:    "Time spent waiting for the request rate governor.",
				Buckets: []float64{0.001, 0.01, 0.1, 1, 5, 15, 30, 60},
			},
			[]string{"backend"},
		),
		breakerTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netgen_breaker_transitions_total",
				Help: "Circuit breaker state changes.",
			},
			[]string{"breaker", "to"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netgen_http_requests_total",
				Help: "Gateway requests by outcome.",
			},
			[]string{"status"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrGeneration counts one finished generation.
func (m *Metrics) IncrGeneration(backend string, source domain.GenerationSource) {
	m.generations.WithLabelValues(backend, string(source)).Inc()
}

// IncrEndpointError counts one failed endpoint call.
func (m *Metrics) IncrEndpointError(backend, endpoint string) {
	m.endpointErrors.WithLabelValues(backend, endpoint).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(backend string) {
	m.cacheHits.WithLabelValues(backend).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(backend string) {
	m.cacheMisses.WithLabelValues(backend).Inc()
}

// ObserveRateWait records how long a caller was held by the governor.
func (m *Metrics) ObserveRateWait(backend string, d time.Duration) {
	m.rateWait.WithLabelValues(backend).Observe(d.Seconds())
}

// IncrBreakerTransition counts a breaker moving into state to.
func (m *Metrics) IncrBreakerTransition(breaker, to string) {
	m.breakerTransitions.WithLabelValues(breaker, to).Inc()
}

// IncrRequest increments the request counter with a status label.
func (m *Metrics) IncrRequest(status string) {
	m.requestsTotal.WithLabelValues(status).Inc()
}

// Snapshot aggregates the pipeline counters across every backend.
func (m *Metrics) Snapshot() *domain.PipelineMetrics {
	provider := sumCounter(m.generations, "source", string(domain.SourceProvider))
	cached := sumCounter(m.generations, "source", string(domain.SourceCache))
	synthetic := sumCounter(m.generations, "source", string(domain.SourceSynthetic))
	total := provider + cached + synthetic

	hits := sumCounter(m.cacheHits, "", "")
	misses := sumCounter(m.cacheMisses, "", "")

	snap := &domain.PipelineMetrics{
		TotalGenerations:   int64(total),
		ProviderResponses:  int64(provider),
		CachedResponses:    int64(cached),
		SyntheticResponses: int64(synthetic),
		EndpointErrors:     int64(sumCounter(m.endpointErrors, "", "")),
		Period:             "all_time",
	}
	if hits+misses > 0 {
		snap.CacheHitRate = hits / (hits + misses)
	}
	if total > 0 {
		snap.SyntheticRate = synthetic / total
	}
	return snap
}

// sumCounter adds up every series of cv whose label name equals value.
// An empty name matches every series.
func sumCounter(cv *prometheus.CounterVec, name, value string) float64 {
	ch := make(chan prometheus.Metric)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	var total float64
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err != nil {
			continue
		}
		if name != "" && !hasLabel(m.GetLabel(), name, value) {
			continue
		}
		if m.Counter != nil && m.Counter.Value != nil {
			total += *m.Counter.Value
		}
	}
	return total
}

func hasLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, l := range labels {
		if l.GetName() == name {
			return l.GetValue() == value
		}
	}
	return false
}
