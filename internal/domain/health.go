package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, synthetic
	Backends []BackendHealth `json:"backends"`
}

// BackendHealth represents the endpoint health of one backend.
type BackendHealth struct {
	Name            string           `json:"name"`
	Status          string           `json:"status"`
	PrimaryEndpoint string           `json:"primaryEndpoint,omitempty"`
	Endpoints       []EndpointHealth `json:"endpoints"`
}

// PipelineMetrics is returned as part of GET /v1/stats.
type PipelineMetrics struct {
	TotalGenerations   int64   `json:"totalGenerations"`
	ProviderResponses  int64   `json:"providerResponses"`
	CachedResponses    int64   `json:"cachedResponses"`
	SyntheticResponses int64   `json:"syntheticResponses"`
	EndpointErrors     int64   `json:"endpointErrors"`
	CacheHitRate       float64 `json:"cacheHitRate"`
	SyntheticRate      float64 `json:"syntheticRate"`
	Period             string  `json:"period"`
}
