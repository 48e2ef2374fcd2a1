package domain

import (
	"fmt"
	"strings"
	"time"
)

// ClientConfig is the immutable configuration of one logical backend.
type ClientConfig struct {
	Name         string        `json:"name"`
	Kind         BackendKind   `json:"kind"`
	APIKey       string        `json:"-"`
	Model        string        `json:"model"`
	MaxTokens    int           `json:"maxTokens"`
	Temperature  float64       `json:"temperature"`
	Timeout      time.Duration `json:"timeout"`
	MaxRetries   int           `json:"maxRetries"`
	RetryBackoff time.Duration `json:"retryBackoff"`
	SystemPrompt string        `json:"-"`

	MaxRequestsPerMinute int           `json:"maxRequestsPerMinute"`
	HealthCheckTimeout   time.Duration `json:"healthCheckTimeout"`
	MaxConcurrency       int           `json:"maxConcurrency"`

	EnableCaching  bool          `json:"enableCaching"`
	EnableFallback bool          `json:"enableFallback"`
	CacheSize      int           `json:"cacheSize"`
	CacheTTL       time.Duration `json:"cacheTTL"`

	Endpoints []EndpointSpec `json:"endpoints"`
}

// Validate checks the invariants every orchestrator relies on.
// The returned error is always an *ErrConfig.
func (c *ClientConfig) Validate() error {
	if !c.Kind.Valid() {
		return &ErrConfig{Field: "kind", Message: fmt.Sprintf("unsupported backend kind %q", c.Kind)}
	}
	if c.MaxRequestsPerMinute <= 0 {
		return &ErrConfig{Field: "max_requests_per_minute", Message: "must be greater than zero"}
	}
	if c.Timeout <= 0 {
		return &ErrConfig{Field: "timeout", Message: "must be greater than zero"}
	}
	if c.HealthCheckTimeout <= 0 {
		return &ErrConfig{Field: "health_check_timeout", Message: "must be greater than zero"}
	}
	if c.MaxRetries < 0 {
		return &ErrConfig{Field: "max_retries", Message: "must not be negative"}
	}
	if len(c.Endpoints) == 0 {
		return &ErrConfig{Field: "endpoints", Message: "at least one endpoint is required"}
	}

	seen := make(map[string]struct{}, len(c.Endpoints))
	for i, ep := range c.Endpoints {
		url := strings.TrimSpace(ep.URL)
		if url == "" {
			return &ErrConfig{Field: fmt.Sprintf("endpoints[%d].url", i), Message: "must not be empty"}
		}
		if _, dup := seen[url]; dup {
			return &ErrConfig{Field: fmt.Sprintf("endpoints[%d].url", i), Message: "duplicate endpoint " + url}
		}
		seen[url] = struct{}{}
	}
	return nil
}

// Endpoint looks up the spec registered under url.
func (c *ClientConfig) Endpoint(url string) (EndpointSpec, bool) {
	for _, ep := range c.Endpoints {
		if ep.URL == url {
			return ep, true
		}
	}
	return EndpointSpec{}, false
}
