package domain

import (
	"strings"
	"time"
)

// BackendKind selects the wire format an endpoint speaks.
// Everything except request/response translation is kind-agnostic.
type BackendKind string

const (
	// BackendOpenAI is the hosted chat-completions shape (message array).
	BackendOpenAI BackendKind = "openai"
	// BackendAnthropic is the hosted messages shape.
	BackendAnthropic BackendKind = "anthropic"
	// BackendOllama is the local daemon shape (flat prompt field).
	BackendOllama BackendKind = "ollama"
	// BackendGeneric posts a raw prompt to the endpoint URL itself.
	BackendGeneric BackendKind = "generic"
)

// Valid reports whether k is one of the supported kinds.
func (k BackendKind) Valid() bool {
	switch k {
	case BackendOpenAI, BackendAnthropic, BackendOllama, BackendGeneric:
		return true
	}
	return false
}

// ParseBackendKind maps a configuration string onto a BackendKind.
// "local" is accepted as an alias of the generic HTTP kind.
func ParseBackendKind(s string) (BackendKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai":
		return BackendOpenAI, nil
	case "anthropic":
		return BackendAnthropic, nil
	case "ollama":
		return BackendOllama, nil
	case "generic", "local", "http":
		return BackendGeneric, nil
	}
	return "", &ErrConfig{Field: "kind", Message: "unsupported backend kind " + strings.TrimSpace(s)}
}

// ============================================================
// Endpoints
// ============================================================

// EndpointSpec describes one network address implementing a backend.
// URL is the identity of the endpoint inside a registry.
type EndpointSpec struct {
	URL       string `json:"url" yaml:"url"`
	Priority  int    `json:"priority" yaml:"priority"` // lower = preferred
	APIKey    string `json:"-" yaml:"api_key"`         // overrides ClientConfig.APIKey when set
	VerifySSL bool   `json:"verify_ssl" yaml:"verify_ssl"`
}

// Credential returns the endpoint override if present, else def.
func (e EndpointSpec) Credential(def string) string {
	if e.APIKey != "" {
		return e.APIKey
	}
	return def
}

// EndpointHealth is the last known verdict for an endpoint.
type EndpointHealth struct {
	URL           string    `json:"url"`
	Priority      int       `json:"priority,omitempty"`
	Healthy       bool      `json:"healthy"`
	LastCheckedAt time.Time `json:"lastCheckedAt"`
}
