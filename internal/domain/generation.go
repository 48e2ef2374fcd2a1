package domain

import "time"

// GenerationSource tells where the text of a GenerationResult came from.
type GenerationSource string

const (
	SourceProvider  GenerationSource = "provider"
	SourceCache     GenerationSource = "cache"
	SourceSynthetic GenerationSource = "synthetic"
)

// GenerationResult is the outcome of one pass through the pipeline.
// Err is only ever a configuration error.
type GenerationResult struct {
	Text     string           `json:"text"`
	Source   GenerationSource `json:"source"`
	Endpoint string           `json:"endpoint,omitempty"`
	Err      error            `json:"-"`
}

// ModelVerdict is the structured answer a model may embed in its
// validation commentary. It is informational only.
type ModelVerdict struct {
	IsValid     bool     `json:"is_valid"`
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
	Suggestions []string `json:"suggestions"`
}

// ValidationReport is returned by the validate pipeline.
type ValidationReport struct {
	IsValid  bool             `json:"isValid"`
	Errors   []string         `json:"errors"`
	Warnings []string         `json:"warnings"`
	Detail   string           `json:"detail,omitempty"`
	Source   GenerationSource `json:"source,omitempty"`
	Verdict  *ModelVerdict    `json:"verdict,omitempty"`
}

// ============================================================
// Network config generation
// ============================================================

// ConfigRequest asks for a device configuration of a given type.
type ConfigRequest struct {
	Query      string         `json:"query"`
	DeviceName string         `json:"device_name"`
	ConfigType string         `json:"config_type"`
	Context    *PromptContext `json:"context,omitempty"`
}

// PromptContext carries knowledge-base hits that enrich the prompt.
type PromptContext struct {
	RelevantDevices   []string `json:"relevant_devices,omitempty"`
	RelevantPolicies  []string `json:"relevant_policies,omitempty"`
	RelevantTemplates []string `json:"relevant_templates,omitempty"`
}

// ConfigResult is the answer to a ConfigRequest.
type ConfigResult struct {
	DeviceName    string            `json:"device_name"`
	ConfigType    string            `json:"config_type"`
	ConfigContent string            `json:"config_content"`
	Source        GenerationSource  `json:"source"`
	Validation    *ValidationReport `json:"validation_result"`
	Provider      ProviderInfo      `json:"provider_info"`
	GeneratedAt   time.Time         `json:"generation_time"`
}

// ProviderInfo describes one configured backend.
type ProviderInfo struct {
	Name            string        `json:"name"`
	Kind            BackendKind   `json:"kind"`
	Model           string        `json:"model"`
	MaxTokens       int           `json:"maxTokens"`
	Temperature     float64       `json:"temperature"`
	Timeout         time.Duration `json:"timeout"`
	PrimaryEndpoint string        `json:"primaryEndpoint,omitempty"`
	CacheEnabled    bool          `json:"cacheEnabled"`
	FallbackEnabled bool          `json:"fallbackEnabled"`
	Default         bool          `json:"default"`
}

// GenerationStats summarises config generations per backend.
type GenerationStats struct {
	Total       int64                    `json:"total"`
	Success     int64                    `json:"success"`
	Failed      int64                    `json:"failed"`
	SuccessRate float64                  `json:"successRate"`
	Backends    map[string]BackendCounts `json:"backends"`
	Pipeline    *PipelineMetrics         `json:"pipeline,omitempty"`
}

// BackendCounts is the per-backend share of GenerationStats.
type BackendCounts struct {
	Total   int64 `json:"total"`
	Success int64 `json:"success"`
}
