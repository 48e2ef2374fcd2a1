package domain

import "fmt"

// Error types for consistent error handling across the pipeline.

// ErrTransport indicates a failed call to a backend endpoint: non-2xx status,
// connection error, timeout or an unusable response body.
type ErrTransport struct {
	Backend    string
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *ErrTransport) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport error [%s %s]: status %d: %v", e.Backend, e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport error [%s %s]: %v", e.Backend, e.Endpoint, e.Err)
}

func (e *ErrTransport) Unwrap() error {
	return e.Err
}

// ErrNoHealthyEndpoint indicates the registry had no endpoint marked healthy.
type ErrNoHealthyEndpoint struct {
	Backend string
}

func (e *ErrNoHealthyEndpoint) Error() string {
	return fmt.Sprintf("no healthy endpoint available for backend: %s", e.Backend)
}

// ErrConfig indicates an operator or programmer mistake in a ClientConfig.
// It is the only error class the pipeline surfaces to callers.
type ErrConfig struct {
	Field   string
	Message string
}

func (e *ErrConfig) Error() string {
	return fmt.Sprintf("configuration error on '%s': %s", e.Field, e.Message)
}

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}
