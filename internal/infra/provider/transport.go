// Package provider contains one adapter per backend wire format. Adapters
// are stateless: endpoint, credential and generation parameters arrive with
// every call.
package provider

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("provider")

// ClientPool hands out HTTP clients keyed by TLS verification and timeout.
// Lab endpoints often serve self-signed certificates, so verification is an
// endpoint-level choice rather than a process-wide one.
type ClientPool struct {
	clients sync.Map // poolKey -> *http.Client
	group   singleflight.Group
}

type poolKey struct {
	verify  bool
	timeout time.Duration
}

// NewClientPool creates an empty pool.
func NewClientPool() *ClientPool {
	return &ClientPool{}
}

// Client returns the shared client for (verify, timeout), building it once.
func (p *ClientPool) Client(verify bool, timeout time.Duration) *http.Client {
	key := poolKey{verify: verify, timeout: timeout}
	if c, ok := p.clients.Load(key); ok {
		return c.(*http.Client)
	}

	v, _, _ := p.group.Do(fmt.Sprintf("%t/%s", verify, timeout), func() (any, error) {
		if c, ok := p.clients.Load(key); ok {
			return c, nil
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if !verify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // per-endpoint opt-out
		}
		c := &http.Client{Timeout: timeout, Transport: transport}
		p.clients.Store(key, c)
		return c, nil
	})
	return v.(*http.Client)
}

// Len returns the number of distinct clients built so far.
func (p *ClientPool) Len() int {
	n := 0
	p.clients.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
