package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/netgen/internal/domain"
	"github.com/boddenberg/netgen/internal/infra/observability"
)

// Gateway routes requests to one of several named backends and records
// config-generation statistics.
type Gateway struct {
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.RWMutex
	backends map[string]*Orchestrator
	def      string

	statsMu sync.Mutex
	stats   domain.GenerationStats
}

// NewGateway builds a gateway over backends. defaultName must be one of them.
func NewGateway(backends []*Orchestrator, defaultName string, metrics *observability.Metrics, logger *zap.Logger) (*Gateway, error) {
	if len(backends) == 0 {
		return nil, &domain.ErrConfig{Field: "backends", Message: "at least one backend is required"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewMetrics()
	}

	g := &Gateway{
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
		backends: make(map[string]*Orchestrator, len(backends)),
		stats:    domain.GenerationStats{Backends: map[string]domain.BackendCounts{}},
	}
	for _, b := range backends {
		if _, dup := g.backends[b.Name()]; dup {
			return nil, &domain.ErrConfig{Field: "backends", Message: "duplicate backend " + b.Name()}
		}
		g.backends[b.Name()] = b
	}
	if _, ok := g.backends[defaultName]; !ok {
		return nil, &domain.ErrConfig{Field: "default_backend", Message: "unknown backend " + defaultName}
	}
	g.def = defaultName
	return g, nil
}

// Backend resolves name to its orchestrator. An empty name selects the
// default backend.
func (g *Gateway) Backend(name string) (*Orchestrator, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if strings.TrimSpace(name) == "" {
		name = g.def
	}
	b, ok := g.backends[name]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "backend", ID: name}
	}
	return b, nil
}

// Default returns the name of the default backend.
func (g *Gateway) Default() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.def
}

// SetDefault switches the default backend.
func (g *Gateway) SetDefault(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.backends[name]; !ok {
		return &domain.ErrNotFound{Resource: "backend", ID: name}
	}
	if g.def != name {
		g.logger.Info("default backend switched", zap.String("from", g.def), zap.String("to", name))
	}
	g.def = name
	return nil
}

// Backends describes every configured backend, sorted by name.
func (g *Gateway) Backends() []domain.ProviderInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]domain.ProviderInfo, 0, len(g.backends))
	for name, b := range g.backends {
		info := b.Info()
		info.Default = name == g.def
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (g *Gateway) all() []*Orchestrator {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*Orchestrator, 0, len(g.backends))
	for _, b := range g.backends {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Generate runs prompt through the named backend.
func (g *Gateway) Generate(ctx context.Context, backend, prompt string) (domain.GenerationResult, error) {
	b, err := g.Backend(backend)
	if err != nil {
		return domain.GenerationResult{}, err
	}
	res := b.GenerateResult(ctx, prompt)
	return res, res.Err
}

// Validate reviews a configuration with the named backend.
func (g *Gateway) Validate(ctx context.Context, backend, text string) (*domain.ValidationReport, error) {
	b, err := g.Backend(backend)
	if err != nil {
		return nil, err
	}
	return b.Validate(ctx, text)
}

// GenerateNetworkConfig builds the generation prompt for req, generates the
// configuration, reviews it and records the outcome in the statistics.
func (g *Gateway) GenerateNetworkConfig(ctx context.Context, backend string, req domain.ConfigRequest) (*domain.ConfigResult, error) {
	ctx, span := tracer.Start(ctx, "Gateway.GenerateNetworkConfig")
	defer span.End()

	if strings.TrimSpace(req.Query) == "" {
		return nil, &domain.ErrValidation{Field: "query", Message: "must not be empty"}
	}
	if strings.TrimSpace(req.DeviceName) == "" {
		return nil, &domain.ErrValidation{Field: "device_name", Message: "must not be empty"}
	}
	if req.ConfigType == "" {
		req.ConfigType = "general"
	}

	b, err := g.Backend(backend)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("backend", b.Name()),
		attribute.String("device", req.DeviceName),
	)

	res := b.GenerateResult(ctx, BuildConfigPrompt(req))
	if res.Err != nil {
		g.record(b.Name(), false)
		return nil, res.Err
	}

	report, err := b.Validate(ctx, res.Text)
	if err != nil {
		g.record(b.Name(), false)
		return nil, err
	}
	g.record(b.Name(), report.IsValid)

	g.logger.Info("network config generated",
		zap.String("backend", b.Name()),
		zap.String("device", req.DeviceName),
		zap.String("config_type", req.ConfigType),
		zap.String("source", string(res.Source)),
	)

	return &domain.ConfigResult{
		DeviceName:    req.DeviceName,
		ConfigType:    req.ConfigType,
		ConfigContent: res.Text,
		Source:        res.Source,
		Validation:    report,
		Provider:      b.Info(),
		GeneratedAt:   g.now(),
	}, nil
}

func (g *Gateway) record(backend string, success bool) {
	g.statsMu.Lock()
	defer g.statsMu.Unlock()

	c := g.stats.Backends[backend]
	c.Total++
	g.stats.Total++
	if success {
		c.Success++
		g.stats.Success++
	} else {
		g.stats.Failed++
	}
	g.stats.Backends[backend] = c
}

// Statistics returns config-generation counts plus pipeline metrics.
func (g *Gateway) Statistics() domain.GenerationStats {
	g.statsMu.Lock()
	out := g.stats
	out.Backends = make(map[string]domain.BackendCounts, len(g.stats.Backends))
	for k, v := range g.stats.Backends {
		out.Backends[k] = v
	}
	g.statsMu.Unlock()

	if out.Total > 0 {
		out.SuccessRate = float64(out.Success) / float64(out.Total)
	}
	out.Pipeline = g.metrics.Snapshot()
	return out
}

// Health reports the endpoint health of every backend. The overall status is
// the worst backend status.
func (g *Gateway) Health() domain.HealthStatus {
	hs := domain.HealthStatus{Status: "healthy"}
	for _, b := range g.all() {
		bh := b.Status()
		hs.Backends = append(hs.Backends, bh)
		switch {
		case bh.Status == "synthetic":
			hs.Status = "synthetic"
		case bh.Status == "degraded" && hs.Status == "healthy":
			hs.Status = "degraded"
		}
	}
	return hs
}

// RefreshAll probes the endpoints of every backend.
func (g *Gateway) RefreshAll(ctx context.Context) {
	for _, b := range g.all() {
		if ctx.Err() != nil {
			return
		}
		b.RefreshHealth(ctx)
	}
}
