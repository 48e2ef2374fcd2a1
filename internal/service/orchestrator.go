package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/boddenberg/netgen/internal/domain"
	"github.com/boddenberg/netgen/internal/infra/cache"
	"github.com/boddenberg/netgen/internal/infra/health"
	"github.com/boddenberg/netgen/internal/infra/observability"
	"github.com/boddenberg/netgen/internal/infra/provider"
	"github.com/boddenberg/netgen/internal/infra/ratelimit"
	"github.com/boddenberg/netgen/internal/infra/registry"
	"github.com/boddenberg/netgen/internal/infra/resilience"
	"github.com/boddenberg/netgen/internal/infra/synthetic"
	"github.com/boddenberg/netgen/internal/port"
)

var tracer = otel.Tracer("service/orchestrator")

// DefaultMaxConcurrency caps in-flight endpoint calls per backend when the
// config leaves it unset.
const DefaultMaxConcurrency = 16

// refreshParallelism bounds concurrent probes in RefreshHealth.
const refreshParallelism = 8

// Orchestrator drives one backend's requests through cache, rate governor,
// endpoint selection, failover and synthetic fallback. Every instance owns
// its own health, rate and cache state.
type Orchestrator struct {
	cfg domain.ClientConfig

	adapters port.AdapterFactory
	health   port.HealthChecker
	rate     port.RateGate
	fallback port.FallbackGenerator
	store    port.Cache[string]
	cache    *cache.ResponseCache

	registry *registry.Registry
	breakers map[string]*gobreaker.CircuitBreaker
	bulkhead *resilience.Bulkhead
	retry    resilience.Config

	metrics *observability.Metrics
	logger  *zap.Logger
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithAdapterFactory overrides how adapters are resolved.
func WithAdapterFactory(f port.AdapterFactory) Option {
	return func(o *Orchestrator) { o.adapters = f }
}

// WithHealthChecker overrides the endpoint health tracker.
func WithHealthChecker(h port.HealthChecker) Option {
	return func(o *Orchestrator) { o.health = h }
}

// WithRateGate overrides the request rate governor.
func WithRateGate(g port.RateGate) Option {
	return func(o *Orchestrator) { o.rate = g }
}

// WithFallbackGenerator overrides the synthetic generator.
func WithFallbackGenerator(g port.FallbackGenerator) Option {
	return func(o *Orchestrator) { o.fallback = g }
}

// WithCacheStore overrides the response cache backing store.
func WithCacheStore(s port.Cache[string]) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator validates cfg and builds an orchestrator around it.
// The only error returned is a *domain.ErrConfig.
func NewOrchestrator(cfg domain.ClientConfig, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Endpoints = append([]domain.EndpointSpec(nil), cfg.Endpoints...)

	o := &Orchestrator{cfg: cfg}
	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	o.logger = o.logger.With(zap.String("backend", cfg.Name))
	if o.metrics == nil {
		o.metrics = observability.NewMetrics()
	}
	if o.adapters == nil {
		o.adapters = provider.NewAdapterFactory(nil)
	}
	if o.health == nil {
		o.health = health.NewTracker(cfg.HealthCheckTimeout, health.WithLogger(o.logger))
	}
	if o.rate == nil {
		o.rate = ratelimit.NewGovernor(cfg.MaxRequestsPerMinute)
	}
	if o.fallback == nil {
		o.fallback = synthetic.New()
	}
	if cfg.EnableCaching {
		if o.store != nil {
			o.cache = cache.NewResponseCacheWith(o.store)
		} else {
			o.cache = cache.NewResponseCache(cfg.CacheSize, cfg.CacheTTL)
		}
	}

	maxConc := cfg.MaxConcurrency
	if maxConc <= 0 {
		maxConc = DefaultMaxConcurrency
	}
	o.bulkhead = resilience.NewBulkhead(maxConc)
	o.retry = resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.RetryBackoff,
		MaxConcurrency: maxConc,
		Retryable:      resilience.IsRetryable,
	}

	o.registry = registry.New()
	o.breakers = make(map[string]*gobreaker.CircuitBreaker, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		o.registry.AddEndpoint(ep)
		o.breakers[ep.URL] = resilience.NewCircuitBreaker(cfg.Name+" "+ep.URL, o.onBreakerChange)
	}

	return o, nil
}

func (o *Orchestrator) onBreakerChange(name string, from, to gobreaker.State) {
	o.logger.Warn("circuit breaker state changed",
		zap.String("breaker", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
	o.metrics.IncrBreakerTransition(name, to.String())
}

// Name returns the backend name.
func (o *Orchestrator) Name() string {
	return o.cfg.Name
}

// Config returns a copy of the backend configuration.
func (o *Orchestrator) Config() domain.ClientConfig {
	c := o.cfg
	c.Endpoints = append([]domain.EndpointSpec(nil), o.cfg.Endpoints...)
	return c
}

// Generate returns text for prompt. It only fails on configuration errors;
// every transport problem degrades to another endpoint or to synthetic text.
func (o *Orchestrator) Generate(ctx context.Context, prompt string) (string, error) {
	res := o.GenerateResult(ctx, prompt)
	return res.Text, res.Err
}

// GenerateResult is Generate with provenance.
func (o *Orchestrator) GenerateResult(ctx context.Context, prompt string) domain.GenerationResult {
	ctx, span := tracer.Start(ctx, "Orchestrator.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("backend", o.cfg.Name))

	start := time.Now()
	defer func() {
		o.metrics.RecordRequestDuration("generate", time.Since(start))
	}()

	log := o.logger.With(zap.String("request_id", uuid.NewString()))

	var res domain.GenerationResult
	if o.cache == nil {
		res = o.run(ctx, prompt, log)
	} else {
		res = o.cached(ctx, prompt, log)
	}

	if res.Err == nil {
		o.metrics.IncrGeneration(o.cfg.Name, res.Source)
	}
	span.SetAttributes(attribute.String("source", string(res.Source)))
	return res
}

func (o *Orchestrator) cached(ctx context.Context, prompt string, log *zap.Logger) domain.GenerationResult {
	if text, ok := o.cache.Get(prompt); ok {
		o.metrics.IncrCacheHit(o.cfg.Name)
		log.Debug("response cache hit")
		return domain.GenerationResult{Text: text, Source: domain.SourceCache}
	}
	o.metrics.IncrCacheMiss(o.cfg.Name)

	// The shared run outlives any single caller, so one caller leaving does
	// not degrade the others. It is bounded by sharedRunBudget instead.
	ch := o.cache.DoChan(prompt, func() (any, error) {
		if text, ok := o.cache.Get(prompt); ok {
			return domain.GenerationResult{Text: text, Source: domain.SourceCache}, nil
		}
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.sharedRunBudget())
		defer cancel()

		res := o.run(runCtx, prompt, log)
		if res.Err == nil && runCtx.Err() == nil {
			o.cache.Put(prompt, res.Text)
		}
		return res, nil
	})

	select {
	case r := <-ch:
		if r.Shared {
			log.Debug("joined in-flight generation")
		}
		return r.Val.(domain.GenerationResult)
	case <-ctx.Done():
		log.Warn("caller left before the shared generation finished", zap.Error(ctx.Err()))
		return o.synthesize(prompt, log)
	}
}

// sharedRunBudget bounds a coalesced run: one timeout per endpoint and
// attempt.
func (o *Orchestrator) sharedRunBudget() time.Duration {
	attempts := time.Duration(len(o.cfg.Endpoints) * (o.cfg.MaxRetries + 1))
	return o.cfg.Timeout * attempts
}

// run is the uncached pipeline: rate gate, primary call, failover, synthetic.
func (o *Orchestrator) run(ctx context.Context, prompt string, log *zap.Logger) domain.GenerationResult {
	adapter, err := o.adapters(o.cfg.Kind)
	if err != nil {
		log.Error("cannot resolve provider adapter", zap.Error(err))
		return domain.GenerationResult{Err: err}
	}

	waitStart := time.Now()
	if err := o.rate.WaitIfNeeded(ctx); err != nil {
		log.Warn("abandoned while waiting for rate limit", zap.Error(err))
		return o.synthesize(prompt, log)
	}
	o.metrics.ObserveRateWait(o.cfg.Name, time.Since(waitStart))

	primary, ok, fallbacks := o.registry.Select()
	if !ok {
		log.Warn("skipping primary call", zap.Error(&domain.ErrNoHealthyEndpoint{Backend: o.cfg.Name}))
	} else {
		text, err := o.call(ctx, adapter, prompt, primary)
		if err == nil {
			return domain.GenerationResult{Text: text, Source: domain.SourceProvider, Endpoint: primary.URL}
		}
		if ctx.Err() != nil {
			log.Warn("caller left during primary call", zap.String("endpoint", primary.URL), zap.Error(err))
			return o.synthesize(prompt, log)
		}
		log.Warn("primary endpoint failed",
			zap.String("endpoint", primary.URL),
			zap.Error(err),
		)
		o.registry.MarkHealth(primary.URL, false)
	}

	if !o.cfg.EnableFallback {
		return o.synthesize(prompt, log)
	}

	for _, ep := range fallbacks {
		if ctx.Err() != nil {
			break
		}
		if !o.health.IsHealthy(ctx, ep.URL) {
			log.Debug("skipping unhealthy fallback", zap.String("endpoint", ep.URL))
			continue
		}
		text, err := o.call(ctx, adapter, prompt, ep)
		if err != nil && ctx.Err() != nil {
			log.Warn("caller left during fallback call", zap.String("endpoint", ep.URL), zap.Error(err))
			break
		}
		if err != nil {
			log.Warn("fallback endpoint failed",
				zap.String("endpoint", ep.URL),
				zap.Error(err),
			)
			o.registry.MarkHealth(ep.URL, false)
			continue
		}
		o.registry.MarkHealth(ep.URL, true)
		log.Info("fallback endpoint succeeded", zap.String("endpoint", ep.URL))
		return domain.GenerationResult{Text: text, Source: domain.SourceProvider, Endpoint: ep.URL}
	}

	return o.synthesize(prompt, log)
}

// call issues one logical request to ep: bulkhead, then the endpoint's
// breaker around the retry loop. Failures are *domain.ErrTransport.
func (o *Orchestrator) call(ctx context.Context, adapter port.ProviderAdapter, prompt string, ep domain.EndpointSpec) (string, error) {
	ctx, span := tracer.Start(ctx, "Orchestrator.call")
	defer span.End()
	span.SetAttributes(attribute.String("endpoint", ep.URL))

	var text string
	err := o.bulkhead.Do(ctx, func() error {
		_, err := o.breakers[ep.URL].Execute(func() (any, error) {
			err := resilience.RetryWithBackoff(ctx, o.retry, func() error {
				t, err := adapter.Call(ctx, prompt, ep, &o.cfg)
				if err != nil {
					return err
				}
				if t == "" {
					return &domain.ErrTransport{Backend: o.cfg.Name, Endpoint: ep.URL, Err: errors.New("empty response text")}
				}
				text = t
				return nil
			})
			if err != nil && ctx.Err() != nil {
				return nil, resilience.Abandoned(err)
			}
			return nil, err
		})
		return err
	})
	if err == nil {
		return text, nil
	}

	if !resilience.IsAbandoned(err) && ctx.Err() == nil {
		o.metrics.IncrEndpointError(o.cfg.Name, ep.URL)
	}
	var te *domain.ErrTransport
	if errors.As(err, &te) {
		return "", err
	}
	return "", &domain.ErrTransport{Backend: o.cfg.Name, Endpoint: ep.URL, Err: err}
}

func (o *Orchestrator) synthesize(prompt string, log *zap.Logger) domain.GenerationResult {
	log.Warn("serving synthetic configuration")
	return domain.GenerationResult{Text: o.fallback.Generate(prompt), Source: domain.SourceSynthetic}
}

// Validate asks the backend to review a configuration. Any successful
// generation yields IsValid; the model's own verdict is attached when it can
// be parsed but never overrides IsValid.
func (o *Orchestrator) Validate(ctx context.Context, text string) (*domain.ValidationReport, error) {
	ctx, span := tracer.Start(ctx, "Orchestrator.Validate")
	defer span.End()

	res := o.GenerateResult(ctx, ValidationPrompt(text))
	if res.Err != nil {
		return &domain.ValidationReport{
			IsValid:  false,
			Errors:   []string{res.Err.Error()},
			Warnings: []string{},
		}, res.Err
	}

	report := &domain.ValidationReport{
		IsValid:  true,
		Errors:   []string{},
		Warnings: []string{},
		Detail:   res.Text,
		Source:   res.Source,
	}
	if v := ParseVerdict(res.Text); v != nil {
		report.Verdict = v
		report.Warnings = append(report.Warnings, v.Warnings...)
	}
	if res.Source == domain.SourceSynthetic {
		report.Warnings = append(report.Warnings, "no backend reachable; review produced by synthetic fallback")
	}
	return report, nil
}

// Endpoints returns the registry's current health marks.
func (o *Orchestrator) Endpoints() []domain.EndpointHealth {
	return o.registry.Endpoints()
}

// RefreshHealth probes every endpoint concurrently and records the verdicts
// in the registry. A refresh cut short by ctx leaves the marks as they were.
func (o *Orchestrator) RefreshHealth(ctx context.Context) []domain.EndpointHealth {
	ctx, span := tracer.Start(ctx, "Orchestrator.RefreshHealth")
	defer span.End()

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(refreshParallelism)
	for _, ep := range o.cfg.Endpoints {
		url := ep.URL
		g.Go(func() error {
			healthy := o.health.Probe(gCtx, url)
			if gCtx.Err() != nil {
				return nil
			}
			o.registry.MarkHealth(url, healthy)
			if !healthy {
				o.logger.Info("endpoint probe failed", zap.String("endpoint", url))
			}
			return nil
		})
	}
	_ = g.Wait()

	return o.registry.Endpoints()
}

// Status summarises the backend's endpoint health.
func (o *Orchestrator) Status() domain.BackendHealth {
	eps := o.registry.Endpoints()
	bh := domain.BackendHealth{Name: o.cfg.Name, Status: "healthy", Endpoints: eps}

	healthy := 0
	for _, e := range eps {
		if e.Healthy {
			healthy++
		}
	}
	switch {
	case healthy == 0:
		bh.Status = "synthetic"
	case healthy < len(eps):
		bh.Status = "degraded"
	}
	if p, ok := o.registry.PrimaryEndpoint(); ok {
		bh.PrimaryEndpoint = p.URL
	}
	return bh
}

// Info describes the backend configuration.
func (o *Orchestrator) Info() domain.ProviderInfo {
	info := domain.ProviderInfo{
		Name:            o.cfg.Name,
		Kind:            o.cfg.Kind,
		Model:           o.cfg.Model,
		MaxTokens:       o.cfg.MaxTokens,
		Temperature:     o.cfg.Temperature,
		Timeout:         o.cfg.Timeout,
		CacheEnabled:    o.cfg.EnableCaching,
		FallbackEnabled: o.cfg.EnableFallback,
	}
	if p, ok := o.registry.PrimaryEndpoint(); ok {
		info.PrimaryEndpoint = p.URL
	}
	return info
}

func (o *Orchestrator) String() string {
	return fmt.Sprintf("%s(%s, %d endpoints)", o.cfg.Name, o.cfg.Kind, len(o.cfg.Endpoints))
}
