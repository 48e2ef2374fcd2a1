package service_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/netgen/internal/domain"
	"github.com/boddenberg/netgen/internal/infra/observability"
	"github.com/boddenberg/netgen/internal/service"
)

func namedConfig(name string, kind domain.BackendKind, endpoints ...string) domain.ClientConfig {
	cfg := testConfig(endpoints...)
	cfg.Name = name
	cfg.Kind = kind
	return cfg
}

func newGateway(t *testing.T, metrics *observability.Metrics, adapters map[string]*mockAdapter) *service.Gateway {
	t.Helper()
	var backends []*service.Orchestrator
	for _, name := range []string{"ollama", "openai"} {
		kind := domain.BackendOllama
		if name == "openai" {
			kind = domain.BackendOpenAI
		}
		o := newOrchestrator(t, namedConfig(name, kind, "http://"+name),
			service.WithAdapterFactory(factoryFor(adapters[name])),
			service.WithMetrics(metrics),
		)
		backends = append(backends, o)
	}
	g, err := service.NewGateway(backends, "ollama", metrics, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return g
}

func TestNewGateway_Errors(t *testing.T) {
	if _, err := service.NewGateway(nil, "x", nil, nil); err == nil {
		t.Error("expected error for no backends")
	}

	o := newOrchestrator(t, testConfig("http://a"))
	var ce *domain.ErrConfig
	if _, err := service.NewGateway([]*service.Orchestrator{o}, "missing", nil, nil); !errors.As(err, &ce) {
		t.Errorf("expected *domain.ErrConfig for unknown default, got %v", err)
	}
	if _, err := service.NewGateway([]*service.Orchestrator{o, o}, "lab", nil, nil); !errors.As(err, &ce) {
		t.Errorf("expected *domain.ErrConfig for duplicate backend, got %v", err)
	}
}

func TestGateway_BackendSelection(t *testing.T) {
	adapters := map[string]*mockAdapter{"ollama": newMockAdapter("local"), "openai": newMockAdapter("hosted")}
	g := newGateway(t, observability.NewMetrics(), adapters)

	res, err := g.Generate(context.Background(), "", "p")
	if err != nil || !strings.HasPrefix(res.Text, "local") {
		t.Fatalf("expected default backend, got %+v (%v)", res, err)
	}

	res, _ = g.Generate(context.Background(), "openai", "p")
	if !strings.HasPrefix(res.Text, "hosted") {
		t.Errorf("expected named backend, got %q", res.Text)
	}

	_, err = g.Generate(context.Background(), "bard", "p")
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Errorf("expected *domain.ErrNotFound, got %v", err)
	}
}

func TestGateway_SetDefault(t *testing.T) {
	adapters := map[string]*mockAdapter{"ollama": newMockAdapter("local"), "openai": newMockAdapter("hosted")}
	g := newGateway(t, observability.NewMetrics(), adapters)

	if err := g.SetDefault("openai"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Default() != "openai" {
		t.Errorf("expected openai default, got %s", g.Default())
	}
	if err := g.SetDefault("nope"); err == nil {
		t.Error("expected error for unknown backend")
	}

	infos := g.Backends()
	if len(infos) != 2 || infos[0].Name != "ollama" || infos[1].Name != "openai" {
		t.Fatalf("unexpected backends %+v", infos)
	}
	if infos[0].Default || !infos[1].Default {
		t.Errorf("expected openai flagged default, got %+v", infos)
	}
}

func TestGateway_GenerateNetworkConfig(t *testing.T) {
	metrics := observability.NewMetrics()
	adapters := map[string]*mockAdapter{"ollama": newMockAdapter("hostname R1"), "openai": newMockAdapter("x")}
	g := newGateway(t, metrics, adapters)

	res, err := g.GenerateNetworkConfig(context.Background(), "", domain.ConfigRequest{
		Query:      "OSPF area 0 towards the core",
		DeviceName: "R1",
		ConfigType: "routing",
		Context:    &domain.PromptContext{RelevantDevices: []string{"R2"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.DeviceName != "R1" || res.ConfigType != "routing" || res.Source != domain.SourceProvider {
		t.Errorf("unexpected result %+v", res)
	}
	if res.Validation == nil || !res.Validation.IsValid {
		t.Errorf("expected valid review, got %+v", res.Validation)
	}
	if res.Provider.Name != "ollama" || res.GeneratedAt.IsZero() {
		t.Errorf("unexpected provider info %+v", res.Provider)
	}
	// generation + validation
	if n := adapters["ollama"].Total(); n != 2 {
		t.Errorf("expected 2 backend calls, got %d", n)
	}

	stats := g.Statistics()
	if stats.Total != 1 || stats.Success != 1 || stats.SuccessRate != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.Backends["ollama"].Total != 1 {
		t.Errorf("expected per-backend count, got %+v", stats.Backends)
	}
	if stats.Pipeline == nil || stats.Pipeline.TotalGenerations != 2 {
		t.Errorf("expected pipeline metrics, got %+v", stats.Pipeline)
	}
}

func TestGateway_GenerateNetworkConfig_Validation(t *testing.T) {
	adapters := map[string]*mockAdapter{"ollama": newMockAdapter("x"), "openai": newMockAdapter("x")}
	g := newGateway(t, observability.NewMetrics(), adapters)

	var ve *domain.ErrValidation
	if _, err := g.GenerateNetworkConfig(context.Background(), "", domain.ConfigRequest{DeviceName: "R1"}); !errors.As(err, &ve) {
		t.Errorf("expected validation error for missing query, got %v", err)
	}
	if _, err := g.GenerateNetworkConfig(context.Background(), "", domain.ConfigRequest{Query: "q"}); !errors.As(err, &ve) {
		t.Errorf("expected validation error for missing device, got %v", err)
	}
	if g.Statistics().Total != 0 {
		t.Error("expected rejected requests not to be counted")
	}
}

func TestGateway_Health(t *testing.T) {
	adapters := map[string]*mockAdapter{"ollama": newMockAdapter("x", "http://ollama"), "openai": newMockAdapter("x")}
	g := newGateway(t, observability.NewMetrics(), adapters)

	if hs := g.Health(); hs.Status != "healthy" || len(hs.Backends) != 2 {
		t.Fatalf("unexpected initial health %+v", hs)
	}

	// single-endpoint backend loses its only endpoint
	_, _ = g.Generate(context.Background(), "ollama", "p")

	hs := g.Health()
	if hs.Status != "synthetic" {
		t.Errorf("expected synthetic overall status, got %s", hs.Status)
	}
}

func TestBuildConfigPrompt(t *testing.T) {
	p := service.BuildConfigPrompt(domain.ConfigRequest{
		Query:      "uplink to core",
		DeviceName: "SW3",
		ConfigType: "switching",
		Context: &domain.PromptContext{
			RelevantPolicies:  []string{"no telnet"},
			RelevantTemplates: []string{"access-port"},
		},
	})

	for _, want := range []string{"SW3", "switching", "uplink to core", "no telnet", "access-port", "Cisco IOS"} {
		if !strings.Contains(p, want) {
			t.Errorf("expected prompt to contain %q", want)
		}
	}
	if !strings.Contains(service.BuildConfigPrompt(domain.ConfigRequest{}), "No additional context.") {
		t.Error("expected placeholder for missing context")
	}
}

// --- Scheduler ---

type countingRefresher struct{ n int32 }

func (c *countingRefresher) RefreshAll(context.Context) { atomic.AddInt32(&c.n, 1) }

func TestHealthScheduler_RunOnce(t *testing.T) {
	r := &countingRefresher{}
	s, err := service.NewHealthScheduler(r, service.DefaultRefreshSchedule, time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.RunOnce()
	if atomic.LoadInt32(&r.n) != 1 {
		t.Errorf("expected one refresh, got %d", r.n)
	}
}

func TestHealthScheduler_Schedules(t *testing.T) {
	r := &countingRefresher{}
	s, err := service.NewHealthScheduler(r, "@every 1s", time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Start()
	time.Sleep(1500 * time.Millisecond)
	s.Stop()

	if atomic.LoadInt32(&r.n) < 1 {
		t.Error("expected at least one scheduled refresh")
	}
}

func TestHealthScheduler_InvalidSpec(t *testing.T) {
	if _, err := service.NewHealthScheduler(&countingRefresher{}, "every now and then", time.Second, nil); err == nil {
		t.Error("expected error for invalid schedule")
	}
}
