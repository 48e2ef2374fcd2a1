package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/boddenberg/netgen/internal/domain"
)

// Defaults applied to every backend that leaves a setting out.
const (
	DefaultRatePerMinute      = 60
	DefaultHealthCheckTimeout = 5 * time.Second
	DefaultTimeout            = 30 * time.Second
	DefaultOllamaTimeout      = 60 * time.Second
	DefaultMaxRetries         = 3
	DefaultRetryBackoff       = 500 * time.Millisecond
	DefaultMaxTokens          = 2000
	DefaultTemperature        = 0.7
	DefaultCacheSize          = 1000
	DefaultCacheTTL           = time.Hour
)

// NetworkSystemPrompt primes local models for device configuration work.
const NetworkSystemPrompt = "You are a senior network engineer. Answer with complete, " +
	"syntactically valid Cisco IOS configuration and keep commentary in '!' comment lines."

// Duration accepts "30s"-style strings or a bare number of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.parse(node.Value)
}

// UnmarshalTOML implements toml.Unmarshaler.
func (d *Duration) UnmarshalTOML(v any) error {
	switch x := v.(type) {
	case int64:
		*d = Duration(time.Duration(x) * time.Second)
		return nil
	case float64:
		*d = Duration(time.Duration(x * float64(time.Second)))
		return nil
	case string:
		return d.parse(x)
	}
	return fmt.Errorf("invalid duration %v", v)
}

func (d *Duration) parse(s string) error {
	s = strings.TrimSpace(ResolveEnv(s))
	if s == "" {
		*d = 0
		return nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Connection holds settings shared by every backend.
type Connection struct {
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute" toml:"rate_limit_per_minute"`
	HealthCheckTimeout Duration `yaml:"health_check_timeout" toml:"health_check_timeout"`
	EnableFallback     *bool    `yaml:"enable_fallback" toml:"enable_fallback"`
	EnableCaching      *bool    `yaml:"enable_caching" toml:"enable_caching"`
	CacheSize          int      `yaml:"cache_size" toml:"cache_size"`
	CacheTTL           Duration `yaml:"cache_ttl" toml:"cache_ttl"`
	MaxConcurrency     int      `yaml:"max_concurrency" toml:"max_concurrency"`
}

// Backend is one backend section of the file. Zero values inherit from
// Connection and then from the package defaults.
type Backend struct {
	Kind         string   `yaml:"kind" toml:"kind"`
	APIURL       string   `yaml:"api_url" toml:"api_url"`
	APIKey       string   `yaml:"api_key" toml:"api_key"`
	Model        string   `yaml:"model" toml:"model"`
	MaxTokens    int      `yaml:"max_tokens" toml:"max_tokens"`
	Temperature  *float64 `yaml:"temperature" toml:"temperature"`
	Timeout      Duration `yaml:"timeout" toml:"timeout"`
	MaxRetries   *int     `yaml:"max_retries" toml:"max_retries"`
	RetryBackoff Duration `yaml:"retry_backoff" toml:"retry_backoff"`
	SystemPrompt string   `yaml:"system_prompt" toml:"system_prompt"`
	VerifySSL    *bool    `yaml:"verify_ssl" toml:"verify_ssl"`

	Connection `yaml:",inline"`

	Endpoints []Endpoint `yaml:"endpoints" toml:"endpoints"`
}

// Endpoint is one entry of a backend's endpoint list.
type Endpoint struct {
	URL       string `yaml:"url" toml:"url"`
	Priority  *int   `yaml:"priority" toml:"priority"`
	APIKey    string `yaml:"api_key" toml:"api_key"`
	VerifySSL *bool  `yaml:"verify_ssl" toml:"verify_ssl"`
}

// File is the parsed backends file.
type File struct {
	DefaultBackend string             `yaml:"default_backend" toml:"default_backend"`
	Connection     Connection         `yaml:"connection" toml:"connection"`
	Backends       map[string]Backend `yaml:"backends" toml:"backends"`
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-?([^}]*))?\}`)

// ResolveEnv replaces ${VAR}, ${VAR:default} and ${VAR:-default} with the
// environment value. The default applies only when the variable is unset; a
// variable set to "" resolves to "".
func ResolveEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(match string) string {
		sub := envRef.FindStringSubmatch(match)
		if v, ok := os.LookupEnv(sub[1]); ok {
			return v
		}
		return sub[2]
	})
}

// LoadFile reads a backends file. The format follows the extension:
// .toml for TOML, anything else for YAML.
func LoadFile(path string) (*File, error) {
	clean := filepath.Clean(path)
	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", clean, err)
	}
	return Parse(string(data), strings.EqualFold(filepath.Ext(clean), ".toml"))
}

// Parse decodes file content, then resolves environment references in the
// decoded string values. Substituted values never reach the YAML or TOML
// parser.
func Parse(content string, isTOML bool) (*File, error) {
	var f File
	if isTOML {
		if _, err := toml.Decode(content, &f); err != nil {
			return nil, fmt.Errorf("parse TOML config: %w", err)
		}
	} else if err := yaml.Unmarshal([]byte(content), &f); err != nil {
		return nil, fmt.Errorf("parse YAML config: %w", err)
	}

	if len(f.Backends) == 0 {
		return nil, &domain.ErrConfig{Field: "backends", Message: "no backends defined"}
	}
	normalized := make(map[string]Backend, len(f.Backends))
	for name, b := range f.Backends {
		normalized[strings.ToLower(strings.TrimSpace(name))] = b.resolveEnv()
	}
	f.Backends = normalized
	f.DefaultBackend = strings.ToLower(strings.TrimSpace(ResolveEnv(f.DefaultBackend)))
	return &f, nil
}

func (b Backend) resolveEnv() Backend {
	b.Kind = ResolveEnv(b.Kind)
	b.APIURL = ResolveEnv(b.APIURL)
	b.APIKey = ResolveEnv(b.APIKey)
	b.Model = ResolveEnv(b.Model)
	b.SystemPrompt = ResolveEnv(b.SystemPrompt)

	eps := make([]Endpoint, len(b.Endpoints))
	for i, ep := range b.Endpoints {
		ep.URL = ResolveEnv(ep.URL)
		ep.APIKey = ResolveEnv(ep.APIKey)
		eps[i] = ep
	}
	b.Endpoints = eps
	return b
}

// DefaultBackends is used when no file is present: a single local Ollama
// daemon.
func DefaultBackends() *File {
	return &File{
		DefaultBackend: "ollama",
		Backends: map[string]Backend{
			"ollama": {
				Kind:         string(domain.BackendOllama),
				APIURL:       "http://localhost:11434",
				Model:        "llama2",
				SystemPrompt: NetworkSystemPrompt,
			},
		},
	}
}

// Default returns the name of the default backend: the configured one, else
// "ollama" when present, else the first name in order.
func (f *File) Default() string {
	if f.DefaultBackend != "" {
		return f.DefaultBackend
	}
	if _, ok := f.Backends["ollama"]; ok {
		return "ollama"
	}
	names := f.names()
	return names[0]
}

func (f *File) names() []string {
	names := make([]string, 0, len(f.Backends))
	for n := range f.Backends {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ClientConfigs turns every backend section into a validated ClientConfig,
// sorted by name. cacheTTL is the fallback TTL when neither the backend nor
// the connection section sets one.
func (f *File) ClientConfigs(cacheTTL time.Duration) ([]domain.ClientConfig, error) {
	if _, ok := f.Backends[f.Default()]; !ok {
		return nil, &domain.ErrConfig{Field: "default_backend", Message: "unknown backend " + f.Default()}
	}

	out := make([]domain.ClientConfig, 0, len(f.Backends))
	for _, name := range f.names() {
		cfg, err := f.clientConfig(name, f.Backends[name], cacheTTL)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

func (f *File) clientConfig(name string, b Backend, cacheTTL time.Duration) (domain.ClientConfig, error) {
	kindName := b.Kind
	if kindName == "" {
		kindName = name
	}
	kind, err := domain.ParseBackendKind(kindName)
	if err != nil {
		return domain.ClientConfig{}, &domain.ErrConfig{Field: "backends." + name + ".kind", Message: err.Error()}
	}

	conn := f.Connection
	cfg := domain.ClientConfig{
		Name:                 name,
		Kind:                 kind,
		APIKey:               b.APIKey,
		Model:                b.Model,
		MaxTokens:            firstInt(b.MaxTokens, DefaultMaxTokens),
		Temperature:          DefaultTemperature,
		Timeout:              firstDuration(b.Timeout, 0),
		MaxRetries:           DefaultMaxRetries,
		RetryBackoff:         firstDuration(b.RetryBackoff, Duration(DefaultRetryBackoff)),
		SystemPrompt:         b.SystemPrompt,
		MaxRequestsPerMinute: firstInt(b.RateLimitPerMinute, conn.RateLimitPerMinute, DefaultRatePerMinute),
		HealthCheckTimeout:   firstDuration(b.HealthCheckTimeout, conn.HealthCheckTimeout, Duration(DefaultHealthCheckTimeout)),
		MaxConcurrency:       firstInt(b.MaxConcurrency, conn.MaxConcurrency),
		EnableCaching:        firstBool(b.EnableCaching, conn.EnableCaching, true),
		EnableFallback:       firstBool(b.EnableFallback, conn.EnableFallback, true),
		CacheSize:            firstInt(b.CacheSize, conn.CacheSize, DefaultCacheSize),
		CacheTTL:             firstDuration(b.CacheTTL, conn.CacheTTL, Duration(cacheTTL), Duration(DefaultCacheTTL)),
	}
	if b.Temperature != nil {
		cfg.Temperature = *b.Temperature
	}
	if b.MaxRetries != nil {
		cfg.MaxRetries = *b.MaxRetries
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
		if kind == domain.BackendOllama {
			cfg.Timeout = DefaultOllamaTimeout
		}
	}

	verify := firstBool(b.VerifySSL, nil, true)
	for _, ep := range b.Endpoints {
		priority := 1
		if ep.Priority != nil {
			priority = *ep.Priority
		}
		cfg.Endpoints = append(cfg.Endpoints, domain.EndpointSpec{
			URL:       strings.TrimSpace(ep.URL),
			Priority:  priority,
			APIKey:    ep.APIKey,
			VerifySSL: firstBool(ep.VerifySSL, nil, verify),
		})
	}
	if len(cfg.Endpoints) == 0 && strings.TrimSpace(b.APIURL) != "" {
		cfg.Endpoints = []domain.EndpointSpec{{URL: strings.TrimSpace(b.APIURL), Priority: 1, VerifySSL: verify}}
	}

	if err := cfg.Validate(); err != nil {
		var ce *domain.ErrConfig
		if errors.As(err, &ce) {
			return domain.ClientConfig{}, &domain.ErrConfig{Field: "backends." + name + "." + ce.Field, Message: ce.Message}
		}
		return domain.ClientConfig{}, err
	}
	return cfg, nil
}

func firstInt(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstDuration(vals ...Duration) time.Duration {
	for _, v := range vals {
		if v != 0 {
			return time.Duration(v)
		}
	}
	return 0
}

func firstBool(a, b *bool, def bool) bool {
	if a != nil {
		return *a
	}
	if b != nil {
		return *b
	}
	return def
}
