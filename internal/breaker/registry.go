package breaker

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry lazily creates breakers by name. Breakers are never evicted.
type Registry struct {
	defaults  Config
	overrides map[string]Config
	opts      []Option

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithDefaults sets the config used for names without an override.
func WithDefaults(cfg Config) RegistryOption {
	return func(r *Registry) { r.defaults = cfg }
}

// WithOverride sets the config for one breaker name.
func WithOverride(name string, cfg Config) RegistryOption {
	return func(r *Registry) { r.overrides[name] = cfg }
}

// WithBreakerOptions applies opts to every breaker the registry creates.
func WithBreakerOptions(opts ...Option) RegistryOption {
	return func(r *Registry) { r.opts = append(r.opts, opts...) }
}

// NewRegistry validates every configured threshold up front so that Get
// cannot fail later.
func NewRegistry(opts ...RegistryOption) (*Registry, error) {
	r := &Registry{
		defaults:  DefaultConfig(),
		overrides: make(map[string]Config),
		breakers:  make(map[string]*Breaker),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.defaults = r.defaults.withDefaults()
	if err := r.defaults.Validate(); err != nil {
		return nil, fmt.Errorf("breaker defaults: %w", err)
	}
	for name, cfg := range r.overrides {
		cfg = cfg.withDefaults()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("breaker override %s: %w", name, err)
		}
		r.overrides[name] = cfg
	}
	return r, nil
}

// Get returns the breaker for name, creating it from the override or the
// registry defaults on first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}
	cfg, ok := r.overrides[name]
	if !ok {
		cfg = r.defaults
	}
	b, err := New(name, cfg, r.opts...)
	if err != nil {
		// Configs were validated in NewRegistry.
		panic(err)
	}
	r.breakers[name] = b
	return b
}

// Names returns the created breaker names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Statuses snapshots every created breaker, sorted by name.
func (r *Registry) Statuses() []Status {
	r.mu.Lock()
	list := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		list = append(list, b)
	}
	r.mu.Unlock()

	out := make([]Status, 0, len(list))
	for _, b := range list {
		out = append(out, b.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns an existing breaker without creating one.
func (r *Registry) Lookup(name string) (*Breaker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[name]
	return b, ok
}

// LogStatuses writes one line per breaker. Used at shutdown.
func (r *Registry) LogStatuses(logger *zap.Logger) {
	for _, s := range r.Statuses() {
		logger.Info("breaker status",
			zap.String("breaker", s.Name),
			zap.String("state", string(s.State)),
			zap.Int64("total_requests", s.Metrics.TotalRequests),
			zap.Int64("total_failures", s.Metrics.TotalFailures),
		)
	}
}
