package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/breaker"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/config"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/events"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/eyes"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/logging"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/orchestrator"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/reasoning"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/redact"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/review"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/telemetry"
)

const instrumentationName = "github.com/AI-AugToOct/capstone-project-third-eye-mcp"

// app holds everything both transports share.
type app struct {
	cfg       config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	breakers  *breaker.Registry
	prom      *prometheus.Registry
	bus       *events.MemoryBus
	nc        *nats.Conn
	eyes      *eyes.Registry
	flows     *orchestrator.Flows
}

// newApp wires the registry, breakers and reasoning backends.
//
// Order matters:
//  1. telemetry, so the logger can bridge to its log provider
//  2. logger
//  3. breakers and the Prometheus registry
//  4. reasoning backends, guarded by the breakers
//  5. event publishers
//  6. eye registry with the canonical pipeline, then flows
func newApp(ctx context.Context, cfg config.Config, logOpts ...logging.Option) (*app, error) {
	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	if cfg.Logging.OTEL {
		logOpts = append(logOpts, logging.WithOTELProvider(tel.LoggerProvider()))
	}
	logger, err := logging.New(cfg.Logging, logOpts...)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	zl := logger.Underlying()
	if h := tel.Health(); h.Degraded {
		zl.Warn("telemetry degraded", zap.Strings("reasons", h.Reasons))
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		telemetry: tel,
		prom:      prometheus.NewRegistry(),
	}

	a.breakers, err = newBreakers(cfg, zl, breaker.NewTransitionCounter(a.prom))
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.prom.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		breaker.NewCollector(a.breakers),
	)

	backend, err := newBackend(cfg.Reasoning, a.breakers, reasoning.NewMetrics(a.prom), zl)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	redactor, err := redact.New(redact.Options{
		Disabled:      !cfg.Redaction.Enabled,
		AllowlistPath: cfg.Redaction.AllowlistPath,
	})
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to initialize redactor: %w", err)
	}

	publisher, err := a.newPublisher(cfg)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	eyeOpts := []eyes.Option{
		eyes.WithLogger(zl),
		eyes.WithPublisher(publisher),
		eyes.WithTracer(tel.Tracer(instrumentationName + "/eyes")),
	}
	if m, err := eyes.NewMetrics(tel.Meter(instrumentationName + "/eyes")); err != nil {
		zl.Warn("eye metrics disabled", zap.Error(err))
	} else {
		eyeOpts = append(eyeOpts, eyes.WithMetrics(m))
	}
	a.eyes = eyes.NewRegistry(eyeOpts...)

	factory := review.NewFactory(review.Options{
		Backend:  backend,
		Breakers: a.breakers,
		Redactor: redactor,
		Logger:   zl,
	})
	if err := eyes.RegisterPipeline(a.eyes, factory.Build); err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to register pipeline: %w", err)
	}

	a.flows = orchestrator.New(a.eyes, orchestrator.WithLogger(zl))
	a.flows.OnProgress(func(p orchestrator.StageProgress) {
		zl.Debug("flow progress",
			zap.String("flow", p.Flow),
			zap.String("stage", string(p.Stage)),
			zap.String("status", string(p.Status)),
			zap.String("message", p.Message),
		)
	})

	zl.Info("thirdeye initialized",
		zap.String("backend", backend.Name()),
		zap.Int("eyes", len(a.eyes.Names())),
		zap.Bool("nats", a.nc != nil),
		zap.Bool("redaction", redactor.Enabled()),
		zap.Bool("telemetry", tel.IsEnabled()),
	)
	return a, nil
}

func newBreakers(cfg config.Config, logger *zap.Logger, transitions *breaker.TransitionCounter) (*breaker.Registry, error) {
	opts := []breaker.RegistryOption{
		breaker.WithDefaults(cfg.Breaker.Breaker()),
		breaker.WithBreakerOptions(
			breaker.WithLogger(logger),
			breaker.WithStateObserver(transitions.Observe),
		),
	}
	for name, c := range cfg.BreakerOverrides() {
		opts = append(opts, breaker.WithOverride(name, c))
	}
	r, err := breaker.NewRegistry(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create breaker registry: %w", err)
	}
	return r, nil
}

// newBackend builds the provider chain in configured order. Without
// providers the offline backend answers, which Validate only allows when
// reasoning.offline is set.
func newBackend(cfg config.ReasoningConfig, breakers *breaker.Registry, metrics *reasoning.Metrics, logger *zap.Logger) (reasoning.Backend, error) {
	if len(cfg.Providers) == 0 {
		if !cfg.Offline {
			return nil, config.ErrNoProviders
		}
		logger.Warn("no reasoning providers configured, using offline backend")
		return reasoning.Offline{}, nil
	}

	backends := make([]reasoning.Backend, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		llm, err := reasoning.NewOpenAICompatible(p.Provider())
		if err != nil {
			return nil, err
		}
		opts := p.Guard()
		opts.Metrics = metrics
		opts.Logger = logger
		backends = append(backends, reasoning.Guard(llm, breakers, opts))
	}
	if len(backends) == 1 {
		return backends[0], nil
	}
	router, err := reasoning.NewRouter(logger, backends...)
	if err != nil {
		return nil, err
	}
	return router, nil
}

func (a *app) newPublisher(cfg config.Config) (events.Publisher, error) {
	a.bus = events.NewMemoryBus(cfg.Events.History)
	if !cfg.NATS.Enabled {
		return a.bus, nil
	}

	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name("thirdeye"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	pub, err := events.NewNATSPublisher(nc, cfg.NATS.SubjectPrefix)
	if err != nil {
		nc.Close()
		return nil, err
	}
	a.nc = nc
	a.logger.Underlying().Info("publishing eye events to NATS",
		zap.String("url", cfg.NATS.URL),
		zap.String("subject_prefix", cfg.NATS.SubjectPrefix),
	)
	return events.Multi{a.bus, pub}, nil
}

// Close releases connections and flushes telemetry. Safe on a partly built app.
func (a *app) Close(ctx context.Context) {
	if a.breakers != nil {
		a.breakers.LogStatuses(a.logger.Underlying())
	}
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			a.nc.Close()
		}
	}
	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Underlying().Warn("telemetry shutdown failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
