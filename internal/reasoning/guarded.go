package reasoning

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/breaker"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/recovery"
)

// BreakerPrefix namespaces reasoning breakers in the shared registry.
const BreakerPrefix = "llm:"

// DefaultMaxWait is how long Guarded waits for a rate-limit token before
// giving up with a rate-limit error.
const DefaultMaxWait = 2 * time.Second

// GuardOptions configures Guarded.
type GuardOptions struct {
	// RatePerSecond limits requests to the backend; zero disables limiting.
	RatePerSecond float64
	Burst         int
	MaxWait       time.Duration
	Metrics       *Metrics
	Logger        *zap.Logger
}

// Guarded wraps a Backend with rate limiting, a circuit breaker and metrics.
type Guarded struct {
	backend Backend
	breaker *breaker.Breaker
	limiter *rate.Limiter
	maxWait time.Duration
	metrics *Metrics
	logger  *zap.Logger
}

// Guard wraps backend. Its breaker comes from breakers under
// BreakerPrefix+backend.Name().
func Guard(backend Backend, breakers *breaker.Registry, opts GuardOptions) *Guarded {
	g := &Guarded{
		backend: backend,
		breaker: breakers.Get(BreakerPrefix + backend.Name()),
		maxWait: opts.MaxWait,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
	if g.maxWait <= 0 {
		g.maxWait = DefaultMaxWait
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return g
}

func (g *Guarded) Name() string { return g.backend.Name() }

// Breaker exposes the breaker protecting this backend.
func (g *Guarded) Breaker() *breaker.Breaker { return g.breaker }

// Complete implements Backend.
func (g *Guarded) Complete(ctx context.Context, messages []Message) (string, error) {
	provider := g.backend.Name()
	tool := ToolFromContext(ctx)

	if err := g.wait(ctx); err != nil {
		g.metrics.fail(provider, tool, failureReason(err))
		return "", err
	}

	start := time.Now()
	out, err := breaker.Execute(ctx, g.breaker, func(ctx context.Context) (string, error) {
		return g.backend.Complete(ctx, messages)
	})
	g.metrics.observe(provider, tool, time.Since(start))
	if err != nil {
		g.metrics.fail(provider, tool, failureReason(err))
		g.logger.Warn("reasoning backend call failed",
			zap.String("provider", provider),
			zap.String("tool", tool),
			zap.Error(err),
		)
		return "", err
	}
	return out, nil
}

// wait takes a rate-limit token, refusing when the wait would exceed maxWait.
func (g *Guarded) wait(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	r := g.limiter.Reserve()
	if !r.OK() {
		return recovery.RateLimit(0)
	}
	delay := r.Delay()
	if delay == 0 {
		return nil
	}
	if delay > g.maxWait {
		r.Cancel()
		return recovery.RateLimit(int(math.Ceil(delay.Seconds())))
	}

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

func failureReason(err error) string {
	rec, ok := recovery.As(err)
	if !ok {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "cancelled"
		}
		return "error"
	}
	switch rec.Code() {
	case recovery.CodeBackendTimeout:
		return "timeout"
	case recovery.CodeCircuitOpen:
		return "circuit_open"
	case recovery.CodeRateLimit:
		return "rate_limited"
	default:
		return "error"
	}
}
