package breaker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/recovery"
)

// State is the breaker's current mode.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Metrics are the breaker's counters. FailureCount and SuccessCount are
// consecutive counts; the Total fields never reset.
type Metrics struct {
	FailureCount    int       `json:"failure_count"`
	SuccessCount    int       `json:"success_count"`
	TotalRequests   int64     `json:"total_requests"`
	TotalFailures   int64     `json:"total_failures"`
	TotalSuccesses  int64     `json:"total_successes"`
	LastFailureTime time.Time `json:"last_failure_time,omitempty"`
	LastSuccessTime time.Time `json:"last_success_time,omitempty"`
}

// Status is a point-in-time snapshot of a breaker.
type Status struct {
	Name             string    `json:"name"`
	State            State     `json:"state"`
	StateChangedAt   time.Time `json:"state_changed_at"`
	HalfOpenRequests int       `json:"half_open_requests"`
	Metrics          Metrics   `json:"metrics"`
	Config           Config    `json:"config"`
}

// StateObserver is notified on every transition. It runs with the breaker
// locked and must not call back into the breaker.
type StateObserver func(name string, from, to State)

// Option configures a Breaker.
type Option func(*Breaker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// WithLogger sets the logger used for transitions.
func WithLogger(l *zap.Logger) Option {
	return func(b *Breaker) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithStateObserver registers a transition observer.
func WithStateObserver(fn StateObserver) Option {
	return func(b *Breaker) { b.observer = fn }
}

// Breaker guards calls to one named backend.
type Breaker struct {
	name     string
	cfg      Config
	now      func() time.Time
	logger   *zap.Logger
	observer StateObserver

	mu               sync.Mutex
	state            State
	stateChangedAt   time.Time
	halfOpenRequests int
	metrics          Metrics
}

// New creates a closed breaker. Zero config fields take their defaults.
func New(name string, cfg Config, opts ...Option) (*Breaker, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("breaker %s: %w", name, err)
	}
	b := &Breaker{
		name:   name,
		cfg:    cfg,
		now:    time.Now,
		logger: zap.NewNop(),
		state:  StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.stateChangedAt = b.now()
	return b, nil
}

// Name returns the breaker name.
func (b *Breaker) Name() string { return b.name }

// Config returns the breaker thresholds.
func (b *Breaker) Config() Config { return b.cfg }

// State returns the current state without side effects. An open breaker whose
// reset timeout has elapsed still reports open until the next call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Status returns a snapshot of the breaker.
func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{
		Name:             b.name,
		State:            b.state,
		StateChangedAt:   b.stateChangedAt,
		HalfOpenRequests: b.halfOpenRequests,
		Metrics:          b.metrics,
		Config:           b.cfg,
	}
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(StateClosed)
	b.metrics.FailureCount = 0
	b.metrics.SuccessCount = 0
	b.halfOpenRequests = 0
}

// Call runs fn under breaker protection.
//
// fn receives a context bounded by the configured timeout. If the timeout
// fires first, fn is abandoned, a failure is recorded and a backend-timeout
// recoverable error is returned. Any other error from fn is recorded as a
// failure and returned unchanged. Cancellation of ctx itself is returned as
// is and counts as neither success nor failure, as does an error wrapped
// with Ignore.
func (b *Breaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	defer b.release()

	callCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("breaker %s: panic in protected call: %v", b.name, r)
			}
		}()
		done <- fn(callCtx)
	}()

	select {
	case err := <-done:
		if err == nil {
			b.recordSuccess()
			return nil
		}
		var skip *ignoredError
		if errors.As(err, &skip) {
			return skip.err
		}
		if ctx.Err() != nil {
			return err
		}
		if errors.Is(err, context.DeadlineExceeded) && callCtx.Err() != nil {
			return b.timedOut()
		}
		b.recordFailure(err)
		return err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return b.timedOut()
	}
}

// Ignore marks err so Call returns it without counting a success or a
// failure. Use it for rejections that say nothing about the protected
// backend's health, such as a client-side rate limit.
func Ignore(err error) error {
	if err == nil {
		return nil
	}
	return &ignoredError{err: err}
}

type ignoredError struct{ err error }

func (e *ignoredError) Error() string { return e.err.Error() }
func (e *ignoredError) Unwrap() error { return e.err }

// Execute runs fn under b's protection and returns its value.
func Execute[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := b.Call(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func (b *Breaker) timedOut() error {
	err := recovery.BackendTimeout(int(b.cfg.Timeout.Seconds()))
	b.recordFailure(err)
	return err
}

// admit decides whether a call may proceed. Rejections skip release.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.metrics.TotalRequests++

	if b.state == StateOpen {
		elapsed := b.now().Sub(b.stateChangedAt)
		if elapsed < b.cfg.ResetTimeout {
			return recovery.CircuitOpen(b.name, retryAfterSeconds(b.cfg.ResetTimeout-elapsed))
		}
		b.transition(StateHalfOpen)
	}

	if b.state == StateHalfOpen {
		if b.halfOpenRequests >= b.cfg.HalfOpenMaxRequests {
			return recovery.CircuitOpen(b.name, halfOpenRetryAfter)
		}
		b.halfOpenRequests++
	}
	return nil
}

// release returns a half-open slot. The counter tracks the state at release
// time, not at admission, so it can drift; it is reset on entry to half-open.
func (b *Breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen {
		b.halfOpenRequests--
	}
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.metrics.SuccessCount++
	b.metrics.TotalSuccesses++
	b.metrics.LastSuccessTime = b.now()

	switch b.state {
	case StateHalfOpen:
		if b.metrics.SuccessCount >= b.cfg.SuccessThreshold {
			b.transition(StateClosed)
			b.metrics.FailureCount = 0
			b.metrics.SuccessCount = 0
		}
	case StateClosed:
		b.metrics.FailureCount = 0
	}
}

func (b *Breaker) recordFailure(cause error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.metrics.FailureCount++
	b.metrics.TotalFailures++
	b.metrics.LastFailureTime = b.now()

	switch b.state {
	case StateHalfOpen:
		b.logger.Warn("probe failed, reopening circuit",
			zap.String("breaker", b.name),
			zap.Error(cause),
		)
		b.transition(StateOpen)
		b.metrics.SuccessCount = 0
	case StateClosed:
		if b.metrics.FailureCount >= b.cfg.FailureThreshold {
			b.logger.Warn("failure threshold reached, opening circuit",
				zap.String("breaker", b.name),
				zap.Int("failures", b.metrics.FailureCount),
				zap.Error(cause),
			)
			b.transition(StateOpen)
			b.metrics.SuccessCount = 0
		}
	}
}

// transition must be called with mu held.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.stateChangedAt = b.now()
	if to == StateHalfOpen {
		b.halfOpenRequests = 0
	}

	b.logger.Info("circuit state changed",
		zap.String("breaker", b.name),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	if b.observer != nil {
		b.observer(b.name, from, to)
	}
}

func retryAfterSeconds(remaining time.Duration) int {
	s := int(math.Ceil(remaining.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
