package eyes

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/events"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/recovery"
)

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*/[a-z][a-z0-9_]*$`)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithPublisher sets where invocation events go.
func WithPublisher(p events.Publisher) Option {
	return func(r *Registry) {
		if p != nil {
			r.publisher = p
		}
	}
}

// WithTracer sets the tracer for invocation spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Registry) {
		if t != nil {
			r.tracer = t
		}
	}
}

// WithMetrics sets the OTEL instruments.
func WithMetrics(m *Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// Registry holds eye capabilities and per-session phase state.
//
// Capabilities and sessions are guarded by separate locks. No lock is held
// while a handler runs.
type Registry struct {
	logger    *zap.Logger
	publisher events.Publisher
	tracer    trace.Tracer
	metrics   *Metrics

	mu      sync.RWMutex
	caps    map[string]Capability
	order   []string
	byPhase map[Phase][]string

	sessMu   sync.Mutex
	sessions map[string]PhaseSet
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		logger:    zap.NewNop(),
		publisher: events.Nop{},
		tracer:    defaultTracer(),
		caps:      make(map[string]Capability),
		byPhase:   make(map[Phase][]string),
		sessions:  make(map[string]PhaseSet),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds or replaces a capability. Replacing keeps the original
// registration position and logs a warning. The dependency graph is not
// validated.
func (r *Registry) Register(c Capability) error {
	if !namePattern.MatchString(c.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, c.Name)
	}
	if c.Handler == nil {
		return fmt.Errorf("%s: %w", c.Name, ErrNilHandler)
	}
	c = c.clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.caps[c.Name]; ok {
		r.logger.Warn("overwriting eye capability", zap.String("eye", c.Name))
		if old.Phase != c.Phase {
			r.byPhase[old.Phase] = removeName(r.byPhase[old.Phase], c.Name)
			r.byPhase[c.Phase] = append(r.byPhase[c.Phase], c.Name)
		}
	} else {
		r.order = append(r.order, c.Name)
		r.byPhase[c.Phase] = append(r.byPhase[c.Phase], c.Name)
	}
	r.caps[c.Name] = c

	r.logger.Debug("registered eye",
		zap.String("eye", c.Name),
		zap.String("phase", string(c.Phase)),
	)
	return nil
}

// MustRegister is Register that panics on error. For static wiring only.
func (r *Registry) MustRegister(c Capability) {
	if err := r.Register(c); err != nil {
		panic(err)
	}
}

// Invoke runs the named eye for a session.
//
// Preconditions are checked in order: the eye exists, its required phases are
// complete, and reasoning is present if required. Handler errors are returned
// unchanged. When the handler reports ok, the eye's provided phases are marked
// complete for the session.
func (r *Registry) Invoke(ctx context.Context, name string, rc RequestContext, payload map[string]any, reasoningMD string) (Response, error) {
	ctx, span := r.tracer.Start(ctx, "eyes.invoke", trace.WithAttributes(spanAttributes(name, rc)...))
	defer span.End()

	c, ok := r.Get(name)
	if !ok {
		return Response{}, r.reject(ctx, span, name, recovery.UnknownCapability(name))
	}

	if err := r.checkPhases(c, rc.SessionID); err != nil {
		return Response{}, r.reject(ctx, span, name, err)
	}

	if c.RequiresReasoning && strings.TrimSpace(reasoningMD) == "" {
		return Response{}, r.reject(ctx, span, name, recovery.MissingReasoning(name))
	}

	req := Request{Context: rc, Payload: payload}
	if reasoningMD != "" {
		req.ReasoningMD = reasoningMD
	}

	start := time.Now()
	resp, err := c.Handler(ctx, req)
	elapsed := time.Since(start)

	ev := events.NewEyeEvent(rc.SessionID, name)
	ev.RequestID = rc.RequestID
	ev.DurationMS = elapsed.Milliseconds()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.metrics.recordInvocation(ctx, name, "error", elapsed)
		r.logger.Warn("eye handler failed",
			zap.String("eye", name),
			zap.String("session_id", rc.SessionID),
			zap.Error(err),
		)
		ev.Error = err.Error()
		if rec, ok := recovery.As(err); ok {
			ev.Code = string(rec.Code())
		}
		r.publish(ctx, ev)
		return Response{}, err
	}

	span.SetAttributes(attribute.Bool("eye.ok", resp.OK), attribute.String("eye.code", resp.Code))
	outcome := "not_ok"
	if resp.OK {
		outcome = "ok"
		r.MarkPhaseComplete(rc.SessionID, c.ProvidesPhases...)
		ev.Phases = phaseStrings(c.ProvidesPhases)
	}
	r.metrics.recordInvocation(ctx, name, outcome, elapsed)
	r.logger.Debug("eye invoked",
		zap.String("eye", name),
		zap.String("session_id", rc.SessionID),
		zap.Bool("ok", resp.OK),
		zap.String("code", resp.Code),
		zap.Duration("elapsed", elapsed),
	)

	ev.OK = resp.OK
	ev.Code = resp.Code
	r.publish(ctx, ev)
	return resp, nil
}

func (r *Registry) checkPhases(c Capability, sessionID string) *recovery.Error {
	r.sessMu.Lock()
	done := r.sessions[sessionID]
	missing := done.Missing(c.RequiresPhases)
	completed := done.Sorted()
	r.sessMu.Unlock()

	if len(missing) == 0 {
		return nil
	}
	return recovery.PipelineOrder(c.Name, r.providersOf(missing), sessionID,
		recovery.WithContext("missing_phases", phaseStrings(missing)),
		recovery.WithContext("completed_phases", phaseStrings(completed)),
	)
}

// providersOf names the eyes that provide any of phases, in registration order.
func (r *Registry) providersOf(phases []Phase) []string {
	want := NewPhaseSet(phases...)
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, name := range r.order {
		for _, p := range r.caps[name].ProvidesPhases {
			if want.Has(p) {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

func (r *Registry) reject(ctx context.Context, span trace.Span, name string, err *recovery.Error) error {
	span.SetStatus(codes.Error, string(err.Code()))
	span.SetAttributes(attribute.String("eye.error_code", string(err.Code())))
	r.metrics.recordRejection(ctx, name, string(err.Code()))
	r.logger.Debug("eye invocation rejected",
		zap.String("eye", name),
		zap.String("error_code", string(err.Code())),
	)
	return err
}

// publish is best effort; failures are logged only.
func (r *Registry) publish(ctx context.Context, ev events.EyeEvent) {
	if err := r.publisher.Publish(ctx, ev); err != nil {
		r.logger.Warn("failed to publish eye event",
			zap.String("eye", ev.Eye),
			zap.Error(err),
		)
	}
}

// Get returns a copy of the named capability.
func (r *Registry) Get(name string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[name]
	if !ok {
		return Capability{}, false
	}
	return c.clone(), true
}

// Names returns every registered eye in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Infos describes every registered eye in registration order.
func (r *Registry) Infos() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.caps[name].Info())
	}
	return out
}

// ByPhase returns the eyes whose primary phase is p, in registration order.
func (r *Registry) ByPhase(p Phase) []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := r.byPhase[p]
	out := make([]Capability, 0, len(names))
	for _, name := range r.order {
		if containsName(names, name) {
			out = append(out, r.caps[name].clone())
		}
	}
	return out
}

// ListAvailable returns the eyes whose required phases are all complete for
// the session, in registration order.
func (r *Registry) ListAvailable(sessionID string) []string {
	r.sessMu.Lock()
	done := NewPhaseSet(r.sessions[sessionID].Sorted()...)
	r.sessMu.Unlock()

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []string{}
	for _, name := range r.order {
		if len(done.Missing(r.caps[name].RequiresPhases)) == 0 {
			out = append(out, name)
		}
	}
	return out
}

// CanInvoke reports whether the eye's phase prerequisites are met for the
// session, with a reason when they are not. It has no side effects.
func (r *Registry) CanInvoke(name, sessionID string) (bool, string) {
	c, ok := r.Get(name)
	if !ok {
		return false, fmt.Sprintf("Unknown eye: %s", name)
	}
	r.sessMu.Lock()
	missing := r.sessions[sessionID].Missing(c.RequiresPhases)
	r.sessMu.Unlock()

	if len(missing) > 0 {
		return false, fmt.Sprintf("Missing required phases: [%s]", strings.Join(phaseStrings(missing), ", "))
	}
	return true, "OK"
}

// MarkPhaseComplete records phases as complete for a session.
func (r *Registry) MarkPhaseComplete(sessionID string, phases ...Phase) {
	if len(phases) == 0 {
		return
	}
	r.sessMu.Lock()
	defer r.sessMu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		s = make(PhaseSet)
		r.sessions[sessionID] = s
	}
	s.Add(phases...)
}

// CompletedPhases returns the session's completed phases in pipeline order.
func (r *Registry) CompletedPhases(sessionID string) []Phase {
	r.sessMu.Lock()
	defer r.sessMu.Unlock()
	return r.sessions[sessionID].Sorted()
}

// ResetSession forgets all phase progress for a session.
func (r *Registry) ResetSession(sessionID string) {
	r.sessMu.Lock()
	defer r.sessMu.Unlock()
	delete(r.sessions, sessionID)
}

// SessionCount returns the number of sessions with recorded progress.
func (r *Registry) SessionCount() int {
	r.sessMu.Lock()
	defer r.sessMu.Unlock()
	return len(r.sessions)
}

func removeName(names []string, name string) []string {
	out := names[:0]
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
