package review

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/breaker"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/eyes"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/reasoning"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/recovery"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/redact"
)

// EyeBreakerPrefix namespaces per-eye breakers in the shared registry.
const EyeBreakerPrefix = "eye:"

// Options configures a Factory.
type Options struct {
	// Backend answers review requests. Defaults to reasoning.Offline.
	Backend reasoning.Backend
	// Breakers supplies one breaker per reasoning eye. Nil disables them.
	Breakers *breaker.Registry
	// Redactor scrubs secrets before a request leaves the process.
	Redactor *redact.Redactor
	Logger   *zap.Logger
}

// Factory builds handlers for the canonical pipeline.
type Factory struct {
	backend  reasoning.Backend
	breakers *breaker.Registry
	redactor *redact.Redactor
	logger   *zap.Logger
}

// NewFactory returns a Factory with defaults applied.
func NewFactory(opts Options) *Factory {
	f := &Factory{
		backend:  opts.Backend,
		breakers: opts.Breakers,
		redactor: opts.Redactor,
		logger:   opts.Logger,
	}
	if f.backend == nil {
		f.backend = reasoning.Offline{}
	}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}
	return f
}

// Build implements eyes.HandlerFactory.
func (f *Factory) Build(c eyes.Capability) (eyes.Handler, error) {
	switch c.Name {
	case eyes.EyeNavigator:
		return validated(c.Name, navigator), nil
	case eyes.EyePlanRequirements:
		return validated(c.Name, planRequirements), nil
	case eyes.EyeFinalApproval:
		return validated(c.Name, finalApproval), nil
	}
	return f.reviewer(c), nil
}

// validated runs the payload contract check before h.
func validated(eye string, h eyes.Handler) eyes.Handler {
	return func(ctx context.Context, req eyes.Request) (eyes.Response, error) {
		if err := ValidatePayload(eye, req.Payload); err != nil {
			return eyes.Response{}, err
		}
		return h(ctx, req)
	}
}

// reviewer builds a reasoning-backed handler. Contract, redaction and budget
// checks run outside the eye's breaker so bad requests never trip it.
func (f *Factory) reviewer(c eyes.Capability) eyes.Handler {
	core := f.complete(c.Name, profileFor(c.Name))
	if f.breakers != nil {
		core = f.protectLazily(c.Name, core)
	}

	return func(ctx context.Context, req eyes.Request) (eyes.Response, error) {
		if err := ValidatePayload(c.Name, req.Payload); err != nil {
			return eyes.Response{}, err
		}
		req, err := f.scrub(c.Name, req)
		if err != nil {
			return eyes.Response{}, err
		}
		if budget := req.Context.BudgetTokens; budget > 0 {
			body, err := json.Marshal(newEnvelope(c.Name, req))
			if err != nil {
				return eyes.Response{}, err
			}
			if need := EstimateTokens(string(body)); need > budget {
				return eyes.Response{}, recovery.BudgetExceeded(need, budget, req.Context.SessionID)
			}
		}
		return core(ctx, req)
	}
}

// protectLazily resolves the eye's breaker on first call, so only eyes that
// have actually run show up in the breaker registry.
func (f *Factory) protectLazily(eye string, h eyes.Handler) eyes.Handler {
	var (
		once      sync.Once
		protected eyes.Handler
	)
	return func(ctx context.Context, req eyes.Request) (eyes.Response, error) {
		once.Do(func() {
			protected = eyes.Protect(h, f.breakers.Get(EyeBreakerPrefix+eye))
		})
		return protected(ctx, req)
	}
}

// complete asks the backend for a verdict on req.
func (f *Factory) complete(eye string, p profile) eyes.Handler {
	return func(ctx context.Context, req eyes.Request) (eyes.Response, error) {
		body, err := json.Marshal(newEnvelope(eye, req))
		if err != nil {
			return eyes.Response{}, err
		}
		messages := []reasoning.Message{
			{Role: reasoning.RoleSystem, Content: p.persona + verdictFormat + langHint(req.Context.Lang)},
			{Role: reasoning.RoleUser, Content: string(body)},
		}

		reply, err := f.backend.Complete(reasoning.WithTool(ctx, eye), messages)
		if err != nil {
			return eyes.Response{}, err
		}
		v, err := parseVerdict(reply)
		if err != nil {
			f.logger.Warn("unparseable verdict",
				zap.String("eye", eye),
				zap.String("session_id", req.Context.SessionID),
				zap.Error(err),
			)
			return unparseable(eye, reply), nil
		}
		return toResponse(eye, p, v), nil
	}
}

// scrub redacts secrets from the payload and reasoning.
func (f *Factory) scrub(eye string, req eyes.Request) (eyes.Request, error) {
	if !f.redactor.Enabled() {
		return req, nil
	}
	payload, n, err := f.redactor.RedactPayload(req.Payload)
	if err != nil {
		return req, fmt.Errorf("redact payload: %w", err)
	}
	reasoningMD, err := f.redactor.Redact(req.ReasoningMD)
	if err != nil {
		return req, fmt.Errorf("redact reasoning: %w", err)
	}
	if total := n + reasoningMD.Count(); total > 0 {
		f.logger.Info("redacted secrets from submission",
			zap.String("eye", eye),
			zap.String("session_id", req.Context.SessionID),
			zap.Int("count", total),
		)
	}
	req.Payload = payload
	req.ReasoningMD = reasoningMD.Content
	return req, nil
}

// envelope is the user message sent to the backend.
type envelope struct {
	Eye         string         `json:"eye"`
	SessionID   string         `json:"session_id"`
	Lang        string         `json:"lang"`
	Payload     map[string]any `json:"payload"`
	ReasoningMD string         `json:"reasoning_md,omitempty"`
}

func newEnvelope(eye string, req eyes.Request) envelope {
	return envelope{
		Eye:         eye,
		SessionID:   req.Context.SessionID,
		Lang:        req.Context.Normalized().Lang,
		Payload:     req.Payload,
		ReasoningMD: req.ReasoningMD,
	}
}

func langHint(lang string) string {
	switch lang {
	case eyes.LangAR:
		return "\nWrite md and next_action in Arabic."
	case eyes.LangEN:
		return "\nWrite md and next_action in English."
	default:
		return "\nWrite md and next_action in the language of the submission."
	}
}

// EstimateTokens approximates the token count of s at four bytes per token.
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}
