package recovery

import (
	"errors"
	"fmt"
	"maps"
)

// Error is a recoverable failure. It is immutable once constructed.
type Error struct {
	message        string
	code           Code
	steps          []string
	requiredInputs map[string]string
	autoRetryable  bool
	retryAfter     int
	context        map[string]any
	cause          error
}

// Option customizes an Error at construction time.
type Option func(*Error)

// WithSteps replaces the catalog recovery steps. Empty lists are ignored.
func WithSteps(steps ...string) Option {
	return func(e *Error) {
		if len(steps) > 0 {
			e.steps = append([]string(nil), steps...)
		}
	}
}

// WithRequiredInput records an input the caller must supply on retry.
func WithRequiredInput(name, description string) Option {
	return func(e *Error) {
		if e.requiredInputs == nil {
			e.requiredInputs = make(map[string]string)
		}
		e.requiredInputs[name] = description
	}
}

// WithContext attaches a free-form diagnostic value.
func WithContext(key string, value any) Option {
	return func(e *Error) {
		if e.context == nil {
			e.context = make(map[string]any)
		}
		e.context[key] = value
	}
}

// WithRetryAfter overrides the retry hint in seconds.
func WithRetryAfter(seconds int) Option {
	return func(e *Error) {
		e.retryAfter = seconds
	}
}

// WithCause wraps an underlying error.
func WithCause(err error) Option {
	return func(e *Error) {
		e.cause = err
	}
}

// New builds an Error for code using catalog defaults, then applies opts.
func New(code Code, message string, opts ...Option) *Error {
	cat := lookup(code)
	e := &Error{
		message:       message,
		code:          code,
		steps:         append([]string(nil), cat.steps...),
		autoRetryable: cat.autoRetryable,
		retryAfter:    cat.retryAfter,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches another *Error with the same code, so errors.Is works against
// sentinel-style values built with New.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.code == e.code
	}
	return false
}

func (e *Error) Code() Code { return e.code }

func (e *Error) Message() string { return e.message }

func (e *Error) AutoRetryable() bool { return e.autoRetryable }

// RetryAfter is the retry hint in seconds; zero means none.
func (e *Error) RetryAfter() int { return e.retryAfter }

func (e *Error) StatusClass() StatusClass { return StatusClassOf(e.code) }

// Steps returns a copy of the recovery steps.
func (e *Error) Steps() []string {
	return append([]string(nil), e.steps...)
}

// RequiredInputs returns a copy of the required inputs.
func (e *Error) RequiredInputs() map[string]string {
	return maps.Clone(e.requiredInputs)
}

// Context returns a copy of the diagnostic context.
func (e *Error) Context() map[string]any {
	return maps.Clone(e.context)
}

// AgentView is the serialized form handed to agents.
type AgentView struct {
	Error             string            `json:"error"`
	ErrorCode         Code              `json:"error_code"`
	Recoverable       bool              `json:"recoverable"`
	RecoverySteps     []string          `json:"recovery_steps"`
	RequiredInputs    map[string]string `json:"required_inputs"`
	AutoRetryable     bool              `json:"auto_retryable"`
	RetryAfterSeconds *int              `json:"retry_after_seconds,omitempty"`
	Context           map[string]any    `json:"context"`
}

// AgentView renders e for transport. Recoverable is always true.
func (e *Error) AgentView() AgentView {
	v := AgentView{
		Error:          e.message,
		ErrorCode:      e.code,
		Recoverable:    true,
		RecoverySteps:  e.Steps(),
		RequiredInputs: e.RequiredInputs(),
		AutoRetryable:  e.autoRetryable,
		Context:        e.Context(),
	}
	if v.RequiredInputs == nil {
		v.RequiredInputs = map[string]string{}
	}
	if v.Context == nil {
		v.Context = map[string]any{}
	}
	if e.retryAfter > 0 {
		ra := e.retryAfter
		v.RetryAfterSeconds = &ra
	}
	return v
}

// As extracts a *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsCode reports whether err's chain carries a recoverable error with code.
func IsCode(err error, code Code) bool {
	e, ok := As(err)
	return ok && e.code == code
}
