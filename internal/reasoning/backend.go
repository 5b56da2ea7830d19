// Package reasoning talks to the LLM backends that power the review eyes.
//
// Backends are wrapped by Guarded, which adds client-side rate limiting,
// circuit-breaker protection and Prometheus latency/failure metrics, and
// combined by Router, which falls back across providers in order.
package reasoning

import (
	"context"
	"errors"
)

// Role is a chat message role.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one chat message sent to a backend.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Backend completes a chat conversation.
type Backend interface {
	// Name identifies the backend in metrics, logs and breaker names.
	Name() string
	Complete(ctx context.Context, messages []Message) (string, error)
}

var (
	ErrNoBackends    = errors.New("no reasoning backends configured")
	ErrEmptyResponse = errors.New("backend returned no content")
)

type toolKey struct{}

// WithTool tags ctx with the eye on whose behalf a completion runs.
func WithTool(ctx context.Context, tool string) context.Context {
	return context.WithValue(ctx, toolKey{}, tool)
}

// ToolFromContext returns the tag set by WithTool, or "unknown".
func ToolFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(toolKey{}).(string); ok && v != "" {
		return v
	}
	return "unknown"
}
