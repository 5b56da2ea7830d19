package reasoning

import (
	"context"
	"encoding/json"
	"strings"
)

// Offline is a deterministic backend for local runs and tests. It approves
// every request and never asks clarifying questions.
type Offline struct{}

func (Offline) Name() string { return "offline" }

// Complete returns an approving verdict that echoes the size of the input.
func (Offline) Complete(ctx context.Context, messages []Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	words := 0
	for _, m := range messages {
		if m.Role == RoleUser {
			words += len(strings.Fields(m.Content))
		}
	}
	verdict := map[string]any{
		"ok":   true,
		"code": "OK_OFFLINE_REVIEW",
		"md":   "### Offline review\nNo reasoning backend is configured; the submission was accepted without analysis.",
		"data": map[string]any{
			"questions":   []string{},
			"input_words": words,
		},
	}
	out, err := json.Marshal(verdict)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
