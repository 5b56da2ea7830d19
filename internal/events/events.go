// Package events publishes pipeline events emitted after each eye invocation.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// EyeEvent records the outcome of one eye invocation.
type EyeEvent struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Eye        string    `json:"eye"`
	OK         bool      `json:"ok"`
	Code       string    `json:"code,omitempty"`
	Error      string    `json:"error,omitempty"`
	Phases     []string  `json:"phases,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	RequestID  string    `json:"request_id,omitempty"`
	At         time.Time `json:"at"`
}

// NewEyeEvent stamps an event with a fresh ID and the current time.
func NewEyeEvent(sessionID, eye string) EyeEvent {
	return EyeEvent{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Eye:       eye,
		At:        time.Now().UTC(),
	}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev EyeEvent) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, EyeEvent) error { return nil }

// Multi fans an event out to several publishers and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev EyeEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
