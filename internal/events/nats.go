package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is the root of every pipeline subject.
const DefaultSubjectPrefix = "thirdeye.pipeline"

var ErrNoConnection = errors.New("nats connection is required")

// NATSPublisher publishes events as JSON to
// <prefix>.<session_id>.<namespace>.<action>.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSPublisher wraps an established connection.
func NewNATSPublisher(nc *nats.Conn, prefix string) (*NATSPublisher, error) {
	if nc == nil {
		return nil, ErrNoConnection
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{nc: nc, prefix: prefix}, nil
}

// Subject returns the subject ev is published on.
func (p *NATSPublisher) Subject(ev EyeEvent) string {
	return Subject(p.prefix, ev.SessionID, ev.Eye)
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(ctx context.Context, ev EyeEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.nc.Publish(p.Subject(ev), data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subject builds a pipeline subject. Eye names split on the slash into two
// tokens so subscribers can filter by namespace.
func Subject(prefix, sessionID, eye string) string {
	ns, action, found := strings.Cut(eye, "/")
	parts := []string{prefix, token(sessionID), token(ns)}
	if found {
		parts = append(parts, token(action))
	}
	return strings.Join(parts, ".")
}

// SessionWildcard subscribes to every event of one session.
func SessionWildcard(prefix, sessionID string) string {
	return prefix + "." + token(sessionID) + ".>"
}

// token strips characters that carry meaning in NATS subjects.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}
