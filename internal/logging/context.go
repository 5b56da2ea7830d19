package logging

import (
	"context"
	"regexp"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type (
	sessionCtxKey struct{}
	requestCtxKey struct{}
	eyeCtxKey     struct{}
)

const maxIDLen = 128

var (
	idPattern  = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)
	eyePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*/[a-z][a-z0-9_]*$`)
)

func validID(id string) bool {
	return id != "" && len(id) <= maxIDLen && idPattern.MatchString(id)
}

// ContextFields extracts correlation fields from ctx.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}
	if id := SessionIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("session.id", id))
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}
	if eye := EyeFromContext(ctx); eye != "" {
		fields = append(fields, zap.String("eye", eye))
	}
	return fields
}

// WithSessionID tags ctx with a pipeline session. Session ids come from
// callers, so an invalid one leaves ctx untouched instead of failing.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if !validID(sessionID) {
		return ctx
	}
	return context.WithValue(ctx, sessionCtxKey{}, sessionID)
}

// SessionIDFromContext returns the session id stored by WithSessionID.
func SessionIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(sessionCtxKey{}).(string)
	return s
}

// WithRequestID tags ctx with a request id. Invalid ids are ignored.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if !validID(requestID) {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext returns the request id stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(requestCtxKey{}).(string)
	return s
}

// WithEye tags ctx with the eye being invoked. Names that are not
// <namespace>/<action> are ignored.
func WithEye(ctx context.Context, eye string) context.Context {
	if !eyePattern.MatchString(eye) {
		return ctx
	}
	return context.WithValue(ctx, eyeCtxKey{}, eye)
}

// EyeFromContext returns the eye stored by WithEye.
func EyeFromContext(ctx context.Context) string {
	s, _ := ctx.Value(eyeCtxKey{}).(string)
	return s
}
