package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newBufferLogger(t *testing.T, cfg Config) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := New(cfg, WithWriter(zapcore.AddSync(&buf)))
	require.NoError(t, err)
	return l, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"trace", TraceLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := LevelFromString(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Format = "xml"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Redaction.Patterns = []string{"("}
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Sampling.Tick = 0
	assert.Error(t, cfg.Validate())
}

func TestLogger_WritesContextFields(t *testing.T) {
	l, buf := newBufferLogger(t, DefaultConfig())

	ctx := WithSessionID(context.Background(), "sess-1")
	ctx = WithRequestID(ctx, "req-9")
	ctx = WithEye(ctx, "rinnegan/plan_review")
	l.Info(ctx, "eye invoked", zap.Int("attempt", 1))
	require.NoError(t, l.Sync())

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "eye invoked", lines[0]["msg"])
	assert.Equal(t, "sess-1", lines[0]["session.id"])
	assert.Equal(t, "req-9", lines[0]["request.id"])
	assert.Equal(t, "rinnegan/plan_review", lines[0]["eye"])
	assert.Equal(t, "third-eye", lines[0]["service"])
	assert.Contains(t, lines[0], "ts")
}

func TestLogger_SetLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sampling.Enabled = false
	l, buf := newBufferLogger(t, cfg)
	ctx := context.Background()

	l.Debug(ctx, "hidden")
	require.NoError(t, l.SetLevel("debug"))
	assert.Equal(t, zapcore.DebugLevel, l.Level())
	l.Named("child").Debug(ctx, "visible")

	assert.Error(t, l.SetLevel("loud"))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "visible", lines[0]["msg"])
	assert.Equal(t, "child", lines[0]["logger"])
}

func TestLogger_TraceLevelName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "trace"
	cfg.Sampling.Enabled = false
	l, buf := newBufferLogger(t, cfg)

	l.Trace(context.Background(), "wire bytes")
	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "trace", lines[0]["level"])
}

func TestLogger_Redaction(t *testing.T) {
	l, buf := newBufferLogger(t, DefaultConfig())

	l.With(zap.String("token", "abc")).Info(context.Background(), "calling provider",
		zap.String("api_key", "sk-live-123"),
		zap.String("header", "Bearer abc.def"),
		zap.String("model", "llama"),
	)
	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "[REDACTED]", lines[0]["token"])
	assert.Equal(t, "[REDACTED]", lines[0]["api_key"])
	assert.Equal(t, "[REDACTED:pattern]", lines[0]["header"])
	assert.Equal(t, "llama", lines[0]["model"])
	assert.NotContains(t, buf.String(), "sk-live-123")
}

func TestRedactedString(t *testing.T) {
	f := RedactedString("key", "12345")
	assert.Equal(t, "[REDACTED:5]", f.String)
}

func TestSampling_NeverDropsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sampling.Initial = 1
	cfg.Sampling.Thereafter = 1000
	l, buf := newBufferLogger(t, cfg)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		l.Info(ctx, "repeated")
		l.Error(ctx, "failure")
	}

	infos, errs := 0, 0
	for _, line := range decodeLines(t, buf) {
		switch line["msg"] {
		case "repeated":
			infos++
		case "failure":
			errs++
		}
	}
	assert.Equal(t, 1, infos)
	assert.Equal(t, 10, errs)
}

func TestContextSetters_IgnoreInvalid(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, SessionIDFromContext(WithSessionID(ctx, "has space")))
	assert.Empty(t, SessionIDFromContext(WithSessionID(ctx, strings.Repeat("a", 200))))
	assert.Empty(t, RequestIDFromContext(WithRequestID(ctx, "")))
	assert.Empty(t, EyeFromContext(WithEye(ctx, "not-an-eye")))
	assert.Equal(t, "sharingan/clarify", EyeFromContext(WithEye(ctx, "sharingan/clarify")))
}

func TestContextFields_Trace(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	tl := NewTestLogger()
	tl.Info(ctx, "traced")
	entries := tl.FilterMessage("traced").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.Equal(t, true, fields["trace_sampled"])
}

func TestTestLogger_Assertions(t *testing.T) {
	tl := NewTestLogger()
	ctx := WithSessionID(context.Background(), "s1")
	tl.Warn(ctx, "breaker opened", zap.String("breaker", "llm:groq"))
	tl.Info(ctx, "provider configured", RedactedString("api_key", "sk-1"))

	tl.AssertLogged(t, zapcore.WarnLevel, "breaker opened")
	tl.AssertNotLogged(t, zapcore.ErrorLevel, "breaker opened")
	tl.AssertField(t, "breaker opened", "breaker", "llm:groq")
	tl.AssertField(t, "breaker opened", "session.id", "s1")
	tl.AssertNoSecrets(t)

	tl.Reset()
	assert.Empty(t, tl.All())
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info(context.Background(), "dropped")
	assert.NotNil(t, l.Underlying())
}
