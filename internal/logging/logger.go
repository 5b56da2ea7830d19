package logging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap with context-aware methods and a level that can change at
// runtime.
type Logger struct {
	zap   *zap.Logger
	level zap.AtomicLevel
}

// Option configures New.
type Option func(*options)

type options struct {
	writer       zapcore.WriteSyncer
	otelProvider log.LoggerProvider
}

// WithWriter sends encoded entries to w instead of stderr. Stdout is left
// alone because the MCP stdio transport owns it.
func WithWriter(w zapcore.WriteSyncer) Option {
	return func(o *options) { o.writer = w }
}

// WithOTELProvider enables the OTEL log bridge when cfg.OTEL is set.
func WithOTELProvider(p log.LoggerProvider) Option {
	return func(o *options) { o.otelProvider = p }
}

// New builds a logger from cfg.
func New(cfg Config, opts ...Option) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	o := options{writer: zapcore.Lock(os.Stderr)}
	for _, opt := range opts {
		opt(&o)
	}

	lvl, _ := LevelFromString(cfg.Level)
	level := zap.NewAtomicLevelAt(lvl)

	encoder, err := NewRedactingEncoder(newEncoder(cfg.Format), cfg.Redaction)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(encoder, o.writer, level)
	if cfg.OTEL && o.otelProvider != nil {
		core = zapcore.NewTee(core, otelzap.NewCore("third-eye", otelzap.WithLoggerProvider(o.otelProvider)))
	}
	core = newSampledCore(core, cfg.Sampling)

	var zopts []zap.Option
	if cfg.Caller {
		zopts = append(zopts, zap.AddCaller(), zap.AddCallerSkip(1))
	}
	zopts = append(zopts, zap.AddStacktrace(zapcore.ErrorLevel))

	z := zap.New(core, zopts...)
	if len(cfg.Fields) > 0 {
		fields := make([]zap.Field, 0, len(cfg.Fields))
		for k, v := range cfg.Fields {
			fields = append(fields, zap.String(k, v))
		}
		z = z.With(fields...)
	}
	return &Logger{zap: z, level: level}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop(), level: zap.NewAtomicLevel()}
}

func newEncoder(format string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = encodeLevel

	if format == "console" {
		return zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewJSONEncoder(encoderCfg)
}

// encodeLevel names TraceLevel "trace" instead of zap's "Level(-2)".
func encodeLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l == TraceLevel {
		enc.AppendString("trace")
		return
	}
	zapcore.LowercaseLevelEncoder(l, enc)
}

// SetLevel changes the minimum level of every logger derived from l.
func (l *Logger) SetLevel(level string) error {
	lvl, err := LevelFromString(level)
	if err != nil {
		return err
	}
	l.level.SetLevel(lvl)
	return nil
}

// Level returns the current minimum level.
func (l *Logger) Level() zapcore.Level { return l.level.Level() }

func (l *Logger) Trace(ctx context.Context, msg string, fields ...zap.Field) {
	if ce := l.zap.Check(TraceLevel, msg); ce != nil {
		ce.Write(append(ContextFields(ctx), fields...)...)
	}
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Debug(msg, append(ContextFields(ctx), fields...)...)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Info(msg, append(ContextFields(ctx), fields...)...)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Warn(msg, append(ContextFields(ctx), fields...)...)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Error(msg, append(ContextFields(ctx), fields...)...)
}

// With returns a child logger sharing l's level.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{zap: l.zap.With(fields...), level: l.level}
}

// Named returns a child logger with a name segment appended.
func (l *Logger) Named(name string) *Logger {
	return &Logger{zap: l.zap.Named(name), level: l.level}
}

// Underlying returns the wrapped zap logger for packages that take one.
func (l *Logger) Underlying() *zap.Logger { return l.zap }

// Sync flushes buffered entries, ignoring the harmless errors returned when
// the output is a terminal or pipe.
func (l *Logger) Sync() error {
	err := l.zap.Sync()
	var errno syscall.Errno
	if errors.As(err, &errno) && (errno == syscall.EINVAL || errno == syscall.ENOTTY) {
		return nil
	}
	return err
}
