package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestConfig_Validate(t *testing.T) {
	enabled := func(mut func(*Config)) Config {
		c := DefaultConfig()
		c.Enabled = true
		mut(&c)
		return c
	}

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"disabled ignores junk", Config{SampleRate: 7}, false},
		{"enabled defaults", enabled(func(*Config) {}), false},
		{"no endpoint", enabled(func(c *Config) { c.Endpoint = "" }), true},
		{"bad protocol", enabled(func(c *Config) { c.Protocol = "udp" }), true},
		{"insecure remote", enabled(func(c *Config) { c.Endpoint = "otel.example.com:4317" }), true},
		{"secure remote", enabled(func(c *Config) {
			c.Endpoint = "otel.example.com:4317"
			c.Insecure = false
		}), false},
		{"sample rate", enabled(func(c *Config) { c.SampleRate = 1.5 }), true},
		{"export interval", enabled(func(c *Config) { c.ExportInterval = 0 }), true},
		{"shutdown timeout", enabled(func(c *Config) { c.ShutdownTimeout = 0 }), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsLocalEndpoint(t *testing.T) {
	local := []string{"localhost:4317", "127.0.0.1:4317", "[::1]:4317", "http://localhost:4318", "::1"}
	for _, ep := range local {
		assert.True(t, Config{Endpoint: ep}.isLocalEndpoint(), ep)
	}
	assert.False(t, Config{Endpoint: "collector:4317"}.isLocalEndpoint())
	assert.False(t, Config{Endpoint: "https://otel.example.com"}.isLocalEndpoint())
}

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), DefaultConfig())
	require.NoError(t, err)

	assert.False(t, tel.IsEnabled())
	assert.Equal(t, HealthStatus{Healthy: true}, tel.Health())
	assert.NotNil(t, tel.Tracer("x"))
	assert.NotNil(t, tel.Meter("x"))
	assert.NotNil(t, tel.LoggerProvider())
	assert.NoError(t, tel.ForceFlush(context.Background()))
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.False(t, tel.Health().Healthy)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.SampleRate = -1
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNew_EnabledLocal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.ShutdownTimeout = 100 * time.Millisecond

	tel, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, tel.IsEnabled())
	_ = tel.Shutdown(context.Background())
}

func TestNilTelemetry(t *testing.T) {
	var tel *Telemetry
	assert.NotNil(t, tel.Tracer("x"))
	assert.NotNil(t, tel.Meter("x"))
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.True(t, tel.Health().Degraded)
	assert.False(t, tel.IsEnabled())
}

func TestSetDegraded(t *testing.T) {
	tel, err := New(context.Background(), DefaultConfig())
	require.NoError(t, err)
	tel.setDegraded("meter provider: %s", "boom")

	h := tel.Health()
	assert.True(t, h.Degraded)
	assert.Equal(t, []string{"meter provider: boom"}, h.Reasons)
}

func TestTestTelemetry(t *testing.T) {
	tt := NewTestTelemetry()
	ctx := context.Background()

	_, span := tt.Tracer("test").Start(ctx, "eye.invoke")
	span.SetAttributes(attribute.String("eye", "rinnegan/plan_review"))
	span.End()

	tt.AssertSpanExists(t, "eye.invoke")
	tt.AssertSpanAttribute(t, "eye.invoke", "eye", "rinnegan/plan_review")

	counter, err := tt.Meter("test").Int64Counter("eye.calls")
	require.NoError(t, err)
	counter.Add(ctx, 2)

	rm, err := tt.Collect(ctx)
	require.NoError(t, err)
	m, ok := FindMetric(rm, "eye.calls")
	require.True(t, ok)
	sum := m.Data.(metricdata.Sum[int64])
	assert.EqualValues(t, 2, sum.DataPoints[0].Value)
}
