package breaker

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_GetReturnsSameInstance(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	a := r.Get("llm:groq")
	b := r.Get("llm:groq")
	assert.Same(t, a, b)
	assert.Equal(t, DefaultConfig(), a.Config())
}

func TestRegistry_Overrides(t *testing.T) {
	r, err := NewRegistry(
		WithDefaults(Config{FailureThreshold: 7}),
		WithOverride("llm:openrouter", Config{FailureThreshold: 2, Timeout: time.Second}),
	)
	require.NoError(t, err)

	assert.Equal(t, 7, r.Get("llm:groq").Config().FailureThreshold)
	override := r.Get("llm:openrouter").Config()
	assert.Equal(t, 2, override.FailureThreshold)
	assert.Equal(t, time.Second, override.Timeout)
	assert.Equal(t, DefaultResetTimeout, override.ResetTimeout)
}

func TestRegistry_InvalidConfig(t *testing.T) {
	_, err := NewRegistry(WithOverride("bad", Config{Timeout: -time.Second}))
	assert.ErrorIs(t, err, ErrInvalidTimeout)
}

func TestRegistry_LookupDoesNotCreate(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	_, ok := r.Lookup("svc")
	assert.False(t, ok)
	assert.Empty(t, r.Names())

	created := r.Get("svc")
	found, ok := r.Lookup("svc")
	require.True(t, ok)
	assert.Same(t, created, found)
}

func TestRegistry_Statuses(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	_ = r.Get("b").Call(context.Background(), succeeding)
	r.Get("a")

	statuses := r.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, "a", statuses[0].Name)
	assert.Equal(t, "b", statuses[1].Name)
	assert.EqualValues(t, 1, statuses[1].Metrics.TotalSuccesses)
	assert.Equal(t, []string{"a", "b"}, r.Names())
}

func TestCollector(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)
	_ = r.Get("llm:groq").Call(context.Background(), failing)

	c := NewCollector(r)
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	// 3 state series + 4 counters/gauges per breaker.
	assert.Equal(t, 7, testutil.CollectAndCount(c))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "third_eye_breaker_failures_total")
	assert.Contains(t, names, "third_eye_breaker_state")
}

func TestTransitionCounter(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	counter := NewTransitionCounter(reg)
	r, err := NewRegistry(
		WithDefaults(Config{FailureThreshold: 1}),
		WithBreakerOptions(WithStateObserver(counter.Observe)),
	)
	require.NoError(t, err)

	b := r.Get("llm:groq")
	_ = b.Call(context.Background(), failing)
	b.Reset()

	assert.Equal(t, 1.0, testutil.ToFloat64(counter.transitions.WithLabelValues("llm:groq", "closed", "open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(counter.transitions.WithLabelValues("llm:groq", "open", "closed")))
	assert.Equal(t, 2, testutil.CollectAndCount(counter.transitions))
}
