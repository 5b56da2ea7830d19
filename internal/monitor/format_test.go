package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/breaker"
)

func TestFormatState(t *testing.T) {
	assert.Contains(t, FormatState(breaker.StateClosed), "closed")
	assert.Contains(t, FormatState(breaker.StateOpen), "open")
	assert.Contains(t, FormatState(breaker.StateHalfOpen), "half-open")
	assert.Contains(t, FormatState(breaker.State("weird")), "weird")
}

func TestFormatSuccessRate(t *testing.T) {
	assert.Equal(t, "n/a", FormatSuccessRate(breaker.Metrics{}))
	assert.Equal(t, "75.0%", FormatSuccessRate(breaker.Metrics{TotalRequests: 4, TotalSuccesses: 3}))
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{-time.Second, "0s"},
		{1400 * time.Millisecond, "1s"},
		{90 * time.Second, "1m 30s"},
		{2*time.Hour + 5*time.Minute, "2h 5m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in), tt.in.String())
	}
}

func TestResetIn(t *testing.T) {
	now := fixedNow()
	s := status("llm:groq", breaker.StateOpen, 5)
	assert.Equal(t, 20*time.Second, ResetIn(s, now))

	assert.Zero(t, ResetIn(s, now.Add(time.Minute)))

	s.State = breaker.StateClosed
	assert.Zero(t, ResetIn(s, now))
}
