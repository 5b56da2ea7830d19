package recovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusClassOf(t *testing.T) {
	tests := []struct {
		code Code
		want StatusClass
	}{
		{CodeRateLimit, StatusTooManyRequests},
		{CodeBackendTimeout, StatusServiceUnavailable},
		{CodeCircuitOpen, StatusServiceUnavailable},
		{CodeBadPayload, StatusBadRequest},
		{CodeReasoningMissing, StatusBadRequest},
		{CodeInvalidContext, StatusBadRequest},
		{CodeBudgetExceeded, StatusConflict},
		{CodePipelineOrder, StatusConflict},
		{CodeUnknownEye, StatusBadRequest},
		{Code("E_SOMETHING_NEW"), StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusClassOf(tt.code))
		})
	}
}

func TestEveryCodeHasSteps(t *testing.T) {
	for _, code := range AllCodes() {
		assert.NotEmpty(t, DefaultSteps(code), code)
		assert.NotEmpty(t, New(code, "x").Steps(), code)
	}
	assert.NotEmpty(t, DefaultSteps(Code("E_UNCATALOGUED")))
}

func TestWithStepsIgnoresEmpty(t *testing.T) {
	e := New(CodeBadPayload, "bad", WithSteps())
	assert.Equal(t, DefaultSteps(CodeBadPayload), e.Steps())
}

func TestAgentView(t *testing.T) {
	e := CircuitOpen("llm:groq", 42)
	v := e.AgentView()

	assert.True(t, v.Recoverable)
	assert.Equal(t, CodeCircuitOpen, v.ErrorCode)
	assert.True(t, v.AutoRetryable)
	require.NotNil(t, v.RetryAfterSeconds)
	assert.Equal(t, 42, *v.RetryAfterSeconds)
	assert.Equal(t, "llm:groq", v.Context["service"])

	raw, err := json.Marshal(v)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, key := range []string{"error", "error_code", "recoverable", "recovery_steps", "required_inputs", "auto_retryable", "retry_after_seconds", "context"} {
		assert.Contains(t, decoded, key)
	}
}

func TestAgentViewOmitsZeroRetryAfter(t *testing.T) {
	v := MissingReasoning("mangekyo/review_impl").AgentView()
	assert.Nil(t, v.RetryAfterSeconds)
	assert.False(t, v.AutoRetryable)
	assert.Contains(t, v.RequiredInputs, "reasoning_md")

	raw, err := json.Marshal(v)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "retry_after_seconds")
}

func TestAccessorsReturnCopies(t *testing.T) {
	e := MissingContext("session_id", "lang")

	steps := e.Steps()
	steps[0] = "tampered"
	assert.NotEqual(t, "tampered", e.Steps()[0])

	inputs := e.RequiredInputs()
	inputs["context.session_id"] = "tampered"
	assert.NotEqual(t, "tampered", e.RequiredInputs()["context.session_id"])

	ctx := e.Context()
	ctx["injected"] = true
	assert.NotContains(t, e.Context(), "injected")
}

func TestPipelineOrder(t *testing.T) {
	t.Run("expected names are listed", func(t *testing.T) {
		e := PipelineOrder("jogan/confirm_intent", []string{"helper/rewrite_prompt"}, "s1")
		assert.Equal(t, CodePipelineOrder, e.Code())
		assert.Equal(t, []string{"helper/rewrite_prompt"}, e.Context()["expected_next"])
		assert.Contains(t, e.Steps()[0], "helper/rewrite_prompt")
		assert.Equal(t, StatusConflict, e.StatusClass())
	})

	t.Run("empty expected falls back to entry eye", func(t *testing.T) {
		e := PipelineOrder("sharingan/clarify", nil, "s1")
		assert.Equal(t, []string{DefaultEntryEye}, e.Context()["expected_next"])
	})

	t.Run("extra options apply", func(t *testing.T) {
		e := PipelineOrder("x/y", nil, "s1", WithContext("missing_phases", []string{"entry"}))
		assert.Equal(t, []string{"entry"}, e.Context()["missing_phases"])
	})
}

func TestRetryHints(t *testing.T) {
	assert.Equal(t, 5, BackendTimeout(30).RetryAfter())
	assert.True(t, BackendTimeout(30).AutoRetryable())
	assert.Equal(t, 60, RateLimit(0).RetryAfter())
	assert.Equal(t, 12, RateLimit(12).RetryAfter())
	assert.False(t, BudgetExceeded(100, 10, "s").AutoRetryable())
}

func TestSchemaValidation(t *testing.T) {
	e := SchemaValidation("rinnegan/plan_review", map[string]string{"submitted_plan_md": "required"})
	assert.Equal(t, "required", e.RequiredInputs()["payload.submitted_plan_md"])
	assert.Equal(t, StatusBadRequest, e.StatusClass())
}

func TestAsAndIs(t *testing.T) {
	base := UnknownCapability("nope/nope")
	wrapped := fmt.Errorf("invoke: %w", base)

	got, ok := As(wrapped)
	require.True(t, ok)
	assert.Same(t, base, got)
	assert.True(t, IsCode(wrapped, CodeUnknownEye))
	assert.False(t, IsCode(wrapped, CodeRateLimit))
	assert.True(t, errors.Is(wrapped, New(CodeUnknownEye, "")))

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}

func TestWithCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	e := New(CodeBackendTimeout, "slow", WithCause(cause))
	assert.ErrorIs(t, e, cause)
	assert.Contains(t, e.Error(), "dial tcp")
}
