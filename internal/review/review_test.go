package review

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/breaker"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/eyes"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/reasoning"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/recovery"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/redact"
)

// recordingBackend returns a canned reply and remembers what it was sent.
type recordingBackend struct {
	reply    string
	err      error
	calls    int
	messages []reasoning.Message
	tool     string
}

func (b *recordingBackend) Name() string { return "recording" }

func (b *recordingBackend) Complete(ctx context.Context, messages []reasoning.Message) (string, error) {
	b.calls++
	b.messages = messages
	b.tool = reasoning.ToolFromContext(ctx)
	return b.reply, b.err
}

func capability(t *testing.T, name string) eyes.Capability {
	t.Helper()
	for _, c := range eyes.PipelineCapabilities() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no capability %s", name)
	return eyes.Capability{}
}

func build(t *testing.T, f *Factory, name string) eyes.Handler {
	t.Helper()
	h, err := f.Build(capability(t, name))
	require.NoError(t, err)
	return h
}

func request(payload map[string]any) eyes.Request {
	return eyes.Request{
		Context:     eyes.RequestContext{SessionID: "sess-1", Lang: eyes.LangEN},
		Payload:     payload,
		ReasoningMD: "I followed the plan.",
	}
}

func TestTag(t *testing.T) {
	tests := []struct {
		eye  string
		want string
	}{
		{eyes.EyeNavigator, "[EYE/OVERSEER]"},
		{eyes.EyeClarify, "[EYE/SHARINGAN]"},
		{eyes.EyeRewritePrompt, "[EYE/PROMPT_HELPER]"},
		{eyes.EyeConfirmIntent, "[EYE/JOGAN]"},
		{eyes.EyePlanRequirements, "[EYE/RINNEGAN/PLAN_REQUIREMENTS]"},
		{eyes.EyePlanReview, "[EYE/RINNEGAN/PLAN_REVIEW]"},
		{eyes.EyeFinalApproval, "[EYE/RINNEGAN/FINAL]"},
		{eyes.EyeReviewImpl, "[EYE/MANGEKYO/REVIEW_IMPL]"},
		{eyes.EyeValidateClaims, "[EYE/TENSEIGAN]"},
		{eyes.EyeConsistencyCheck, "[EYE/BYAKUGAN]"},
		{"custom/check", "[EYE/CUSTOM/CHECK]"},
	}
	for _, tt := range tests {
		t.Run(tt.eye, func(t *testing.T) {
			assert.Equal(t, tt.want, Tag(tt.eye))
		})
	}
}

func TestValidatePayload(t *testing.T) {
	tests := []struct {
		name    string
		eye     string
		payload map[string]any
		bad     []string
	}{
		{"valid plan", eyes.EyePlanReview, map[string]any{eyes.KeyPlanMD: "### Plan"}, nil},
		{"missing plan", eyes.EyePlanReview, map[string]any{}, []string{"payload." + eyes.KeyPlanMD}},
		{"blank plan", eyes.EyePlanReview, map[string]any{eyes.KeyPlanMD: "  "}, []string{"payload." + eyes.KeyPlanMD}},
		{"wrong type", eyes.EyeConfirmIntent, map[string]any{eyes.KeyRefinedPromptMD: "x", eyes.KeyEstimatedTokens: "many"}, []string{"payload." + eyes.KeyEstimatedTokens}},
		{"empty files", eyes.EyeReviewScaffold, map[string]any{FieldFiles: []any{}}, []string{"payload." + FieldFiles}},
		{"consistency needs both", eyes.EyeConsistencyCheck, map[string]any{}, []string{"payload." + eyes.KeyTopic, "payload." + eyes.KeyDraftMD}},
		{"optional bool wrong type", eyes.EyeFinalApproval, map[string]any{FieldPlanApproved: true, FieldDocsApproved: "yes"}, []string{"payload." + FieldDocsApproved}},
		{"unknown eye accepts anything", "custom/check", map[string]any{"x": 1}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePayload(tt.eye, tt.payload)
			if tt.bad == nil {
				assert.NoError(t, err)
				return
			}
			rec, ok := recovery.As(err)
			require.True(t, ok)
			assert.Equal(t, recovery.CodeBadPayload, rec.Code())
			for _, field := range tt.bad {
				assert.Contains(t, rec.RequiredInputs(), field)
			}
			assert.Len(t, rec.RequiredInputs(), len(tt.bad))
		})
	}
}

func TestNavigator(t *testing.T) {
	h := build(t, NewFactory(Options{}), eyes.EyeNavigator)

	resp, err := h(context.Background(), request(map[string]any{FieldGoal: "Write a quarterly report"}))
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, "[EYE/OVERSEER]", resp.Tag)
	assert.Contains(t, resp.Data[eyes.KeySummaryMD], "Write a quarterly report")
	assert.Contains(t, resp.Data[eyes.KeySchemaMD], eyes.EyePlanReview)

	var contract struct {
		Eyes map[string][]Field `json:"eyes"`
	}
	require.NoError(t, json.Unmarshal([]byte(resp.Data[eyes.KeyContractJSON].(string)), &contract))
	assert.Len(t, contract.Eyes, len(eyes.PipelineCapabilities()))
	assert.Equal(t, eyes.KeyPlanMD, contract.Eyes[eyes.EyePlanReview][0].Name)
}

func TestPlanRequirements(t *testing.T) {
	h := build(t, NewFactory(Options{}), eyes.EyePlanRequirements)
	resp, err := h(context.Background(), request(nil))
	require.NoError(t, err)
	assert.Equal(t, "OK_SCHEMA_EMITTED", resp.Code)
	assert.Contains(t, resp.Data[KeyExpectedSchemaMD], "Rollback Plan")
}

func TestFinalApproval(t *testing.T) {
	h := build(t, NewFactory(Options{}), eyes.EyeFinalApproval)
	ctx := context.Background()

	resp, err := h(ctx, request(map[string]any{FieldPlanApproved: true, FieldImplApproved: true}))
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, "OK_ALL_APPROVED", resp.Code)
	assert.Contains(t, resp.Data[eyes.KeySummaryMD], "- Docs: Skipped")

	resp, err = h(ctx, request(map[string]any{FieldPlanApproved: true, FieldTestsApproved: false, FieldDocsApproved: false}))
	require.NoError(t, err)
	assert.False(t, resp.OK)
	assert.Equal(t, "E_PHASES_INCOMPLETE", resp.Code)
	assert.Contains(t, resp.MD, "Tests, Docs")
	assert.Equal(t, false, resp.Data[KeyApproved])

	_, err = h(ctx, request(map[string]any{}))
	assert.True(t, recovery.IsCode(err, recovery.CodeBadPayload))
}

func TestReviewer_Verdict(t *testing.T) {
	backend := &recordingBackend{reply: "Here you go:\n```json\n{\"ok\": true, \"md\": \"Looks good\", \"data\": {\"score\": 0.9}}\n```"}
	h := build(t, NewFactory(Options{Backend: backend}), eyes.EyePlanReview)

	req := request(map[string]any{eyes.KeyPlanMD: "### Plan\n1. Overview"})
	req.Context.Lang = eyes.LangAR
	resp, err := h(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, resp.OK)
	assert.Equal(t, "[EYE/RINNEGAN/PLAN_REVIEW]", resp.Tag)
	assert.Equal(t, "OK_PLAN_APPROVED", resp.Code)
	assert.Equal(t, "Looks good", resp.MD)
	assert.Equal(t, 0.9, resp.Data["score"])
	assert.Equal(t, "Proceed to mangekyo/review_scaffold.", resp.NextAction)

	assert.Equal(t, eyes.EyePlanReview, backend.tool)
	require.Len(t, backend.messages, 2)
	assert.Equal(t, reasoning.RoleSystem, backend.messages[0].Role)
	assert.Contains(t, backend.messages[0].Content, "Rinnegan")
	assert.Contains(t, backend.messages[0].Content, "Arabic")

	var env envelope
	require.NoError(t, json.Unmarshal([]byte(backend.messages[1].Content), &env))
	assert.Equal(t, eyes.EyePlanReview, env.Eye)
	assert.Equal(t, "sess-1", env.SessionID)
	assert.Equal(t, "I followed the plan.", env.ReasoningMD)
}

func TestReviewer_RejectionKeepsModelCode(t *testing.T) {
	backend := &recordingBackend{reply: `{"ok": false, "code": "E_UNSUPPORTED_CLAIMS", "md": "Claim 2 has no source"}`}
	h := build(t, NewFactory(Options{Backend: backend}), eyes.EyeValidateClaims)

	resp, err := h(context.Background(), request(map[string]any{eyes.KeyDraftMD: "The sky is green."}))
	require.NoError(t, err)
	assert.False(t, resp.OK)
	assert.Equal(t, "E_UNSUPPORTED_CLAIMS", resp.Code)
	assert.Equal(t, "Attach sources for each claim and resubmit to tenseigan/validate_claims.", resp.NextAction)
	assert.NotNil(t, resp.Data)
}

func TestReviewer_Unparseable(t *testing.T) {
	for _, reply := range []string{"I think it is fine", `{"md": "no ok field"}`, `{"ok": tru`} {
		backend := &recordingBackend{reply: reply}
		h := build(t, NewFactory(Options{Backend: backend}), eyes.EyeReviewImpl)

		resp, err := h(context.Background(), request(map[string]any{FieldDiffsMD: "+ added"}))
		require.NoError(t, err)
		assert.False(t, resp.OK, reply)
		assert.Equal(t, CodeUnparseableVerdict, resp.Code, reply)
		assert.Equal(t, reply, resp.Data["raw_excerpt"])
	}
}

func TestReviewer_PreconditionsSkipBackend(t *testing.T) {
	backend := &recordingBackend{reply: `{"ok": true}`}
	h := build(t, NewFactory(Options{Backend: backend}), eyes.EyePlanReview)
	ctx := context.Background()

	_, err := h(ctx, request(map[string]any{}))
	assert.True(t, recovery.IsCode(err, recovery.CodeBadPayload))

	req := request(map[string]any{eyes.KeyPlanMD: strings.Repeat("word ", 200)})
	req.Context.BudgetTokens = 10
	_, err = h(ctx, req)
	rec, ok := recovery.As(err)
	require.True(t, ok)
	assert.Equal(t, recovery.CodeBudgetExceeded, rec.Code())
	assert.Equal(t, "sess-1", rec.Context()["session_id"])

	assert.Zero(t, backend.calls)

	req.Context.BudgetTokens = 100000
	_, err = h(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.calls)
}

func TestReviewer_RedactsSecrets(t *testing.T) {
	r, err := redact.New(redact.Options{Detect: func(content string) ([]redact.Finding, error) {
		if strings.Contains(content, "hunter2-secret") {
			return []redact.Finding{redact.NewFinding("generic", "hunter2-secret")}, nil
		}
		return nil, nil
	}})
	require.NoError(t, err)

	backend := &recordingBackend{reply: `{"ok": true}`}
	h := build(t, NewFactory(Options{Backend: backend, Redactor: r}), eyes.EyeReviewImpl)

	_, err = h(context.Background(), request(map[string]any{FieldDiffsMD: "+ password = hunter2-secret"}))
	require.NoError(t, err)
	require.Len(t, backend.messages, 2)
	assert.NotContains(t, backend.messages[1].Content, "hunter2-secret")
	assert.Contains(t, backend.messages[1].Content, "[REDACTED:generic]")
}

func TestReviewer_EyeBreakerOpens(t *testing.T) {
	breakers, err := breaker.NewRegistry(
		breaker.WithOverride(EyeBreakerPrefix+eyes.EyeReviewDocs, breaker.Config{FailureThreshold: 2}),
	)
	require.NoError(t, err)

	backend := &recordingBackend{err: errors.New("upstream 500")}
	h := build(t, NewFactory(Options{Backend: backend, Breakers: breakers}), eyes.EyeReviewDocs)
	ctx := context.Background()

	// contract failures never reach the breaker
	for i := 0; i < 3; i++ {
		_, err := h(ctx, request(map[string]any{}))
		require.True(t, recovery.IsCode(err, recovery.CodeBadPayload))
	}

	valid := request(map[string]any{FieldDiffsMD: "+ docs"})
	for i := 0; i < 2; i++ {
		_, err := h(ctx, valid)
		assert.EqualError(t, err, "upstream 500")
	}
	_, err = h(ctx, valid)
	assert.True(t, recovery.IsCode(err, recovery.CodeCircuitOpen))
	assert.Equal(t, 2, backend.calls)

	b, ok := breakers.Lookup(EyeBreakerPrefix + eyes.EyeReviewDocs)
	require.True(t, ok)
	assert.Equal(t, breaker.StateOpen, b.State())
}

func TestReviewer_EyeBreakerCreatedOnFirstCall(t *testing.T) {
	breakers, err := breaker.NewRegistry()
	require.NoError(t, err)

	h := build(t, NewFactory(Options{Breakers: breakers}), eyes.EyeReviewDocs)
	assert.Empty(t, breakers.Names())

	_, err = h(context.Background(), request(map[string]any{FieldDiffsMD: "+ docs"}))
	require.NoError(t, err)
	assert.Equal(t, []string{EyeBreakerPrefix + eyes.EyeReviewDocs}, breakers.Names())
}

func TestReviewer_ThrottledBackendDoesNotTripEyeBreaker(t *testing.T) {
	breakers, err := breaker.NewRegistry(
		breaker.WithOverride(EyeBreakerPrefix+eyes.EyeReviewDocs, breaker.Config{FailureThreshold: 1}),
	)
	require.NoError(t, err)

	backend := &recordingBackend{err: recovery.RateLimit(4)}
	h := build(t, NewFactory(Options{Backend: backend, Breakers: breakers}), eyes.EyeReviewDocs)
	valid := request(map[string]any{FieldDiffsMD: "+ docs"})

	for i := 0; i < 3; i++ {
		_, err := h(context.Background(), valid)
		assert.True(t, recovery.IsCode(err, recovery.CodeRateLimit))
	}
	assert.Equal(t, 3, backend.calls)
	b, ok := breakers.Lookup(EyeBreakerPrefix + eyes.EyeReviewDocs)
	require.True(t, ok)
	assert.Equal(t, breaker.StateClosed, b.State())
}

func TestPipeline_OfflineWalk(t *testing.T) {
	r := eyes.NewRegistry()
	require.NoError(t, eyes.RegisterPipeline(r, NewFactory(Options{}).Build))

	ctx := context.Background()
	rc := eyes.RequestContext{SessionID: "walk", Lang: eyes.LangAuto}
	steps := []struct {
		eye     string
		payload map[string]any
	}{
		{eyes.EyeNavigator, map[string]any{}},
		{eyes.EyeClarify, map[string]any{FieldPrompt: "Build a CLI"}},
		{eyes.EyeRewritePrompt, map[string]any{FieldUserPrompt: "Build a CLI", FieldClarificationAnswersMD: "N/A"}},
		{eyes.EyeConfirmIntent, map[string]any{eyes.KeyRefinedPromptMD: "ROLE: dev", eyes.KeyEstimatedTokens: 1000}},
		{eyes.EyePlanRequirements, map[string]any{}},
		{eyes.EyePlanReview, map[string]any{eyes.KeyPlanMD: "### Plan"}},
		{eyes.EyeReviewScaffold, map[string]any{FieldFiles: []any{map[string]any{"path": "main.go"}}}},
		{eyes.EyeReviewImpl, map[string]any{FieldDiffsMD: "+ code"}},
		{eyes.EyeReviewTests, map[string]any{FieldDiffsMD: "+ test", FieldCoverageSummaryMD: "90%"}},
		{eyes.EyeReviewDocs, map[string]any{FieldDiffsMD: "+ docs"}},
		{eyes.EyeFinalApproval, map[string]any{FieldPlanApproved: true}},
	}
	for _, s := range steps {
		resp, err := r.Invoke(ctx, s.eye, rc, s.payload, "reasoning")
		require.NoError(t, err, s.eye)
		assert.True(t, resp.OK, s.eye)
		assert.Equal(t, Tag(s.eye), resp.Tag)
	}
	assert.Contains(t, r.CompletedPhases("walk"), eyes.PhaseApproval)
}
