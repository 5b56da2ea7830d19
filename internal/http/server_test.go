package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/breaker"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/eyes"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/orchestrator"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/recovery"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/review"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/telemetry"
)

type fixture struct {
	server   *Server
	eyes     *eyes.Registry
	breakers *breaker.Registry
}

func newFixture(t *testing.T, opts ...breaker.RegistryOption) *fixture {
	t.Helper()
	breakers, err := breaker.NewRegistry(opts...)
	require.NoError(t, err)

	reg := eyes.NewRegistry()
	factory := review.NewFactory(review.Options{Breakers: breakers})
	require.NoError(t, eyes.RegisterPipeline(reg, factory.Build))

	prom := prometheus.NewRegistry()
	prom.MustRegister(breaker.NewCollector(breakers))

	s, err := NewServer(Deps{
		Eyes:     reg,
		Flows:    orchestrator.New(reg),
		Breakers: breakers,
		Gatherer: prom,
		Metrics:  NewMetrics(telemetry.NewTestTelemetry().Meter("http-test"), nil),
		Logger:   zap.NewNop(),
	}, nil)
	require.NoError(t, err)
	return &fixture{server: s, eyes: reg, breakers: breakers}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func rc(session string) eyes.RequestContext {
	return eyes.RequestContext{SessionID: session, Lang: eyes.LangEN}
}

func TestNewServer_RequiresDeps(t *testing.T) {
	_, err := NewServer(Deps{}, nil)
	assert.ErrorIs(t, err, ErrNilRegistry)

	reg := eyes.NewRegistry()
	_, err = NewServer(Deps{Eyes: reg}, nil)
	assert.ErrorIs(t, err, ErrNilFlows)

	_, err = NewServer(Deps{Eyes: reg, Flows: orchestrator.New(reg)}, nil)
	assert.ErrorIs(t, err, ErrNilBreakers)

	breakers, err := breaker.NewRegistry()
	require.NoError(t, err)
	_, err = NewServer(Deps{Eyes: reg, Flows: orchestrator.New(reg), Breakers: breakers}, nil)
	assert.ErrorIs(t, err, ErrNilLogger)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	h := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, len(eyes.PipelineCapabilities()), h.Eyes)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestHealth_DegradedWhenBreakerOpen(t *testing.T) {
	f := newFixture(t, breaker.WithOverride("llm:groq", breaker.Config{FailureThreshold: 1}))
	b := f.breakers.Get("llm:groq")
	_ = b.Call(context.Background(), func(context.Context) error { return errors.New("down") })

	h := decode[HealthResponse](t, f.do(t, http.MethodGet, "/health", nil))
	assert.Equal(t, "degraded", h.Status)
	assert.Equal(t, []string{"llm:groq"}, h.OpenBreakers)
}

func TestInvoke_Navigator(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/eyes/overseer/navigator", InvokeRequest{
		Context: rc("s1"),
		Payload: map[string]any{},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[eyes.Response](t, rec)
	assert.True(t, resp.OK)
	assert.Contains(t, f.eyes.CompletedPhases("s1"), eyes.PhaseEntry)
}

func TestInvoke_DefaultsLang(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/eyes/overseer/navigator", InvokeRequest{
		Context: eyes.RequestContext{SessionID: "no-lang"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, f.eyes.CompletedPhases("no-lang"), eyes.PhaseEntry)

	rec = f.do(t, http.MethodPost, "/v1/eyes/overseer/navigator", InvokeRequest{
		Context: eyes.RequestContext{SessionID: "bad-lang", Lang: "fr"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, recovery.CodeInvalidContext, decode[recovery.AgentView](t, rec).ErrorCode)
}

func TestInvoke_RecoverableErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   any
		status int
		code   recovery.Code
	}{
		{
			name:   "missing context",
			path:   "/v1/eyes/overseer/navigator",
			body:   InvokeRequest{},
			status: http.StatusBadRequest,
			code:   recovery.CodeInvalidContext,
		},
		{
			name:   "out of order",
			path:   "/v1/eyes/rinnegan/plan_review",
			body:   InvokeRequest{Context: rc("s2"), Payload: map[string]any{"submitted_plan_md": "x"}, ReasoningMD: "r"},
			status: http.StatusConflict,
			code:   recovery.CodePipelineOrder,
		},
		{
			name:   "unknown eye",
			path:   "/v1/eyes/nope/nothing",
			body:   InvokeRequest{Context: rc("s3")},
			status: http.StatusBadRequest,
			code:   recovery.CodeUnknownEye,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)

			view := decode[recovery.AgentView](t, rec)
			assert.Equal(t, tt.code, view.ErrorCode)
			assert.True(t, view.Recoverable)
			assert.NotEmpty(t, view.RecoverySteps)
		})
	}
}

func TestInvoke_BadJSON(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/eyes/overseer/navigator", bytes.NewBufferString("{nope"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, recovery.CodeBadPayload, decode[recovery.AgentView](t, rec).ErrorCode)
}

func TestInvoke_CircuitOpenSetsRetryAfter(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/v1/eyes/overseer/navigator", InvokeRequest{Context: rc("s4")})
	f.do(t, http.MethodPost, "/v1/eyes/sharingan/clarify", InvokeRequest{
		Context: rc("s4"), Payload: map[string]any{"prompt": "Build a CLI"},
	})

	b := f.breakers.Get(review.EyeBreakerPrefix + eyes.EyeRewritePrompt)
	for i := 0; i < b.Config().FailureThreshold; i++ {
		_ = b.Call(context.Background(), func(context.Context) error { return errors.New("down") })
	}

	rec := f.do(t, http.MethodPost, "/v1/eyes/helper/rewrite_prompt", InvokeRequest{
		Context: rc("s4"),
		Payload: map[string]any{"user_prompt": "Build a CLI", "clarification_answers_md": "none"},
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, recovery.CodeCircuitOpen, decode[recovery.AgentView](t, rec).ErrorCode)
}

func TestSessionStatusAndReset(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/v1/eyes/overseer/navigator", InvokeRequest{Context: rc("s5")})

	status := decode[orchestrator.PipelineStatus](t, f.do(t, http.MethodGet, "/v1/sessions/s5/status", nil))
	assert.Equal(t, []eyes.Phase{eyes.PhaseEntry}, status.CompletedPhases)
	assert.Contains(t, status.AvailableEyes, eyes.EyeClarify)

	rec := f.do(t, http.MethodDelete, "/v1/sessions/s5", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, f.eyes.CompletedPhases("s5"))
}

func TestClarificationFlow(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/v1/eyes/overseer/navigator", InvokeRequest{Context: rc("s6")})

	rec := f.do(t, http.MethodPost, "/v1/flows/clarification", ClarificationRequest{
		Context: rc("s6"),
		Goal:    "Build a CLI that renames files",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[orchestrator.Result](t, rec)
	assert.True(t, res.OK)
	assert.Equal(t, orchestrator.StatusIntentConfirmed, res.Status)
}

func TestClarificationFlow_OutOfOrder(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/flows/clarification", ClarificationRequest{
		Context: rc("s7"),
		Goal:    "Build a CLI",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	body := decode[FlowErrorResponse](t, rec)
	assert.Equal(t, orchestrator.StageClarify, body.Stage)
	require.NotNil(t, body.Recovery)
	assert.Equal(t, recovery.CodePipelineOrder, body.Recovery.ErrorCode)
}

func TestFlows_RequireFields(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/v1/flows/clarification", "/v1/flows/code-review", "/v1/flows/text-validation"} {
		rec := f.do(t, http.MethodPost, path, map[string]any{"context": rc("s8")})
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, recovery.CodeBadPayload, decode[recovery.AgentView](t, rec).ErrorCode, path)
	}
}

func TestCodeReviewFlow_ReturnsStageFailure(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/flows/code-review", CodeReviewRequest{
		Context: rc("s9"), PlanMD: "### Plan", ReasoningMD: "because",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	res := decode[orchestrator.Result](t, rec)
	assert.False(t, res.OK)
	assert.Equal(t, orchestrator.StagePlanReview, res.PhaseFailed)
	require.NotNil(t, res.Recovery)
	assert.Equal(t, recovery.CodePipelineOrder, res.Recovery.ErrorCode)
}

func TestBreakersAndMetrics(t *testing.T) {
	f := newFixture(t)
	f.breakers.Get("llm:groq")

	resp := decode[BreakersResponse](t, f.do(t, http.MethodGet, "/v1/breakers", nil))
	require.Len(t, resp.Breakers, 1)
	assert.Equal(t, breaker.StateClosed, resp.Breakers[0].State)

	rec := f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "llm:groq")
}

func TestBreakers_RegisteringPipelineCreatesNone(t *testing.T) {
	f := newFixture(t)
	resp := decode[BreakersResponse](t, f.do(t, http.MethodGet, "/v1/breakers", nil))
	assert.Empty(t, resp.Breakers)

	rec := f.do(t, http.MethodPost, "/v1/eyes/overseer/navigator", InvokeRequest{Context: rc("lazy")})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodPost, "/v1/eyes/sharingan/clarify", InvokeRequest{
		Context: rc("lazy"), Payload: map[string]any{"prompt": "Build a CLI"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp = decode[BreakersResponse](t, f.do(t, http.MethodGet, "/v1/breakers", nil))
	require.Len(t, resp.Breakers, 1)
	assert.Equal(t, review.EyeBreakerPrefix+eyes.EyeClarify, resp.Breakers[0].Name)
}

func TestBreakers_ByName(t *testing.T) {
	f := newFixture(t)
	f.breakers.Get("llm:groq")
	f.breakers.Get("llm:openrouter")

	rec := f.do(t, http.MethodGet, "/v1/breakers?name=llm:openrouter", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[BreakersResponse](t, rec)
	require.Len(t, resp.Breakers, 1)
	assert.Equal(t, "llm:openrouter", resp.Breakers[0].Name)

	rec = f.do(t, http.MethodGet, "/v1/breakers?name=llm:missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	_, created := f.breakers.Lookup("llm:missing")
	assert.False(t, created)
}

func TestBreakers_Reset(t *testing.T) {
	f := newFixture(t, breaker.WithOverride("llm:groq", breaker.Config{FailureThreshold: 1}))
	b := f.breakers.Get("llm:groq")
	_ = b.Call(context.Background(), func(context.Context) error { return errors.New("down") })
	require.Equal(t, breaker.StateOpen, b.State())

	rec := f.do(t, http.MethodPost, "/v1/breakers/reset", ResetBreakerRequest{Name: "llm:groq"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, breaker.StateClosed, decode[breaker.Status](t, rec).State)
	assert.Equal(t, breaker.StateClosed, b.State())

	rec = f.do(t, http.MethodPost, "/v1/breakers/reset", ResetBreakerRequest{Name: "llm:missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/breakers/reset", ResetBreakerRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, recovery.CodeBadPayload, decode[recovery.AgentView](t, rec).ErrorCode)
}

func TestListEyes(t *testing.T) {
	f := newFixture(t)
	infos := decode[[]eyes.Info](t, f.do(t, http.MethodGet, "/v1/eyes", nil))
	assert.Len(t, infos, len(eyes.PipelineCapabilities()))
}

func TestListEyes_ByPhase(t *testing.T) {
	f := newFixture(t)
	infos := decode[[]eyes.Info](t, f.do(t, http.MethodGet, "/v1/eyes?phase=entry", nil))
	require.Len(t, infos, 1)
	assert.Equal(t, eyes.EyeNavigator, infos[0].Name)

	rec := f.do(t, http.MethodGet, "/v1/eyes?phase=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, recovery.CodeBadPayload, decode[recovery.AgentView](t, rec).ErrorCode)
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusCode(recovery.StatusBadRequest))
	assert.Equal(t, http.StatusConflict, StatusCode(recovery.StatusConflict))
	assert.Equal(t, http.StatusTooManyRequests, StatusCode(recovery.StatusTooManyRequests))
	assert.Equal(t, http.StatusServiceUnavailable, StatusCode(recovery.StatusServiceUnavailable))
}
