package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/breaker"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/config"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/eyes"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/logging"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/reasoning"
)

func quietApp(t *testing.T, cfg config.Config) *app {
	t.Helper()
	a, err := newApp(context.Background(), cfg, logging.WithWriter(zapcore.AddSync(&bytes.Buffer{})))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })
	return a
}

func TestNewApp_Defaults(t *testing.T) {
	a := quietApp(t, config.Default())

	assert.Len(t, a.eyes.Names(), len(eyes.PipelineCapabilities()))
	assert.NotNil(t, a.flows)
	assert.NotNil(t, a.bus)
	assert.Nil(t, a.nc)

	status := a.flows.PipelineStatus("fresh")
	assert.Contains(t, status.AvailableEyes, eyes.EyeNavigator)
}

func TestNewApp_InvokePublishesToBus(t *testing.T) {
	a := quietApp(t, config.Default())
	rc := eyes.RequestContext{SessionID: "app-1", Lang: eyes.LangEN}

	resp, err := a.eyes.Invoke(context.Background(), eyes.EyeNavigator, rc, map[string]any{}, "")
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.NotEmpty(t, a.bus.History("app-1"))
}

func TestNewApp_BreakerOverrides(t *testing.T) {
	cfg := config.Default()
	cfg.Backends = map[string]config.BreakerConfig{
		"llm:groq": {FailureThreshold: 2},
	}
	a := quietApp(t, cfg)

	assert.Equal(t, 2, a.breakers.Get("llm:groq").Config().FailureThreshold)
	assert.Equal(t, breaker.DefaultFailureThreshold, a.breakers.Get("llm:other").Config().FailureThreshold)
}

func TestNewApp_CountsBreakerTransitions(t *testing.T) {
	cfg := config.Default()
	cfg.Backends = map[string]config.BreakerConfig{
		"llm:groq": {FailureThreshold: 1},
	}
	a := quietApp(t, cfg)

	_ = a.breakers.Get("llm:groq").Call(context.Background(), func(context.Context) error {
		return errors.New("upstream 500")
	})

	families, err := a.prom.Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "third_eye_breaker_transitions_total" {
			found = true
			require.Len(t, f.GetMetric(), 1)
			assert.Equal(t, 1.0, f.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found)
}

func TestNewBackend(t *testing.T) {
	breakers, err := breaker.NewRegistry()
	require.NoError(t, err)
	logger := zap.NewNop()

	b, err := newBackend(config.ReasoningConfig{Offline: true}, breakers, nil, logger)
	require.NoError(t, err)
	assert.Equal(t, "offline", b.Name())

	_, err = newBackend(config.ReasoningConfig{}, breakers, nil, logger)
	assert.ErrorIs(t, err, config.ErrNoProviders)

	_, err = newBackend(config.ReasoningConfig{Providers: []config.ProviderConfig{{Name: "groq", Model: "m"}}}, breakers, nil, logger)
	assert.ErrorIs(t, err, reasoning.ErrMissingAPIKey)

	single, err := newBackend(config.ReasoningConfig{Providers: []config.ProviderConfig{
		{Name: "groq", Model: "m", APIKey: config.Secret("k1")},
	}}, breakers, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &reasoning.Guarded{}, single)

	routed, err := newBackend(config.ReasoningConfig{Providers: []config.ProviderConfig{
		{Name: "groq", Model: "m", APIKey: config.Secret("k1")},
		{Name: "openrouter", Model: "m", APIKey: config.Secret("k2")},
	}}, breakers, nil, logger)
	require.NoError(t, err)
	assert.Equal(t, "groq,openrouter", routed.Name())
}

func TestRenderEyes(t *testing.T) {
	reg := eyes.NewRegistry()
	require.NoError(t, eyes.RegisterPipeline(reg, func(eyes.Capability) (eyes.Handler, error) {
		return func(context.Context, eyes.Request) (eyes.Response, error) { return eyes.Response{OK: true}, nil }, nil
	}))

	var buf bytes.Buffer
	require.NoError(t, renderEyes(&buf, reg.Infos()))
	out := buf.String()
	assert.Contains(t, out, "EYE")
	assert.Contains(t, out, eyes.EyeNavigator)
	assert.Contains(t, out, eyes.EyeFinalApproval)
}

func TestJoinPhases(t *testing.T) {
	assert.Equal(t, "-", joinPhases(nil))
	assert.Equal(t, "entry, planning", joinPhases([]eyes.Phase{eyes.PhaseEntry, eyes.PhasePlanning}))
}

func TestVersionCmd(t *testing.T) {
	var buf bytes.Buffer
	root := newRootCmd()
	root.SetOut(&buf)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "Version:    dev")
}
