package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/breaker"
)

type fakeSource struct {
	health   Health
	breakers []breaker.Status
	err      error
}

func (f *fakeSource) Breakers(context.Context) ([]breaker.Status, error) {
	return f.breakers, f.err
}

func (f *fakeSource) Health(context.Context) (Health, error) {
	return f.health, f.err
}

func fixedNow() time.Time {
	return time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
}

func newTestModel(src Source) Model {
	m := newModel("http://127.0.0.1:7070", src, 2*time.Second)
	m.now = fixedNow
	return m
}

func status(name string, state breaker.State, failures int) breaker.Status {
	return breaker.Status{
		Name:           name,
		State:          state,
		StateChangedAt: fixedNow().Add(-10 * time.Second),
		Metrics:        breaker.Metrics{FailureCount: failures, TotalRequests: 4, TotalSuccesses: 3, TotalFailures: 1},
		Config: breaker.Config{
			FailureThreshold:    5,
			ResetTimeout:        30 * time.Second,
			HalfOpenMaxRequests: 2,
		},
	}
}

func TestNewModel(t *testing.T) {
	m := NewModel("http://127.0.0.1:7070", 5*time.Second)
	assert.Equal(t, "http://127.0.0.1:7070", m.url)
	assert.Equal(t, 5*time.Second, m.interval)
	assert.False(t, m.quitting)
	assert.NotNil(t, m.Init())
}

func TestModel_Update_Keys(t *testing.T) {
	m := newTestModel(&fakeSource{})

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	assert.False(t, updated.(Model).quitting)
	assert.NotNil(t, cmd)

	updated, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	assert.True(t, updated.(Model).quitting)
	assert.NotNil(t, cmd)
	assert.Empty(t, updated.View())
}

func TestModel_Update_Tick(t *testing.T) {
	m := newTestModel(&fakeSource{})
	_, cmd := m.Update(tickMsg(time.Now()))
	assert.NotNil(t, cmd)
}

func TestFetch(t *testing.T) {
	src := &fakeSource{
		health:   Health{Status: "ok", Eyes: 13},
		breakers: []breaker.Status{status("llm:groq", breaker.StateClosed, 0)},
	}
	msg := fetch(src)()
	snap, ok := msg.(snapshotMsg)
	require.True(t, ok)
	assert.Equal(t, 13, snap.Health.Eyes)
	assert.Len(t, snap.Breakers, 1)

	src.err = errors.New("connection refused")
	msg = fetch(src)()
	em, ok := msg.(errMsg)
	require.True(t, ok)
	assert.EqualError(t, em.err, "connection refused")
}

func TestModel_Update_Snapshot(t *testing.T) {
	m := newTestModel(&fakeSource{})

	for i := 1; i <= 3; i++ {
		updated, cmd := m.Update(snapshotMsg{
			Health: Health{Status: "degraded", Eyes: 13, OpenBreakers: []string{"llm:groq"}},
			Breakers: []breaker.Status{
				status("llm:groq", breaker.StateOpen, i),
				status("eye:sharingan/clarify", breaker.StateClosed, 0),
			},
		})
		assert.Nil(t, cmd)
		m = updated.(Model)
	}

	assert.Equal(t, fixedNow(), m.lastUpdate)
	assert.Equal(t, []float64{1, 2, 3}, m.history["llm:groq"])
	assert.Equal(t, "eye:sharingan/clarify", m.snapshot.Breakers[0].Name)

	view := m.View()
	assert.Contains(t, view, "Third Eye Breakers")
	assert.Contains(t, view, "llm:groq")
	assert.Contains(t, view, "DEGRADED")
	assert.Contains(t, view, "probe in")
	assert.Contains(t, view, "20s")
}

func TestModel_Update_DropsVanishedBreakers(t *testing.T) {
	m := newTestModel(&fakeSource{})
	updated, _ := m.Update(snapshotMsg{Breakers: []breaker.Status{status("llm:a", breaker.StateClosed, 1)}})
	updated, _ = updated.(Model).Update(snapshotMsg{Breakers: []breaker.Status{status("llm:b", breaker.StateClosed, 1)}})

	m = updated.(Model)
	assert.NotContains(t, m.history, "llm:a")
	assert.Contains(t, m.history, "llm:b")
}

func TestModel_View_HalfOpen(t *testing.T) {
	m := newTestModel(&fakeSource{})
	s := status("llm:groq", breaker.StateHalfOpen, 0)
	s.HalfOpenRequests = 1
	updated, _ := m.Update(snapshotMsg{Health: Health{Status: "ok"}, Breakers: []breaker.Status{s}})

	view := updated.View()
	assert.Contains(t, view, "probes")
	assert.Contains(t, view, "1/2")
}

func TestModel_View_Empty(t *testing.T) {
	m := newTestModel(&fakeSource{})
	updated, _ := m.Update(snapshotMsg{Health: Health{Status: "ok"}})
	assert.Contains(t, updated.View(), "no breakers yet")
}

func TestModel_View_Error(t *testing.T) {
	m := newTestModel(&fakeSource{})
	updated, _ := m.Update(errMsg{errors.New("connection refused")})

	view := updated.View()
	assert.Contains(t, view, "Cannot reach thirdeye server")
	assert.Contains(t, view, "connection refused")
	assert.Contains(t, view, "http://127.0.0.1:7070")

	// a successful poll clears the error
	updated, _ = updated.(Model).Update(snapshotMsg{Health: Health{Status: "ok"}})
	assert.NotContains(t, updated.View(), "Cannot reach")
}

func TestAppendToHistory(t *testing.T) {
	var h []float64
	for i := 0; i < historySize+5; i++ {
		h = appendToHistory(h, float64(i))
	}
	assert.Len(t, h, historySize)
	assert.Equal(t, float64(5), h[0])
}

func TestProbeRatio(t *testing.T) {
	s := status("x", breaker.StateHalfOpen, 0)
	s.HalfOpenRequests = 3
	assert.Equal(t, 1.0, probeRatio(s))

	s.Config.HalfOpenMaxRequests = 0
	assert.Equal(t, 0.0, probeRatio(s))
}
