package monitor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/breaker"
)

const (
	sparklineWidth  = 20
	sparklineHeight = 1
	historySize     = 20
	nameWidth       = 32
)

// Source is what the dashboard polls.
type Source interface {
	Breakers(ctx context.Context) ([]breaker.Status, error)
	Health(ctx context.Context) (Health, error)
}

// Snapshot is one poll of the server.
type Snapshot struct {
	Health   Health
	Breakers []breaker.Status
}

// Model is the BubbleTea breaker dashboard.
type Model struct {
	url        string
	source     Source
	interval   time.Duration
	now        func() time.Time
	lastUpdate time.Time
	snapshot   Snapshot
	err        error
	quitting   bool

	// failures per breaker, one point per poll
	history map[string][]float64

	probes progress.Model
}

// Styles follow a k9s-like palette.
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// NewModel creates a dashboard polling the server at url every interval.
func NewModel(url string, interval time.Duration) Model {
	return newModel(url, NewClient(url), interval)
}

func newModel(url string, source Source, interval time.Duration) Model {
	return Model{
		url:      url,
		source:   source,
		interval: interval,
		now:      time.Now,
		history:  make(map[string][]float64),
		probes: progress.New(
			progress.WithGradient("#00ff00", "#ffff00"),
			progress.WithWidth(20),
			progress.WithoutPercentage(),
		),
	}
}

type tickMsg time.Time
type snapshotMsg Snapshot
type errMsg struct{ err error }

func (m Model) Init() tea.Cmd {
	return tea.Batch(tick(m.interval), fetch(m.source))
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetch(source Source) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		health, err := source.Health(ctx)
		if err != nil {
			return errMsg{err}
		}
		statuses, err := source.Breakers(ctx)
		if err != nil {
			return errMsg{err}
		}
		return snapshotMsg{Health: health, Breakers: statuses}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, fetch(m.source)
		}

	case tickMsg:
		return m, tea.Batch(tick(m.interval), fetch(m.source))

	case snapshotMsg:
		snap := Snapshot(msg)
		sort.Slice(snap.Breakers, func(i, j int) bool {
			return snap.Breakers[i].Name < snap.Breakers[j].Name
		})
		history := make(map[string][]float64, len(snap.Breakers))
		for _, s := range snap.Breakers {
			history[s.Name] = appendToHistory(m.history[s.Name], float64(s.Metrics.FailureCount))
		}
		m.history = history
		m.snapshot = snap
		m.lastUpdate = m.now()
		m.err = nil
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.err != nil {
		return m.renderError()
	}
	return m.renderDashboard()
}

func (m Model) renderError() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(" Third Eye Breakers ") + "\n\n")
	b.WriteString(errorStyle.Render("⚠ Cannot reach thirdeye server") + "\n\n")
	b.WriteString(dimStyle.Render("URL: ") + valueStyle.Render(m.url) + "\n")
	b.WriteString(dimStyle.Render("Error: ") + errorStyle.Render(m.err.Error()) + "\n\n")
	b.WriteString(dimStyle.Render("Start it with: thirdeye serve") + "\n")
	b.WriteString(footerStyle.Render("[q] quit  [r] retry"))
	return containerStyle.Render(b.String())
}

func (m Model) renderDashboard() string {
	var b strings.Builder

	lastUpdate := "never"
	if !m.lastUpdate.IsZero() {
		lastUpdate = m.lastUpdate.Format("15:04:05")
	}
	h := m.snapshot.Health
	b.WriteString(headerStyle.Render(" Third Eye Breakers ") + "\n")
	b.WriteString(fmt.Sprintf("%s   %s %s   %s %s   %s\n",
		healthBadge(h.Status),
		dimStyle.Render("Eyes:"), valueStyle.Render(fmt.Sprint(h.Eyes)),
		dimStyle.Render("Sessions:"), valueStyle.Render(fmt.Sprint(h.Sessions)),
		dimStyle.Render(lastUpdate),
	))

	b.WriteString("\n" + sectionStyle.Render("┃ Circuits") + "\n")
	if len(m.snapshot.Breakers) == 0 {
		b.WriteString(dimStyle.Render("  no breakers yet; they appear after the first guarded call") + "\n")
	}
	now := m.now()
	for _, s := range m.snapshot.Breakers {
		b.WriteString(m.renderBreaker(s, now))
	}

	b.WriteString("\n" + footerKeyStyle.Render("[q]") + footerStyle.Render(" quit  ") +
		footerKeyStyle.Render("[r]") + footerStyle.Render(" refresh  ") +
		footerStyle.Render(fmt.Sprintf("Auto: %v", m.interval)))

	return containerStyle.Render(b.String())
}

func (m Model) renderBreaker(s breaker.Status, now time.Time) string {
	var b strings.Builder
	name := s.Name
	if len(name) > nameWidth {
		name = name[:nameWidth-1] + "…"
	}
	b.WriteString(fmt.Sprintf("  %-*s %s\n", nameWidth, labelStyle.Render(name), FormatState(s.State)))

	b.WriteString(fmt.Sprintf("    %s %s/%s  %s %s  %s\n",
		dimStyle.Render("failures"),
		valueStyle.Render(fmt.Sprint(s.Metrics.FailureCount)),
		dimStyle.Render(fmt.Sprint(s.Config.FailureThreshold)),
		dimStyle.Render("success"),
		valueStyle.Render(FormatSuccessRate(s.Metrics)),
		createSparkline(m.history[s.Name]),
	))

	switch s.State {
	case breaker.StateOpen:
		b.WriteString(fmt.Sprintf("    %s %s\n",
			dimStyle.Render("probe in"),
			warningStyle.Render(FormatDuration(ResetIn(s, now)))))
	case breaker.StateHalfOpen:
		b.WriteString(fmt.Sprintf("    %s %s %s\n",
			dimStyle.Render("probes"),
			m.probes.ViewAs(probeRatio(s)),
			dimStyle.Render(fmt.Sprintf("%d/%d", s.HalfOpenRequests, s.Config.HalfOpenMaxRequests))))
	}
	return b.String()
}

func healthBadge(status string) string {
	switch status {
	case "ok":
		return healthyStyle.Render("✓ HEALTHY")
	case "degraded":
		return warningStyle.Render("⚠ DEGRADED")
	default:
		return errorStyle.Render("✗ UNKNOWN")
	}
}

func probeRatio(s breaker.Status) float64 {
	if s.Config.HalfOpenMaxRequests <= 0 {
		return 0
	}
	r := float64(s.HalfOpenRequests) / float64(s.Config.HalfOpenMaxRequests)
	if r > 1 {
		r = 1
	}
	return r
}

func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[len(history)-historySize:]
	}
	return history
}

func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}
	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}
	spark.Draw()
	return sparklineStyle.Render(spark.View())
}
