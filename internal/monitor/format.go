package monitor

import (
	"fmt"
	"time"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/breaker"
)

// FormatState renders a breaker state with its badge.
func FormatState(s breaker.State) string {
	switch s {
	case breaker.StateClosed:
		return healthyStyle.Render("● closed")
	case breaker.StateHalfOpen:
		return warningStyle.Render("◐ half-open")
	case breaker.StateOpen:
		return errorStyle.Render("○ open")
	default:
		return dimStyle.Render(string(s))
	}
}

// FormatSuccessRate formats successes over total requests as a percentage.
// No traffic reads as "n/a".
func FormatSuccessRate(m breaker.Metrics) string {
	if m.TotalRequests == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", float64(m.TotalSuccesses)/float64(m.TotalRequests)*100)
}

// FormatDuration formats d as "Xh Ym", "Xm Ys" or "Xs".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	seconds := int64(d.Round(time.Second) / time.Second)
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}

// ResetIn is how long an open breaker has left before it admits a probe.
// It is zero for breakers that are not open or whose timeout has passed.
func ResetIn(s breaker.Status, now time.Time) time.Duration {
	if s.State != breaker.StateOpen {
		return 0
	}
	left := s.Config.ResetTimeout - now.Sub(s.StateChangedAt)
	if left < 0 {
		return 0
	}
	return left
}
