package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorPrimary = lipgloss.Color("#00ff9f")
	colorBad     = lipgloss.Color("#FF5F5F")
	colorDim     = lipgloss.Color("#6e7681")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	labelStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(colorDim)
	goodStyle  = lipgloss.NewStyle().Foreground(colorPrimary)
	badStyle   = lipgloss.NewStyle().Foreground(colorBad)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1)
)

const barWidth = 30

// RenderSummary draws the dashboard for a terminal
func RenderSummary(s *Summary) string {
	if s.Count == 0 {
		return dimStyle.Render("No recordings yet. Record and submit a voice sample first.")
	}

	cards := lipgloss.JoinHorizontal(lipgloss.Top,
		card("Cognitive", s.Averages.Cognitive),
		card("Stress", s.Averages.Stress),
		card("Fatigue", s.Averages.Fatigue),
	)

	var rows []string
	for _, p := range s.Chart {
		rows = append(rows,
			labelStyle.Render(p.Name),
			"  cognitive "+bar(p.Cognitive),
			"  stress    "+bar(p.Stress),
			"  fatigue   "+bar(p.Fatigue),
		)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(fmt.Sprintf("Cognitive health dashboard (%d recordings)", s.Count)),
		cards,
		boxStyle.Render(strings.Join(rows, "\n")),
	)
}

// RenderComparison draws each recording's deviation from the baseline
func RenderComparison(c *Comparison) string {
	if c.Baseline == nil {
		return dimStyle.Render("No baseline recording.")
	}

	lines := []string{
		titleStyle.Render("Baseline: " + ShortLabel(c.Baseline.RecordingLabel)),
		fmt.Sprintf("cognitive %d  stress %d  fatigue %d",
			c.Baseline.CognitiveScore, c.Baseline.StressLevel, c.Baseline.FatigueIndex),
	}
	if len(c.Comparisons) == 0 {
		lines = append(lines, dimStyle.Render("Record more samples to compare against the baseline."))
	}
	for _, rc := range c.Comparisons {
		lines = append(lines,
			"",
			labelStyle.Render(ShortLabel(rc.Recording.RecordingLabel)),
			"  cognitive "+renderDelta(rc.Cognitive),
			"  stress    "+renderDelta(rc.Stress),
			"  fatigue   "+renderDelta(rc.Fatigue),
		)
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func card(name string, value int) string {
	return boxStyle.Render(dimStyle.Render(name) + "\n" + titleStyle.Render(fmt.Sprintf("%d", value)))
}

func bar(value int) string {
	if value < 0 {
		value = 0
	}
	if value > 100 {
		value = 100
	}
	filled := value * barWidth / 100
	return goodStyle.Render(strings.Repeat("█", filled)) +
		dimStyle.Render(strings.Repeat("░", barWidth-filled)) +
		fmt.Sprintf(" %3d", value)
}

func renderDelta(d MetricDelta) string {
	arrow := "→"
	switch d.Trend {
	case TrendUp:
		arrow = "↑"
	case TrendDown:
		arrow = "↓"
	}
	text := fmt.Sprintf("%3d %s %+d%%", d.Current, arrow, d.Deviation)
	switch d.Assessment {
	case Improved:
		return goodStyle.Render(text)
	case Worsened:
		return badStyle.Render(text)
	default:
		return dimStyle.Render(text)
	}
}
