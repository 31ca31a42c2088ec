package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"finsight/internal/anomaly"
	"finsight/internal/services"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Width(22)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981")).
		Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))
)

// severityStyle colours a severity label from green to red.
func severityStyle(s anomaly.Severity) lipgloss.Style {
	switch s {
	case anomaly.SeverityCritical:
		return errorStyle
	case anomaly.SeverityHigh:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#F97316")).Bold(true)
	case anomaly.SeverityMedium:
		return warnStyle
	default:
		return okStyle
	}
}

func field(label, value string) string {
	return labelStyle.Render(label) + value
}

// renderSummary is the styled header printed before the plain text report.
func renderSummary(report *services.AnalysisReport) string {
	name := report.Symbol
	if name == "" {
		name = report.Source
	}

	stats := report.Statistics
	lines := []string{
		field("Series", fmt.Sprintf("%s (%s, %s)", name, report.Interval, report.Source)),
		field("Days analysed", fmt.Sprintf("%d", stats.TotalDays)),
		field("Average volume", fmt.Sprintf("%.2f", stats.Mean)),
		field("Threshold", fmt.Sprintf("%.2f (z = %.2f)", stats.Threshold, report.Baseline.ZMultiplier)),
		field("Event days", fmt.Sprintf("%d", stats.EventDayCount)),
	}

	count := fmt.Sprintf("%d", report.Summary.TotalAnomalies)
	if report.Summary.TotalAnomalies > 0 {
		count = warnStyle.Render(count)
	} else {
		count = okStyle.Render(count)
	}
	lines = append(lines, field("Pre-event anomalies", count))

	if len(report.Rejected) > 0 {
		lines = append(lines, field("Rejected events", errorStyle.Render(fmt.Sprintf("%d", len(report.Rejected)))))
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("FinSight volume anomaly report"))
	b.WriteString("\n")
	b.WriteString(panelStyle.Render(strings.Join(lines, "\n")))
	b.WriteString("\n")

	for _, d := range report.Summary.Details {
		b.WriteString(fmt.Sprintf("  %s  volume %-12.0f score %6.2f  %s\n",
			d.Time.Format("2006-01-02"),
			d.Volume,
			d.AnomalyScore,
			severityStyle(d.Severity).Render(string(d.Severity)),
		))
	}
	for _, r := range report.Rejected {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("  rejected %q: %s", r.Raw, r.Reason)))
		b.WriteString("\n")
	}
	return b.String()
}

// checkLine renders one line of the check command.
func checkLine(label string, ok bool, detail string) string {
	mark := okStyle.Render("ok")
	if !ok {
		mark = errorStyle.Render("FAIL")
	}
	line := field(label, mark)
	if detail != "" {
		line += " " + mutedStyle.Render(detail)
	}
	return line
}
