package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
)

const (
	titleWidth = 55
	barWidth   = 20
)

var (
	colorBorder = lipgloss.Color("#575653")
	colorText   = lipgloss.Color("#FFFCF0")
	colorAccent = lipgloss.Color("#3AA99F")
	colorGreen  = lipgloss.Color("#879A39")
	colorYellow = lipgloss.Color("#D0A215")
	colorOrange = lipgloss.Color("#DA702C")
	colorRed    = lipgloss.Color("#D14D41")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorText)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	dimStyle    = lipgloss.NewStyle().Foreground(colorBorder)
)

func renderTitle(title string) string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Width(titleWidth).
		Align(lipgloss.Center).
		Render(titleStyle.Render(title))
}

func renderTable(title string, headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return cellStyle
		}).
		Rows(rows...)
	if len(headers) > 0 {
		t = t.Headers(headers...)
	}

	if title == "" {
		return t.String()
	}
	return "  " + headerStyle.Render(title) + "\n" + t.String()
}

func renderBar(fraction float64, width int) string {
	fraction = min(max(fraction, 0), 1)
	filled := int(fraction * float64(width))

	color := colorGreen
	switch {
	case fraction >= 0.9:
		color = colorRed
	case fraction >= 0.8:
		color = colorOrange
	}

	return lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled)) +
		dimStyle.Render(strings.Repeat("░", width-filled))
}

func thresholdStyle(threshold domain.Threshold) lipgloss.Style {
	switch threshold {
	case domain.ThresholdWarning:
		return lipgloss.NewStyle().Foreground(colorYellow)
	case domain.ThresholdCritical:
		return lipgloss.NewStyle().Foreground(colorOrange)
	case domain.ThresholdEmergency:
		return lipgloss.NewStyle().Bold(true).Foreground(colorRed)
	default:
		return lipgloss.NewStyle().Foreground(colorGreen)
	}
}
