package view

import (
	"github.com/charmbracelet/lipgloss"

	"garden-monitor/internal/derived"
)

var (
	colorMuted   = lipgloss.Color("#7d8590")
	colorGood    = lipgloss.Color("#3fb950")
	colorWarning = lipgloss.Color("#d29922")
	colorError   = lipgloss.Color("#f85149")
	colorInfo    = lipgloss.Color("#58a6ff")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorGood)

	badgeStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Bold(true)

	updateStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1).
			Width(24)

	cardTitleStyle = lipgloss.NewStyle().
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorInfo)

	statusStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorMuted)
)

// badgeColors maps connection badge classes to colors.
var badgeColors = map[string]lipgloss.Color{
	"connected":    colorGood,
	"error":        colorError,
	"reconnecting": colorWarning,
}

func badge(class, label string) string {
	color, ok := badgeColors[class]
	if !ok {
		color = colorMuted
	}
	return badgeStyle.Foreground(color).Render("● " + label)
}

var levelColors = map[derived.Level]lipgloss.Color{
	derived.LevelLow:    colorError,
	derived.LevelMedium: colorWarning,
	derived.LevelGood:   colorGood,
}

func levelStyle(l derived.Level) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(levelColors[l])
}
