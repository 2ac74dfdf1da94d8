package view

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"garden-monitor/internal/derived"
	"garden-monitor/internal/services"
)

const (
	barCells   = 20
	phScaleMax = 14.0
)

// Model is the Bubble Tea model for the terminal dashboard.
type Model struct {
	dashboard services.Dashboard
	width     int
	quitting  bool
	cancel    context.CancelFunc
}

// NewModel creates a model showing initial. cancel is invoked on quit.
func NewModel(initial services.Dashboard, cancel context.CancelFunc) Model {
	return Model{dashboard: initial, cancel: cancel}
}

// Init returns the initial command for the model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.cancel != nil {
				m.cancel()
			}
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case ChangedMsg:
		m.dashboard = msg.Dashboard

	case TickMsg:
		if m.dashboard.HasUpdate {
			m.dashboard.RelativeUpdate = msg.Label
		}
	}
	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	d := m.dashboard

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("🌱 Garden Monitor"))
	sb.WriteString("  ")
	sb.WriteString(badge(d.BadgeClass, d.ConnectionLabel))
	sb.WriteString("\n")
	if d.HasUpdate {
		sb.WriteString(updateStyle.Render("🕐 Updated " + d.RelativeUpdate))
	} else {
		sb.WriteString(updateStyle.Render("Waiting for data..."))
	}
	sb.WriteString("\n\n")

	cards := []string{
		card("🌡️  Temperature", trendArrow(d.Trends.Temperature),
			fmt.Sprintf("%.1f °C", d.Snapshot.Temperature), "", d.Status.Temperature),
		card("💧 Air Humidity", trendArrow(d.Trends.AirHumidity),
			fmt.Sprintf("%.0f %%", d.Snapshot.AirHumidity), bar(d.Levels.AirHumidity), ""),
		card("🌱 Soil Humidity", trendArrow(d.Trends.SoilHumidity),
			strconv.FormatFloat(d.Snapshot.SoilHumidity, 'f', -1, 64)+" %", bar(d.Levels.SoilHumidity), d.Status.Soil),
		card("🧪 Soil pH", "",
			fmt.Sprintf("%.1f", d.Snapshot.PH), phScale(d.Snapshot.PH), d.Status.PH),
		card("💦 Water Pump", "", pumpValue(d.Snapshot.PumpOn), "", pumpStatus(d.Snapshot.PumpOn)),
	}

	perRow := 3
	if m.width > 0 && m.width < 3*(cardStyle.GetWidth()+2) {
		perRow = 1
	}
	for i := 0; i < len(cards); i += perRow {
		end := min(i+perRow, len(cards))
		sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cards[i:end]...))
		sb.WriteString("\n")
	}

	sb.WriteString(footerStyle.Render(fmt.Sprintf("📊 %d readings recorded  •  q to quit", d.HistorySize)))
	sb.WriteString("\n")
	return sb.String()
}

func card(title, trend, value, gauge, status string) string {
	lines := []string{cardTitleStyle.Render(strings.TrimSpace(title + " " + trend)), valueStyle.Render(value)}
	if gauge != "" {
		lines = append(lines, gauge)
	}
	if status != "" {
		lines = append(lines, statusStyle.Render(status))
	}
	return cardStyle.Render(strings.Join(lines, "\n"))
}

func trendArrow(t derived.Trend) string {
	switch t {
	case derived.TrendUp:
		return "↗"
	case derived.TrendDown:
		return "↘"
	default:
		return "→"
	}
}

// bar draws a gauge. The display clamps to the bar; the gauge width does not.
func bar(g derived.Gauge) string {
	filled := int(g.Width / 100 * barCells)
	filled = max(0, min(filled, barCells))
	return levelStyle(g.Class).Render(strings.Repeat("█", filled)) +
		footerStyle.Render(strings.Repeat("░", barCells-filled))
}

func phScale(ph float64) string {
	pos := int(ph / phScaleMax * float64(barCells-1))
	pos = max(0, min(pos, barCells-1))
	return strings.Repeat("─", pos) + "●" + strings.Repeat("─", barCells-1-pos)
}

func pumpValue(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func pumpStatus(on bool) string {
	if on {
		return "⚡ System Active"
	}
	return "⏸️  Standby"
}
