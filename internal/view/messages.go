package view

import "garden-monitor/internal/services"

// ChangedMsg carries a fresh dashboard after a session change.
type ChangedMsg struct {
	Dashboard services.Dashboard
}

// TickMsg carries a refreshed relative-update label.
type TickMsg struct {
	Label string
}
