// Package view renders the dashboard projection as an interactive terminal UI.
package view

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"garden-monitor/internal/services"
	"garden-monitor/internal/staleness"
)

// Source is the read side of a monitoring session.
type Source interface {
	Dashboard() services.Dashboard
	Subscribe() (<-chan struct{}, func())
	LastUpdate() (time.Time, bool)
}

// Bridge forwards session changes and clock ticks to the program.
// program.Send is goroutine-safe.
type Bridge struct {
	program *tea.Program
}

// NewBridge creates a new bridge that forwards events to the given program.
func NewBridge(program *tea.Program) *Bridge {
	return &Bridge{program: program}
}

// Changed forwards a fresh dashboard.
func (b *Bridge) Changed(d services.Dashboard) {
	b.program.Send(ChangedMsg{Dashboard: d})
}

// Tick forwards a refreshed relative label.
func (b *Bridge) Tick(label string) {
	b.program.Send(TickMsg{Label: label})
}

// Run shows the dashboard until the user quits or ctx is cancelled. Quitting
// stops the staleness clock and the change forwarder.
func Run(ctx context.Context, source Source, interval time.Duration, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := NewModel(source.Dashboard(), cancel)
	program := tea.NewProgram(model, append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)...)
	bridge := NewBridge(program)

	changes, unsubscribe := source.Subscribe()
	defer unsubscribe()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-changes:
				bridge.Changed(source.Dashboard())
			}
		}
	}()

	go staleness.NewClock(source, interval).Run(ctx, bridge.Tick)

	_, err := program.Run()
	if err != nil && ctx.Err() != nil {
		// Cancelled by quit or by the caller.
		return nil
	}
	return err
}
