// Package connstate projects transport lifecycle events onto a single
// connection state for display.
//
// The machine is last-event-wins: every event is accepted from every state,
// because the transport may report events in any order while connectivity
// flaps. It never rejects a transition.
package connstate

import "sync"

// State is the lifecycle state of the broker connection.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
	Offline
	Error
)

// States lists every state in declaration order.
var States = []State{Disconnected, Connecting, Connected, Reconnecting, Offline, Error}

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Offline:
		return "offline"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Label is the human-facing status text.
func (s State) Label() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Reconnecting:
		return "Reconnecting..."
	case Offline:
		return "Offline"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// BadgeClass is the status badge style hint for renderers.
func (s State) BadgeClass() string {
	switch s {
	case Connected:
		return "connected"
	case Error, Offline:
		return "error"
	case Reconnecting:
		return "reconnecting"
	default:
		return ""
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Event drives a transition.
type Event int

const (
	EventStart Event = iota
	EventTransportConnected
	EventTransportReconnecting
	EventTransportError
	EventTransportOffline
	EventTransportClosed
	EventShutdown
)

func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventTransportConnected:
		return "transportConnected"
	case EventTransportReconnecting:
		return "transportReconnecting"
	case EventTransportError:
		return "transportError"
	case EventTransportOffline:
		return "transportOffline"
	case EventTransportClosed:
		return "transportClosed"
	case EventShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

var transitions = map[Event]State{
	EventStart:                 Connecting,
	EventTransportConnected:    Connected,
	EventTransportReconnecting: Reconnecting,
	EventTransportError:        Error,
	EventTransportOffline:      Offline,
	EventTransportClosed:       Disconnected,
	EventShutdown:              Disconnected,
}

// Next returns the state reached by e. The current state is irrelevant.
// Unknown events leave current unchanged.
func Next(current State, e Event) State {
	if s, ok := transitions[e]; ok {
		return s
	}
	return current
}

// Machine holds the live connection state. The zero value is Disconnected
// and ready to use.
type Machine struct {
	mu    sync.RWMutex
	state State
}

// Apply records e and returns the previous and resulting states.
func (m *Machine) Apply(e Event) (prev, next State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev = m.state
	m.state = Next(prev, e)
	return prev, m.state
}

// State returns the live state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}
