package mqtt

import "time"

// EventKind identifies what the transport observed.
type EventKind int

const (
	EventConnected EventKind = iota
	EventMessage
	EventReconnecting
	EventError
	EventOffline
	EventClosed
	EventSubscribeFailed
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventMessage:
		return "message"
	case EventReconnecting:
		return "reconnecting"
	case EventError:
		return "error"
	case EventOffline:
		return "offline"
	case EventClosed:
		return "closed"
	case EventSubscribeFailed:
		return "subscribe_failed"
	default:
		return "unknown"
	}
}

// Event is one transport notification. Payload and Topic are set for
// EventMessage; Err carries the cause of error, offline and subscribe events.
type Event struct {
	Kind    EventKind
	Topic   string
	Payload []byte
	Err     error
	At      time.Time
}
