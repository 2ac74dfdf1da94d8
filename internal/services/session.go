package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"garden-monitor/internal/aggregator"
	"garden-monitor/internal/connstate"
	"garden-monitor/internal/decoder"
	"garden-monitor/internal/derived"
	"garden-monitor/internal/models"
	"garden-monitor/internal/mqtt"
	"garden-monitor/internal/staleness"
)

var (
	ErrAlreadyStarted = errors.New("session already started")
	ErrStopped        = errors.New("session stopped")
)

// Transport is the subscribe-only connection the session consumes.
type Transport interface {
	Start(ctx context.Context) error
	Stop()
	Events() <-chan mqtt.Event
}

// Observer receives ingestion metrics. observability.PromObs implements it.
type Observer interface {
	MessageReceived()
	DecodeFailed()
	SubscribeFailed()
	MessageDiscarded()
	SnapshotAccepted(snap models.SensorSnapshot, historyLen int)
	ConnectionState(s connstate.State)
}

// Archiver accepts snapshots for asynchronous storage. Enqueue must not block.
type Archiver interface {
	Enqueue(topic string, entry models.HistoryEntry) bool
}

// SessionConfig holds configuration for a Session.
type SessionConfig struct {
	HistoryCapacity int
	TrendWindow     int

	Logger   *slog.Logger // nil uses slog.Default()
	Observer Observer     // optional
	Archiver Archiver     // optional
}

// DefaultSessionConfig returns default configuration
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		HistoryCapacity: aggregator.DefaultHistoryCapacity,
		TrendWindow:     derived.DefaultTrendWindow,
	}
}

// transportTransitions maps transport events onto connection state events.
var transportTransitions = map[mqtt.EventKind]connstate.Event{
	mqtt.EventConnected:    connstate.EventTransportConnected,
	mqtt.EventReconnecting: connstate.EventTransportReconnecting,
	mqtt.EventError:        connstate.EventTransportError,
	mqtt.EventOffline:      connstate.EventTransportOffline,
	mqtt.EventClosed:       connstate.EventTransportClosed,
}

// Session owns one monitoring session: the transport, the rolling history,
// the connection state and the last-update mark.
//
// All mutation happens in Handle under a single lock, so transport callbacks
// never interleave. After Stop begins every event is discarded.
type Session struct {
	transport Transport
	config    SessionConfig
	logger    *slog.Logger
	observer  Observer
	now       func() time.Time

	history *aggregator.HistoryBuffer
	state   connstate.Machine

	mu         sync.RWMutex
	lastUpdate time.Time
	hasUpdate  bool
	started    bool
	stopped    bool

	subsMu  sync.Mutex
	subs    map[int]chan struct{}
	nextSub int

	cancel   context.CancelFunc
	loopDone chan struct{}
	stopOnce sync.Once
}

// NewSession creates an unstarted session over transport.
func NewSession(transport Transport, config SessionConfig) *Session {
	if config.TrendWindow <= 0 {
		config.TrendWindow = derived.DefaultTrendWindow
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := config.Observer
	if observer == nil {
		observer = noopObserver{}
	}

	logger = logger.With("component", "session")

	// The current snapshot takes one history slot; the trend needs a full
	// window of readings before it.
	history := aggregator.NewHistoryBuffer(config.HistoryCapacity)
	if limit := history.Cap() - 1; limit >= 1 && config.TrendWindow > limit {
		logger.Warn("Session: Trend window exceeds history, clamping", "trend_window", config.TrendWindow, "limit", limit)
		config.TrendWindow = limit
	}

	return &Session{
		transport: transport,
		config:    config,
		logger:    logger,
		observer:  observer,
		now:       time.Now,
		history:   history,
		subs:      make(map[int]chan struct{}),
		loopDone:  make(chan struct{}),
	}
}

// Start moves the session to Connecting, starts the transport and begins
// consuming its events. It does not wait for the connection.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.stopped:
		s.mu.Unlock()
		return ErrStopped
	case s.started:
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.applyLocked(connstate.EventStart)
	s.mu.Unlock()

	if err := s.transport.Start(ctx); err != nil {
		s.cancel()
		close(s.loopDone)
		return fmt.Errorf("failed to start transport: %w", err)
	}

	go s.loop(ctx)
	s.logger.Info("Session: Started")
	s.notify()
	return nil
}

func (s *Session) loop(ctx context.Context) {
	defer close(s.loopDone)

	events := s.transport.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			s.Handle(ev)
		}
	}
}

// Stop shuts the session down: it stops accepting events, moves to
// Disconnected, tears the transport down and waits for the event loop.
// Safe to call more than once.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.applyLocked(connstate.EventShutdown)
		started := s.started
		s.mu.Unlock()

		s.transport.Stop()
		if started {
			s.cancel()
			<-s.loopDone
		}

		s.logger.Info("Session: Stopped", "history_size", s.history.Len())
		s.notify()
	})
}

// Handle applies one transport event. Decode failures are logged and
// dropped without touching the displayed snapshot.
func (s *Session) Handle(ev mqtt.Event) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.observer.MessageDiscarded()
		s.logger.Debug("Session: Discarding event after stop", "event", ev.Kind)
		return
	}

	changed := false
	switch ev.Kind {
	case mqtt.EventMessage:
		changed = s.ingestLocked(ev)
	case mqtt.EventSubscribeFailed:
		s.observer.SubscribeFailed()
		s.logger.Warn("Session: Subscription failed; waiting for next reconnect", "topic", ev.Topic, "error", ev.Err)
	default:
		if e, ok := transportTransitions[ev.Kind]; ok {
			prev, next := s.applyLocked(e)
			changed = prev != next
			if ev.Err != nil {
				s.logger.Warn("Session: Transport event", "event", ev.Kind, "state", next, "error", ev.Err)
			}
		}
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

func (s *Session) ingestLocked(ev mqtt.Event) bool {
	s.observer.MessageReceived()

	snap, err := decoder.Decode(ev.Payload)
	if err != nil {
		s.observer.DecodeFailed()
		s.logger.Warn("Session: Dropping message", "topic", ev.Topic, "error", err)
		return false
	}

	at := ev.At
	if at.IsZero() {
		at = s.now()
	}
	entry := models.HistoryEntry{Snapshot: snap, ReceivedAt: at}

	s.history.Append(entry)
	s.lastUpdate, s.hasUpdate = at, true
	s.observer.SnapshotAccepted(snap, s.history.Len())

	s.logger.Debug("Session: Snapshot accepted",
		"temperature", snap.Temperature, "air_humidity", snap.AirHumidity,
		"soil_humidity", snap.SoilHumidity, "ph", snap.PH, "pump_on", snap.PumpOn)

	if s.config.Archiver != nil && !s.config.Archiver.Enqueue(ev.Topic, entry) {
		s.logger.Warn("Session: Archive queue full, reading not archived")
	}
	return true
}

func (s *Session) applyLocked(e connstate.Event) (prev, next connstate.State) {
	prev, next = s.state.Apply(e)
	s.observer.ConnectionState(next)
	if prev != next {
		s.logger.Info("Session: Connection state changed", "event", e, "from", prev, "to", next)
	}
	return prev, next
}

// LastUpdate returns the receive time of the newest accepted snapshot.
func (s *Session) LastUpdate() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdate, s.hasUpdate
}

// State returns the live connection state.
func (s *Session) State() connstate.State {
	return s.state.State()
}

// Current returns the displayed snapshot.
func (s *Session) Current() models.SensorSnapshot {
	return s.history.Current()
}

// History returns up to n recent entries, oldest first.
func (s *Session) History(n int) []models.HistoryEntry {
	return s.history.Window(n)
}

// Dashboard builds the presentation projection for the present instant.
func (s *Session) Dashboard() Dashboard {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// The newest entry is the current snapshot; trends compare it with the
	// entries before it.
	prior := s.history.Window(s.config.TrendWindow + 1)
	if len(prior) > 0 {
		prior = prior[:len(prior)-1]
	}

	d := buildDashboard(s.history.Current(), prior, s.config.TrendWindow, s.state.State())
	d.HistorySize = s.history.Len()
	if label, ok := staleness.RelativeLabel(s.now(), s.lastUpdate, s.hasUpdate); ok {
		last := s.lastUpdate
		d.RelativeUpdate, d.HasUpdate, d.LastUpdate = label, true, &last
	}
	return d
}

// Subscribe returns a channel signalled after every visible change.
// Signals coalesce: a slow reader sees at least one pending signal.
func (s *Session) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subsMu.Unlock()

	return ch, func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Session) notify() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

type noopObserver struct{}

func (noopObserver) MessageReceived()                            {}
func (noopObserver) DecodeFailed()                               {}
func (noopObserver) SubscribeFailed()                            {}
func (noopObserver) MessageDiscarded()                           {}
func (noopObserver) SnapshotAccepted(models.SensorSnapshot, int) {}
func (noopObserver) ConnectionState(connstate.State)             {}
