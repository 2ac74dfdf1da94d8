package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// QoSAtMostOnce is the subscription quality: no acknowledgment, no redelivery.
const QoSAtMostOnce byte = 0

const (
	eventBufferSize    = 100
	defaultEmitTimeout = time.Second
)

var (
	// ErrTransport is matched by every *TransportError.
	ErrTransport = errors.New("mqtt transport failure")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("mqtt client already started")
)

// TransportError reports a failed connect or subscribe. It is never fatal:
// connect failures are retried and subscribe failures are only reported.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mqtt %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// Client maintains a subscription to one topic on one broker. Connection
// attempts are supervised by a single loop that retries forever at a fixed
// interval; there is no backoff growth and no retry limit.
type Client struct {
	config    ClientConfig
	logger    *slog.Logger
	newClient func(*mqtt.ClientOptions) mqtt.Client

	client      mqtt.Client
	events      chan Event
	lost        chan error
	emitTimeout time.Duration

	// mu orders Start against Stop; stopped is also read lock-free by
	// paho callbacks.
	mu       sync.Mutex
	started  bool
	stopped  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// ClientConfig holds MQTT client configuration
type ClientConfig struct {
	Broker            string
	Topic             string
	ClientID          string
	KeepAlive         time.Duration
	ProtocolVersion   uint
	CleanSession      bool
	ReconnectInterval time.Duration
	ConnectTimeout    time.Duration
	TLSInsecure       bool
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger sets the logger. nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClientFactory replaces the paho constructor, mainly for tests.
func WithClientFactory(factory func(*mqtt.ClientOptions) mqtt.Client) Option {
	return func(c *Client) {
		c.newClient = factory
	}
}

// NewClient creates an unstarted client. No network I/O happens until Start.
func NewClient(config ClientConfig, opts ...Option) *Client {
	c := &Client{
		config:      config,
		logger:      slog.Default(),
		newClient:   mqtt.NewClient,
		events:      make(chan Event, eventBufferSize),
		lost:        make(chan error, 1),
		emitTimeout: defaultEmitTimeout,
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "mqtt")
	return c
}

// Events delivers lifecycle and message events. The channel is never closed;
// consumers stop reading when they stop the client.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Start begins connecting in the background and returns immediately.
// Results arrive later as events.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped.Load() {
		return &TransportError{Op: "start", Err: errors.New("client stopped")}
	}
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true

	c.client = c.newClient(c.buildOptions())

	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx)

	c.logger.Info("MQTT Client: Starting", "broker", c.config.Broker, "topic", c.config.Topic, "client_id", c.config.ClientID)
	return nil
}

// Stop tears the connection down forcefully and waits for the supervisor to
// exit. Events raised after Stop begins are discarded. Safe to call twice.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopped.Store(true)
		close(c.stopCh)
		started, cancel := c.started, c.cancel
		c.mu.Unlock()

		if !started {
			return
		}
		cancel()
		<-c.done
		c.logger.Info("MQTT Client: Disconnected")
	})
}

func (c *Client) buildOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetKeepAlive(c.config.KeepAlive)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetProtocolVersion(c.config.ProtocolVersion)
	opts.SetCleanSession(c.config.CleanSession)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	// Reconnection is driven by run, at a fixed interval.
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	if isSecureScheme(c.config.Broker) {
		opts.SetTLSConfig(&tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: c.config.TLSInsecure, // #nosec G402 -- opt-in via MQTT_TLS_INSECURE
		})
	}
	return opts
}

func isSecureScheme(broker string) bool {
	u, err := url.Parse(broker)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "ssl", "tls", "mqtts", "wss":
		return true
	}
	return false
}

// run is the supervisor loop: connect, subscribe, wait for loss, sleep one
// interval, repeat until ctx is cancelled.
func (c *Client) run(ctx context.Context) {
	defer close(c.done)
	defer c.client.Disconnect(0)

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if !sleepCtx(ctx, c.config.ReconnectInterval) {
				break
			}
			c.logger.Info("MQTT Client: Reconnecting", "attempt", attempt)
			c.emit(Event{Kind: EventReconnecting})
		}

		c.drainLost()
		if err := c.connect(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			c.logger.Error("MQTT Client: Connection attempt failed", "error", err)
			c.emit(Event{Kind: EventError, Err: err})
			continue
		}

		c.logger.Info("MQTT Client: Connected to broker", "broker", c.config.Broker)
		c.emit(Event{Kind: EventConnected})
		c.subscribe(ctx)

		select {
		case <-ctx.Done():
		case err := <-c.lost:
			c.logger.Warn("MQTT Client: Connection lost", "error", err)
			c.emit(Event{Kind: EventOffline, Err: err})
			continue
		}
		break
	}

	c.emit(Event{Kind: EventClosed})
}

func (c *Client) connect(ctx context.Context) error {
	token := c.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return &TransportError{Op: "connect", Err: err}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	select {
	case c.lost <- err:
	default:
	}
}

func (c *Client) drainLost() {
	select {
	case <-c.lost:
	default:
	}
}

// sleepCtx waits d, returning false if ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// emit hands ev to the consumer. Nothing is delivered once Stop has begun,
// and a consumer that stalls for the emit timeout loses the event.
func (c *Client) emit(ev Event) {
	if c.stopped.Load() {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	timer := time.NewTimer(c.emitTimeout)
	defer timer.Stop()

	select {
	case c.events <- ev:
	case <-c.stopCh:
	case <-timer.C:
		c.logger.Warn("MQTT Client: Event channel full, dropping event", "event", ev.Kind)
	}
}
