// Package gateway serves the dashboard projection over HTTP and WebSocket and
// exposes Prometheus metrics.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"garden-monitor/internal/connstate"
	"garden-monitor/internal/services"
	"garden-monitor/internal/staleness"
)

// DashboardSource is the read side of a monitoring session.
type DashboardSource interface {
	Dashboard() services.Dashboard
	Subscribe() (<-chan struct{}, func())
	State() connstate.State
	LastUpdate() (time.Time, bool)
}

// Config holds configuration for the gateway server.
type Config struct {
	Addr         string
	TickInterval time.Duration // relative-label refresh for WebSocket clients
	WriteTimeout time.Duration
	Gatherer     prometheus.Gatherer // nil disables /metrics
	Logger       *slog.Logger
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		TickInterval: staleness.DefaultInterval,
		WriteTimeout: 10 * time.Second,
	}
}

type Server struct {
	source   DashboardSource
	config   Config
	logger   *slog.Logger
	upgrader websocket.Upgrader

	server   *http.Server
	shutdown chan struct{}
	once     sync.Once

	// clientsMu orders client registration against shutdown so that no
	// wg.Add happens after closing is set.
	clientsMu sync.Mutex
	closing   bool
	wg        sync.WaitGroup
}

// NewServer creates a gateway over source.
func NewServer(source DashboardSource, config Config) *Server {
	defaults := DefaultConfig()
	if config.Addr == "" {
		config.Addr = defaults.Addr
	}
	if config.TickInterval <= 0 {
		config.TickInterval = defaults.TickInterval
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		source: source,
		config: config,
		logger: logger.With("component", "gateway"),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		shutdown: make(chan struct{}),
	}
	s.server = &http.Server{
		Addr:              config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the gateway routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.config.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	}
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Gateway: Listening", "addr", s.config.Addr)
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.closeClients()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve on %s: %w", s.config.Addr, err)
	case <-ctx.Done():
	}

	s.logger.Info("Gateway: Shutting down...")
	s.closeClients()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down gateway: %w", err)
	}
	s.wg.Wait()
	return nil
}

func (s *Server) closeClients() {
	s.once.Do(func() {
		s.clientsMu.Lock()
		s.closing = true
		s.clientsMu.Unlock()
		close(s.shutdown)
	})
}

// register admits a WebSocket client unless shutdown has begun.
func (s *Server) register() bool {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if s.closing {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.source.Dashboard())
}

type healthResponse struct {
	Status     string          `json:"status"`
	Connection connstate.State `json:"connection"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Connection: s.source.State()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleWebSocket pushes the dashboard on connect, after every session
// change and on every staleness tick.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.register() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.wg.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Gateway: WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, unsubscribe := s.source.Subscribe()
	defer unsubscribe()

	ticks := make(chan struct{}, 1)
	go staleness.NewClock(s.source, s.config.TickInterval).Run(ctx, func(string) {
		select {
		case ticks <- struct{}{}:
		default:
		}
	})

	// Clients only listen; reading detects the close handshake.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.logger.Debug("Gateway: WebSocket client connected", "remote", r.RemoteAddr)

	for {
		if err := s.push(conn); err != nil {
			s.logger.Debug("Gateway: WebSocket write failed", "remote", r.RemoteAddr, "error", err)
			return
		}

		select {
		case <-changes:
		case <-ticks:
		case <-closed:
			return
		case <-s.shutdown:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			return
		}
	}
}

func (s *Server) push(conn *websocket.Conn) error {
	data, err := json.Marshal(s.source.Dashboard())
	if err != nil {
		return fmt.Errorf("failed to encode dashboard: %w", err)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}
