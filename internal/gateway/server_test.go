package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garden-monitor/internal/connstate"
	"garden-monitor/internal/models"
	"garden-monitor/internal/services"
)

type fakeSource struct {
	mu        sync.Mutex
	dashboard services.Dashboard
	mark      time.Time
	hasMark   bool
	changes   chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{changes: make(chan struct{}, 1)}
}

func (f *fakeSource) Dashboard() services.Dashboard {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dashboard
}

func (f *fakeSource) Subscribe() (<-chan struct{}, func()) { return f.changes, func() {} }

func (f *fakeSource) State() connstate.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dashboard.ConnectionState
}

func (f *fakeSource) LastUpdate() (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mark, f.hasMark
}

func (f *fakeSource) set(d services.Dashboard) {
	f.mu.Lock()
	f.dashboard = d
	f.mu.Unlock()
	select {
	case f.changes <- struct{}{}:
	default:
	}
}

func newTestServer(t *testing.T, source DashboardSource, config Config) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(NewServer(source, config).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestDashboardEndpoint(t *testing.T) {
	src := newFakeSource()
	src.set(services.Dashboard{
		Snapshot:        models.SensorSnapshot{Temperature: 24.5, PH: 6.8, PumpOn: true},
		ConnectionState: connstate.Connected,
		ConnectionLabel: "Connected",
		HistorySize:     3,
	})
	ts := newTestServer(t, src, DefaultConfig())

	resp, err := http.Get(ts.URL + "/api/dashboard")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "connected", body["connection_state"])
	assert.Equal(t, float64(3), body["history_size"])
	snapshot := body["snapshot"].(map[string]any)
	assert.Equal(t, 24.5, snapshot["temperature"])
	assert.Equal(t, true, snapshot["pump_on"])
}

func TestDashboardEndpoint_RejectsPost(t *testing.T) {
	ts := newTestServer(t, newFakeSource(), DefaultConfig())

	resp, err := http.Post(ts.URL+"/api/dashboard", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	src := newFakeSource()
	src.set(services.Dashboard{ConnectionState: connstate.Reconnecting})
	ts := newTestServer(t, src, DefaultConfig())

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"connection":"reconnecting"`)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "garden_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Add(2)

	config := DefaultConfig()
	config.Gatherer = reg
	ts := newTestServer(t, newFakeSource(), config)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "garden_test_total 2")
}

func TestMetricsEndpoint_DisabledWithoutGatherer(t *testing.T) {
	ts := newTestServer(t, newFakeSource(), DefaultConfig())

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readDashboard(t *testing.T, conn *websocket.Conn) services.Dashboard {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var d struct {
		Snapshot        models.SensorSnapshot `json:"snapshot"`
		ConnectionLabel string                `json:"connection_label"`
		RelativeUpdate  string                `json:"relative_update"`
	}
	require.NoError(t, json.Unmarshal(data, &d))
	return services.Dashboard{Snapshot: d.Snapshot, ConnectionLabel: d.ConnectionLabel, RelativeUpdate: d.RelativeUpdate}
}

func TestWebSocket_PushesOnConnectAndChange(t *testing.T) {
	src := newFakeSource()
	src.dashboard = services.Dashboard{ConnectionLabel: "Connecting"}
	ts := newTestServer(t, src, Config{TickInterval: time.Hour})

	conn := dialWS(t, ts)
	assert.Equal(t, "Connecting", readDashboard(t, conn).ConnectionLabel)

	src.set(services.Dashboard{
		ConnectionLabel: "Connected",
		Snapshot:        models.SensorSnapshot{Temperature: 21},
	})
	d := readDashboard(t, conn)
	assert.Equal(t, "Connected", d.ConnectionLabel)
	assert.Equal(t, 21.0, d.Snapshot.Temperature)
}

func TestWebSocket_PushesOnStalenessTick(t *testing.T) {
	src := newFakeSource()
	src.dashboard = services.Dashboard{RelativeUpdate: "0s ago"}
	src.mark, src.hasMark = time.Now(), true
	ts := newTestServer(t, src, Config{TickInterval: 20 * time.Millisecond})

	conn := dialWS(t, ts)
	readDashboard(t, conn)

	src.mu.Lock()
	src.dashboard.RelativeUpdate = "1s ago"
	src.mu.Unlock()

	// Ticks already in flight may still carry the old label.
	for i := 0; i < 10; i++ {
		if readDashboard(t, conn).RelativeUpdate == "1s ago" {
			return
		}
	}
	t.Fatal("tick never pushed the refreshed label")
}

func TestWebSocket_RefusedAfterShutdown(t *testing.T) {
	srv := NewServer(newFakeSource(), DefaultConfig())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	srv.closeClients()
	srv.wg.Wait()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestWebSocket_ShutdownClosesClients(t *testing.T) {
	srv := NewServer(newFakeSource(), Config{TickInterval: time.Hour})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	conn := dialWS(t, ts)
	readDashboard(t, conn)

	srv.closeClients()

	done := make(chan struct{})
	go func() {
		srv.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WebSocket handler did not exit on shutdown")
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
