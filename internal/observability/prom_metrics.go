package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"garden-monitor/internal/connstate"
	"garden-monitor/internal/models"
)

// PromObs exposes ingestion counters and live sensor gauges.
type PromObs struct {
	received          prometheus.Counter
	accepted          prometheus.Counter
	decodeFailures    prometheus.Counter
	subscribeFailures prometheus.Counter
	discarded         prometheus.Counter
	archived          prometheus.Counter
	archiveFailures   prometheus.Counter

	historySize prometheus.Gauge
	pump        prometheus.Gauge
	connection  *prometheus.GaugeVec
	sensor      *prometheus.GaugeVec
}

// NewPromObs registers all collectors on reg.
func NewPromObs(reg prometheus.Registerer) (*PromObs, error) {
	p := &PromObs{
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "garden_messages_received_total",
			Help: "Raw telemetry messages delivered by the broker.",
		}),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "garden_snapshots_accepted_total",
			Help: "Messages decoded into a valid snapshot and appended to history.",
		}),
		decodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "garden_decode_failures_total",
			Help: "Messages dropped because the payload was malformed.",
		}),
		subscribeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "garden_subscribe_failures_total",
			Help: "Topic subscriptions refused or timed out.",
		}),
		discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "garden_messages_discarded_total",
			Help: "Events ignored because the session was stopping.",
		}),
		archived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "garden_archive_writes_total",
			Help: "Snapshots written to the ClickHouse archive.",
		}),
		archiveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "garden_archive_failures_total",
			Help: "Snapshots that could not be archived.",
		}),
		historySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "garden_history_size",
			Help: "Snapshots currently held in the rolling history.",
		}),
		pump: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "garden_pump_on",
			Help: "1 while the irrigation pump reports on.",
		}),
		connection: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "garden_connection_state",
			Help: "1 for the live broker connection state, 0 otherwise.",
		}, []string{"state"}),
		sensor: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "garden_sensor_value",
			Help: "Latest accepted sensor reading by field.",
		}, []string{"field"}),
	}

	for _, c := range []prometheus.Collector{
		p.received, p.accepted, p.decodeFailures, p.subscribeFailures, p.discarded,
		p.archived, p.archiveFailures, p.historySize, p.pump, p.connection, p.sensor,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	p.ConnectionState(connstate.Disconnected)
	return p, nil
}

func (p *PromObs) MessageReceived()  { p.received.Inc() }
func (p *PromObs) DecodeFailed()     { p.decodeFailures.Inc() }
func (p *PromObs) SubscribeFailed()  { p.subscribeFailures.Inc() }
func (p *PromObs) MessageDiscarded() { p.discarded.Inc() }
func (p *PromObs) ArchiveWritten()   { p.archived.Inc() }
func (p *PromObs) ArchiveFailed()    { p.archiveFailures.Inc() }

// SnapshotAccepted updates the live gauges from snap.
func (p *PromObs) SnapshotAccepted(snap models.SensorSnapshot, historyLen int) {
	p.accepted.Inc()
	p.historySize.Set(float64(historyLen))
	for _, f := range models.NumericFields {
		p.sensor.WithLabelValues(string(f)).Set(snap.Value(f))
	}
	if snap.PumpOn {
		p.pump.Set(1)
	} else {
		p.pump.Set(0)
	}
}

// ConnectionState marks s as the only live state.
func (p *PromObs) ConnectionState(s connstate.State) {
	for _, candidate := range connstate.States {
		v := 0.0
		if candidate == s {
			v = 1
		}
		p.connection.WithLabelValues(candidate.String()).Set(v)
	}
}
