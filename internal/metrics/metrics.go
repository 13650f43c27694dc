// Package metrics exposes the Prometheus counters/gauges/histograms for the
// ingest/normalize/broadcast pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the process-wide Prometheus registry wrapper. One instance is
// constructed at startup and threaded into every component that needs to
// record an observation.
type Metrics struct {
	// Feed ingest
	feedConnectionsActive prometheus.Gauge
	feedConnectionsTotal  prometheus.Counter
	ticksIngested         prometheus.Counter
	ticksDecodeErrors     prometheus.Counter
	acceptErrors          prometheus.Counter

	// Normalizer
	ticksEmitted   prometheus.Counter
	ticksDeduped   prometheus.Counter
	ticksRejected  prometheus.Counter
	drainPassDur   prometheus.Histogram

	// Broadcaster
	subscribersActive    prometheus.Gauge
	subscribersTotal     prometheus.Counter
	subscribersDropped   *prometheus.CounterVec
	deltasSent           prometheus.Counter
	deltasDroppedByRate  prometheus.Counter
	fanoutDur            prometheus.Histogram

	// Persistence / NATS sinks
	persistedRows    prometheus.Counter
	persistenceErrors prometheus.Counter
	natsPublished    prometheus.Counter
	natsConnected    prometheus.Gauge

	// System
	goroutines prometheus.Gauge
	memoryRSS  prometheus.Gauge
	cpuPercent prometheus.Gauge

	startTime time.Time
}

// New constructs and registers every metric with the default registry.
func New() *Metrics {
	return &Metrics{
		startTime: time.Now(),

		feedConnectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tickflow_feed_connections_active",
			Help: "Number of currently connected feed (ingest) connections.",
		}),
		feedConnectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tickflow_feed_connections_total",
			Help: "Total feed connections accepted.",
		}),
		ticksIngested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tickflow_ticks_ingested_total",
			Help: "Total raw ticks decoded from feed connections.",
		}),
		ticksDecodeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tickflow_ticks_decode_errors_total",
			Help: "Total frames that failed to decode as a tick.",
		}),
		acceptErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tickflow_accept_errors_total",
			Help: "Total ingest listener Accept() errors.",
		}),

		ticksEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tickflow_ticks_emitted_total",
			Help: "Total ticks emitted by the normalizer to its sinks.",
		}),
		ticksDeduped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tickflow_ticks_deduped_total",
			Help: "Total ticks dropped as duplicates within a drain pass.",
		}),
		ticksRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tickflow_ticks_rejected_total",
			Help: "Total ticks dropped for implausible price.",
		}),
		drainPassDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tickflow_drain_pass_duration_seconds",
			Help:    "Duration of one normalizer drain pass.",
			Buckets: prometheus.DefBuckets,
		}),

		subscribersActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tickflow_subscribers_active",
			Help: "Number of currently connected subscribers.",
		}),
		subscribersTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tickflow_subscribers_total",
			Help: "Total subscriber connections accepted.",
		}),
		subscribersDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tickflow_subscribers_dropped_total",
			Help: "Total subscribers removed, labeled by reason.",
		}, []string{"reason"}),
		deltasSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tickflow_deltas_sent_total",
			Help: "Total delta lines successfully written to subscribers.",
		}),
		deltasDroppedByRate: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tickflow_deltas_dropped_rate_limited_total",
			Help: "Total deltas dropped because a subscriber's token bucket was empty.",
		}),
		fanoutDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tickflow_fanout_duration_seconds",
			Help:    "Duration of one broadcaster fan-out pass across all subscribers.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),

		persistedRows: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tickflow_persisted_rows_total",
			Help: "Total rows appended to the CSV persistence log.",
		}),
		persistenceErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tickflow_persistence_errors_total",
			Help: "Total errors writing to the CSV persistence log.",
		}),
		natsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tickflow_nats_published_total",
			Help: "Total ticks published to the NATS fan-out sink.",
		}),
		natsConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tickflow_nats_connected",
			Help: "Whether the NATS fan-out sink is currently connected (1) or not (0).",
		}),

		goroutines: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tickflow_goroutines",
			Help: "Current goroutine count.",
		}),
		memoryRSS: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tickflow_memory_rss_bytes",
			Help: "Resident memory of the process, in bytes.",
		}),
		cpuPercent: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tickflow_cpu_percent",
			Help: "System-wide CPU usage percentage.",
		}),
	}
}

func (m *Metrics) FeedConnected()      { m.feedConnectionsActive.Inc(); m.feedConnectionsTotal.Inc() }
func (m *Metrics) FeedDisconnected()   { m.feedConnectionsActive.Dec() }
func (m *Metrics) TickIngested()       { m.ticksIngested.Inc() }
func (m *Metrics) TickDecodeError()    { m.ticksDecodeErrors.Inc() }
func (m *Metrics) AcceptError()        { m.acceptErrors.Inc() }

func (m *Metrics) TickEmitted()                    { m.ticksEmitted.Inc() }
func (m *Metrics) TickDeduped()                    { m.ticksDeduped.Inc() }
func (m *Metrics) TickRejected()                   { m.ticksRejected.Inc() }
func (m *Metrics) ObserveDrainPass(d time.Duration) { m.drainPassDur.Observe(d.Seconds()) }

func (m *Metrics) SubscriberConnected()    { m.subscribersActive.Inc(); m.subscribersTotal.Inc() }
func (m *Metrics) SubscriberDropped(reason string) {
	m.subscribersActive.Dec()
	m.subscribersDropped.WithLabelValues(reason).Inc()
}
func (m *Metrics) DeltaSent()            { m.deltasSent.Inc() }
func (m *Metrics) DeltaDroppedByRate()   { m.deltasDroppedByRate.Inc() }
func (m *Metrics) ObserveFanout(d time.Duration) { m.fanoutDur.Observe(d.Seconds()) }

func (m *Metrics) PersistedRow()      { m.persistedRows.Inc() }
func (m *Metrics) PersistenceError()  { m.persistenceErrors.Inc() }
func (m *Metrics) NATSPublished()     { m.natsPublished.Inc() }
func (m *Metrics) SetNATSConnected(connected bool) {
	if connected {
		m.natsConnected.Set(1)
	} else {
		m.natsConnected.Set(0)
	}
}

func (m *Metrics) SetGoroutines(n int)         { m.goroutines.Set(float64(n)) }
func (m *Metrics) SetMemoryRSS(bytes uint64)   { m.memoryRSS.Set(float64(bytes)) }
func (m *Metrics) SetCPUPercent(percent float64) { m.cpuPercent.Set(percent) }

// Uptime returns the time since this Metrics instance was constructed.
func (m *Metrics) Uptime() time.Duration { return time.Since(m.startTime) }
