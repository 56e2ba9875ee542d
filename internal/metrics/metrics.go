// Package metrics implements the bounded in-memory counters and latency
// reservoir described in spec.md §4.10, plus their Prometheus mirror and
// a connection-rate observer built on github.com/joeycumines/go-catrate
// (see SPEC_FULL.md's DOMAIN STACK).
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/prometheus/client_golang/prometheus"
)

const maxLatencySamples = 1024

// Stats is the result of LatencyStats: min/max/avg over the retained
// sample window. All zero when no samples have been recorded.
type Stats struct {
	Min time.Duration
	Max time.Duration
	Avg time.Duration
}

// Metrics is the orchestrator's bounded in-memory observability surface:
// pure event counters and a bounded (<=1024) latency reservoir. Latency
// samples recorded beyond the reservoir cap are silently dropped, matching
// spec.md §4.10's documented behavior.
type Metrics struct {
	events        atomic.Uint64
	commits       atomic.Uint64
	aborts        atomic.Uint64
	faults        atomic.Uint64
	serviceStarts atomic.Uint64
	serviceStops  atomic.Uint64

	mu      sync.Mutex
	samples []time.Duration

	promEvents   prometheus.Counter
	promFaults   prometheus.Counter
	promLatency  prometheus.Histogram
}

// New constructs an empty Metrics and registers its Prometheus mirror
// counters/histogram against reg. reg may be nil, in which case the
// Prometheus mirror is skipped (useful in tests).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		samples: make([]time.Duration, 0, maxLatencySamples),
		promEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "l1ne_simulator_events_total",
			Help: "Total simulator events processed.",
		}),
		promFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "l1ne_faults_injected_total",
			Help: "Total faults injected by the fault injector.",
		}),
		promLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "l1ne_event_latency_seconds",
			Help:    "Observed per-event latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.promEvents, m.promFaults, m.promLatency)
	}
	return m
}

// RecordEvent increments the events counter.
func (m *Metrics) RecordEvent() {
	m.events.Add(1)
	m.promEvents.Inc()
}

// RecordCommit increments the transaction-commit counter.
func (m *Metrics) RecordCommit() { m.commits.Add(1) }

// RecordAbort increments the transaction-abort counter.
func (m *Metrics) RecordAbort() { m.aborts.Add(1) }

// RecordFault increments the faults-injected counter.
func (m *Metrics) RecordFault() {
	m.faults.Add(1)
	m.promFaults.Inc()
}

// RecordServiceStart increments the service-starts counter.
func (m *Metrics) RecordServiceStart() { m.serviceStarts.Add(1) }

// RecordServiceStop increments the service-stops counter.
func (m *Metrics) RecordServiceStop() { m.serviceStops.Add(1) }

// RecordLatency adds d to the bounded reservoir. Once maxLatencySamples
// have been recorded, additional samples are silently dropped.
func (m *Metrics) RecordLatency(d time.Duration) {
	m.mu.Lock()
	if len(m.samples) < maxLatencySamples {
		m.samples = append(m.samples, d)
	}
	m.mu.Unlock()
	m.promLatency.Observe(d.Seconds())
}

// LatencyStats returns {min, max, avg} over the retained samples, or the
// zero Stats if none have been recorded.
func (m *Metrics) LatencyStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.samples) == 0 {
		return Stats{}
	}
	min, max := m.samples[0], m.samples[0]
	var total time.Duration
	for _, s := range m.samples {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
		total += s
	}
	return Stats{Min: min, Max: max, Avg: total / time.Duration(len(m.samples))}
}

// Counters returns every pure counter's current value, in the order
// {events, commits, aborts, faults, service starts, service stops}.
func (m *Metrics) Counters() (events, commits, aborts, faults, serviceStarts, serviceStops uint64) {
	return m.events.Load(), m.commits.Load(), m.aborts.Load(), m.faults.Load(), m.serviceStarts.Load(), m.serviceStops.Load()
}

// ConnectionRateTracker observes inbound-connection rates per service
// using a sliding-window limiter, without ever gating admission itself —
// that remains the proxy's SlotPool-based backpressure-by-refusal alone
// (see SPEC_FULL.md). It exists purely so operators can see connection
// rate trends in the Prometheus mirror.
type ConnectionRateTracker struct {
	limiter  *catrate.Limiter
	exceeded prometheus.Counter
}

// NewConnectionRateTracker builds a tracker with the given sliding
// windows (e.g. {time.Second: 50, time.Minute: 1000}).
func NewConnectionRateTracker(rates map[time.Duration]int, reg prometheus.Registerer) *ConnectionRateTracker {
	t := &ConnectionRateTracker{
		limiter: catrate.NewLimiter(rates),
		exceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "l1ne_connection_rate_observed_exceeded_total",
			Help: "Count of connections observed over the configured rate window (observation only, never gates admission).",
		}),
	}
	if reg != nil {
		reg.MustRegister(t.exceeded)
	}
	return t
}

// Observe records one inbound connection for serviceID and reports
// whether it fell within the configured rate window. The result is
// informational only.
func (t *ConnectionRateTracker) Observe(serviceID uint32) (withinRate bool) {
	_, ok := t.limiter.Allow(serviceID)
	if !ok {
		t.exceeded.Inc()
	}
	return ok
}
