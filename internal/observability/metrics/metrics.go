package metrics

import "github.com/prometheus/client_golang/prometheus"

// DialogueMetrics exposes counters/histograms for dialogue turns.
type DialogueMetrics struct {
	turnsTotal        *prometheus.CounterVec
	transitionsTotal  *prometheus.CounterVec
	failuresTotal     *prometheus.CounterVec
	bookingsTotal     *prometheus.CounterVec
	turnLatency       prometheus.Histogram
	loopGuardTriggers prometheus.Counter
}

func NewDialogueMetrics(reg prometheus.Registerer) *DialogueMetrics {
	m := &DialogueMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "dialogue",
			Name:      "turns_total",
			Help:      "Total dialogue turns by final state and context",
		}, []string{"state", "context"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "dialogue",
			Name:      "transitions_total",
			Help:      "Total state transitions taken",
		}, []string{"from", "trigger"}),
		failuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "dialogue",
			Name:      "collaborator_failures_total",
			Help:      "Failures of the language service, directory or checkpoint store",
		}, []string{"collaborator", "call"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "dialogue",
			Name:      "bookings_total",
			Help:      "Booking submissions by outcome",
		}, []string{"outcome"}),
		turnLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scheduling",
			Subsystem: "dialogue",
			Name:      "turn_latency_seconds",
			Help:      "Latency of a full dialogue turn",
			Buckets:   prometheus.DefBuckets,
		}),
		loopGuardTriggers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "dialogue",
			Name:      "loop_guard_total",
			Help:      "Turns cut short by the transition limit",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.transitionsTotal, m.failuresTotal, m.bookingsTotal, m.turnLatency, m.loopGuardTriggers)
	return m
}

func (m *DialogueMetrics) ObserveTurn(state, context string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(state, context).Inc()
	m.turnLatency.Observe(seconds)
}

func (m *DialogueMetrics) ObserveTransition(from, trigger string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, trigger).Inc()
}

func (m *DialogueMetrics) ObserveFailure(collaborator, call string) {
	if m == nil {
		return
	}
	m.failuresTotal.WithLabelValues(collaborator, call).Inc()
}

func (m *DialogueMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *DialogueMetrics) ObserveLoopGuard() {
	if m == nil {
		return
	}
	m.loopGuardTriggers.Inc()
}
