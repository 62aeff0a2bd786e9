package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "clinic"

// AvailabilityMetrics tracks slot resolution.
type AvailabilityMetrics struct {
	queriesTotal  *prometheus.CounterVec
	slotsReturned *prometheus.HistogramVec
	readRetries   prometheus.Counter
	latency       *prometheus.HistogramVec
}

func NewAvailabilityMetrics(reg prometheus.Registerer) *AvailabilityMetrics {
	m := &AvailabilityMetrics{
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "availability",
			Name:      "queries_total",
			Help:      "Slot queries by view and outcome",
		}, []string{"view", "result"}),
		slotsReturned: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "availability",
			Name:      "slots_returned",
			Help:      "Number of slots returned per query",
			Buckets:   []float64{0, 1, 4, 8, 16, 32, 64},
		}, []string{"view"}),
		readRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "availability",
			Name:      "read_retries_total",
			Help:      "Repository reads retried after a transient failure",
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "availability",
			Name:      "resolve_seconds",
			Help:      "Latency of slot resolution including repository reads",
			Buckets:   prometheus.DefBuckets,
		}, []string{"view"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.queriesTotal, m.slotsReturned, m.readRetries, m.latency)
	return m
}

func (m *AvailabilityMetrics) ObserveQuery(view, result string, slots int, seconds float64) {
	if m == nil {
		return
	}
	m.queriesTotal.WithLabelValues(view, result).Inc()
	m.latency.WithLabelValues(view).Observe(seconds)
	if result == "ok" {
		m.slotsReturned.WithLabelValues(view).Observe(float64(slots))
	}
}

func (m *AvailabilityMetrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.readRetries.Inc()
}

// BookingMetrics tracks reservations and their lifecycle.
type BookingMetrics struct {
	attemptsTotal    *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bookings",
			Name:      "attempts_total",
			Help:      "Booking attempts by source and outcome",
		}, []string{"source", "result"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bookings",
			Name:      "status_transitions_total",
			Help:      "Booking status transitions",
		}, []string{"from", "to"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.attemptsTotal, m.transitionsTotal)
	return m
}

func (m *BookingMetrics) ObserveAttempt(source, result string) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(source, result).Inc()
}

func (m *BookingMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to).Inc()
}

// PaymentMetrics tracks gateway webhooks.
type PaymentMetrics struct {
	webhookTotal   *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	m := &PaymentMetrics{
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "webhook_total",
			Help:      "Payment gateway webhooks by event type and status",
		}, []string{"event_type", "status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of payment webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.webhookTotal, m.webhookLatency)
	return m
}

func (m *PaymentMetrics) ObserveWebhook(eventType, status string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(eventType, status).Inc()
	m.webhookLatency.WithLabelValues(eventType).Observe(seconds)
}
