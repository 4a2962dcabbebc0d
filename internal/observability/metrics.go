package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "helpdesk"

// Metrics exposes Prometheus collectors for the HTTP surface, the automation
// rules and the SLA sweeper. All methods are safe on a nil receiver.
type Metrics struct {
	requestCount   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	errorCount     *prometheus.CounterVec

	sweepRuns        *prometheus.CounterVec
	sweepDuration    prometheus.Histogram
	metricsProcessed *prometheus.CounterVec
	slaWarnings      *prometheus.CounterVec
	slaBreaches      *prometheus.CounterVec
	escalations      prometheus.Counter
	assignments      *prometheus.CounterVec
	notifications    *prometheus.CounterVec
}

// NewMetrics registers collectors with reg. A nil reg uses a private registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		requestCount: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		requestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errorCount: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "Domain errors returned to HTTP callers by code.",
		}, []string{"path", "method", "code"}),
		sweepRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sla",
			Name:      "sweeps_total",
			Help:      "SLA sweep runs by outcome.",
		}, []string{"outcome"}),
		sweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sla",
			Name:      "sweep_duration_seconds",
			Help:      "Wall time of one SLA sweep.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		metricsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sla",
			Name:      "metrics_processed_total",
			Help:      "SLA metrics visited by the sweeper by result.",
		}, []string{"result"}),
		slaWarnings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sla",
			Name:      "warnings_total",
			Help:      "Dimensions that entered the warning band.",
		}, []string{"breach_type"}),
		slaBreaches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sla",
			Name:      "breaches_total",
			Help:      "Breach records created.",
		}, []string{"breach_type"}),
		escalations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "automation",
			Name:      "escalations_total",
			Help:      "Escalation proposals applied.",
		}),
		assignments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "automation",
			Name:      "assignments_total",
			Help:      "Round-robin assignments by role.",
		}, []string{"role"}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "deliveries_total",
			Help:      "Outbound notification attempts by result.",
		}, []string{"result"}),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestLatency.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(path, method, code).Inc()
}

// RecordSweep records the outcome ("ok", "partial", "skipped", "failed") and
// duration of one sweep.
func (m *Metrics) RecordSweep(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.sweepRuns.WithLabelValues(outcome).Inc()
	m.sweepDuration.Observe(duration.Seconds())
}

// RecordMetricProcessed counts one metric visited by the sweeper.
func (m *Metrics) RecordMetricProcessed(result string) {
	if m == nil {
		return
	}
	m.metricsProcessed.WithLabelValues(result).Inc()
}

// RecordSLAWarning counts a dimension entering warning.
func (m *Metrics) RecordSLAWarning(breachType string) {
	if m == nil {
		return
	}
	m.slaWarnings.WithLabelValues(breachType).Inc()
}

// RecordSLABreach counts a created breach.
func (m *Metrics) RecordSLABreach(breachType string) {
	if m == nil {
		return
	}
	m.slaBreaches.WithLabelValues(breachType).Inc()
}

// RecordEscalation counts an applied escalation.
func (m *Metrics) RecordEscalation() {
	if m == nil {
		return
	}
	m.escalations.Inc()
}

// RecordAssignment counts a round-robin assignment.
func (m *Metrics) RecordAssignment(role string) {
	if m == nil {
		return
	}
	m.assignments.WithLabelValues(role).Inc()
}

// RecordNotification counts a notification attempt.
func (m *Metrics) RecordNotification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}
