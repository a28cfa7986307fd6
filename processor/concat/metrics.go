package concat

import (
	"time"

	"github.com/c360/logstitch/metric"
	"github.com/prometheus/client_golang/prometheus"
)

// concatMetrics holds Prometheus metrics for concat processor operations.
type concatMetrics struct {
	// Event counters
	eventsTotal  *prometheus.CounterVec // By component and status (merged/buffered/error)
	flushesTotal *prometheus.CounterVec // By component and reason (natural/timeout)
	errors       *prometheus.CounterVec // By component and error_type

	// Performance metrics
	processDuration *prometheus.HistogramVec // By component

	// Buffer state
	bufferedStreams prometheus.Gauge // Streams currently holding buffered lines
}

// newConcatMetrics creates and registers concat metrics with the provided registry.
func newConcatMetrics(registry *metric.MetricsRegistry, componentName string) (*concatMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &concatMetrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logstitch",
			Subsystem: "concat",
			Name:      "events_total",
			Help:      "Total number of log events fed through the concat engine",
		}, []string{"component", "status"}), // status: merged, buffered, error

		flushesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logstitch",
			Subsystem: "concat",
			Name:      "flushes_total",
			Help:      "Total number of merged records flushed, by reason",
		}, []string{"component", "reason"}), // reason: natural, timeout

		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logstitch",
			Subsystem: "concat",
			Name:      "errors_total",
			Help:      "Total number of concat processing errors",
		}, []string{"component", "error_type"}), // error_type: parse, event, marshal, publish

		processDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "logstitch",
			Subsystem: "concat",
			Name:      "process_duration_seconds",
			Help:      "Per-event engine processing duration in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"component"}),

		bufferedStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "logstitch",
			Subsystem: "concat",
			Name:      "buffered_streams",
			Help:      "Number of streams currently tracked by the buffer store",
		}),
	}

	// Register all metrics
	if err := registry.RegisterCounterVec("concat", "events_total", m.eventsTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("concat", "flushes_total", m.flushesTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("concat", "errors", m.errors); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec("concat", "process_duration", m.processDuration); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("concat", "buffered_streams", m.bufferedStreams); err != nil {
		return nil, err
	}

	return m, nil
}

// recordEvent records one event fed through the engine.
func (m *concatMetrics) recordEvent(componentName string, flushed bool, duration time.Duration) {
	if m == nil {
		return
	}

	status := "buffered"
	if flushed {
		status = "merged"
	}

	m.eventsTotal.WithLabelValues(componentName, status).Inc()
	m.processDuration.WithLabelValues(componentName).Observe(duration.Seconds())
}

// recordFlush records a merged record going out, by reason.
func (m *concatMetrics) recordFlush(componentName, reason string) {
	if m == nil {
		return
	}

	m.flushesTotal.WithLabelValues(componentName, reason).Inc()
}

// recordError records a concat processing error.
func (m *concatMetrics) recordError(componentName, errorType string) {
	if m == nil {
		return
	}

	m.errors.WithLabelValues(componentName, errorType).Inc()
	m.eventsTotal.WithLabelValues(componentName, "error").Inc()
}

// setBufferedStreams updates the tracked stream gauge.
func (m *concatMetrics) setBufferedStreams(n int) {
	if m == nil {
		return
	}

	m.bufferedStreams.Set(float64(n))
}
