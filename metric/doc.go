// Package metric provides Prometheus metrics management for logstitch.
//
// MetricsRegistry wraps a dedicated prometheus.Registry with core platform
// metrics (message counts, processing duration, errors, NATS connection
// state) plus Go runtime collectors, and offers component-scoped registration
// with duplicate detection. Server exposes the registry over HTTP together
// with a /health endpoint.
//
// Components register their own metrics under their component name:
//
//	counter := prometheus.NewCounterVec(...)
//	if err := registry.RegisterCounterVec("concat", "events_total", counter); err != nil {
//	    return err
//	}
package metric
