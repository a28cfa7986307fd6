// Package logstitch rejoins multiline log records that arrive split across
// separate delivery events: stack traces, SQL statements, and wrapped lines
// become single logical records again before they reach downstream storage
// or analysis.
//
// # Architecture
//
// Logstitch is a single-purpose NATS service built from small packages:
//
//	┌─────────────────────────────────────┐
//	│        cmd/logstitch                │  Entry point, config,
//	│  (flags, wiring, signal handling)   │  graceful shutdown
//	└─────────────────────────────────────┘
//	           ↓ constructs
//	┌─────────────────────────────────────┐
//	│       processor/concat              │  NATS component: batches
//	│  (ports, routing, lifecycle)        │  in, merged records out
//	└─────────────────────────────────────┘
//	           ↓ drives
//	┌─────────────────────────────────────┐
//	│           stitch                    │  Aggregation core: engine,
//	│  (engine, store, sweeper, merger)   │  buffers, timeout sweeps
//	└─────────────────────────────────────┘
//
// Supporting packages:
//
//   - message: wire envelopes (logs.batch.v1 in, logs.record.v1 and
//     logs.error.v1 out)
//   - natsclient: managed NATS connection with reconnect handling
//   - metric: Prometheus registry and the /metrics HTTP server
//   - health: component health aggregation served on /health
//   - component: discovery, ports, and lifecycle contracts
//   - errors: classified errors (transient, invalid, fatal, timeout)
//   - config: service configuration with file and environment layers
//
// # Data Flow
//
// Producers publish ordered batches of tagged log events. The concat
// processor partitions events into streams (by tag and an optional record
// field), buffers lines per stream, and emits one merged record per logical
// group. Group boundaries come from a fixed line count or from start/end
// regular expressions; streams that stall are flushed by a background
// sweeper after a configurable idle interval.
package logstitch
