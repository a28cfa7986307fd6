// Package concat provides a processor that rejoins multiline log records
// (stack traces, SQL dumps, wrapped lines) that were split into separate
// delivery events before reaching the pipeline.
//
// # Overview
//
// The concat processor subscribes to NATS subjects carrying ordered batches
// of log events (logs.batch.v1 interface). Events are partitioned into
// streams by tag and, optionally, by a record field such as container_id.
// Lines belonging to one logical record are buffered per stream and joined
// into a single merged record, which is published to the output subject
// (logs.record.v1 interface).
//
// # Matching Modes
//
// Exactly one of two modes must be configured:
//
//   - n_lines: flush a stream every time its buffer reaches a fixed number
//     of lines. Useful when a logical record always spans the same number of
//     delivery events.
//   - multiline_start_regexp (optionally with multiline_end_regexp): detect
//     group boundaries by pattern. A start match closes the previous group
//     and opens a new one; an end match closes the current group. Lines that
//     match neither pattern continue the open group, or pass through
//     unchanged when no group is open.
//
// # Timeout Flushes
//
// A stream that goes idle holding buffered lines is forcibly flushed once
// flush_interval elapses without new activity. With timeout_label set, the
// merged record is published to the timeout_output port as a normal event
// under that tag; otherwise it is wrapped in a timeout error envelope
// (logs.error.v1) and sent to error_output. On shutdown every remaining
// buffer drains through the same path, so accumulated lines are never lost.
//
// # Quick Start
//
// Join Java stack traces arriving one line per event:
//
//	config := concat.Config{
//	    Ports: &component.PortConfig{
//	        Inputs: []component.PortDefinition{
//	            {Name: "nats_input", Type: "nats", Subject: "logs.raw.app", Interface: "logs.batch.v1"},
//	        },
//	        Outputs: []component.PortDefinition{
//	            {Name: "nats_output", Type: "nats", Subject: "logs.merged", Interface: "logs.record.v1"},
//	            {Name: "error_output", Type: "nats", Subject: "logs.error", Interface: "logs.error.v1"},
//	        },
//	    },
//	    Concat: stitch.Config{
//	        Key:                  "message",
//	        MultilineStartRegexp: `^\d{4}-\d{2}-\d{2}`,
//	        FlushIntervalSeconds: 30,
//	    },
//	}
//
//	rawConfig, _ := json.Marshal(config)
//	processor, err := concat.NewProcessor(rawConfig, deps)
//
// # Ordering
//
// Correct grouping depends on events arriving in log order within each
// stream. The processor handles one batch at a time and feeds events to the
// engine in batch order; producers are responsible for not interleaving one
// stream's events across concurrently published batches.
//
// # Error Handling
//
// A malformed batch envelope is counted and dropped. A bad event inside a
// valid batch (nil record) is reported on error_output and the rest of the
// batch proceeds; buffered state for other streams is unaffected.
package concat
