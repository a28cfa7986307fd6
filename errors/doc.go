// Package errors provides standardized error handling patterns for logstitch components.
//
// # Overview
//
// The errors package implements a four-class error classification system for the
// log concatenation pipeline: Transient (temporary, retryable), Invalid (bad
// input, non-retryable), Fatal (unrecoverable, stop processing), and Timeout
// (staleness-triggered forced flushes, expected but surfaced).
//
// Classification enables components to make informed decisions about retries,
// per-event isolation, and failure recovery without error string matching.
//
// # Error Classification
//
//   - Transient: NATS disconnects, temporary unavailability (retry recommended)
//   - Invalid: Malformed batches, bad records, bad configuration (do not retry)
//   - Fatal: Conflicting mode configuration, unrecoverable states (abort startup)
//   - Timeout: A stream buffer flushed because no new lines arrived in time
//
// The system integrates with Go's standard error handling, supporting
// errors.Is(), errors.As(), and wrapping chains.
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Four wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Component", "Method", "action")
//	errors.WrapInvalid(err, "Component", "Method", "action")
//	errors.WrapFatal(err, "Component", "Method", "action")
//	errors.WrapTimeout(err, "Component", "Method", "action")
//
// # Timeout Errors
//
// Staleness flushes are routine and carry the stream identity:
//
//	err := errors.NewFlushTimeout("app:default")
//	if errors.IsFlushTimeout(err) {
//	    // route merged record through the timeout path
//	}
//
// A FlushTimeoutError can be recovered via errors.As to read the identity.
package errors
