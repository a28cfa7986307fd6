// Package message defines the wire envelopes exchanged over NATS subjects:
// ordered batches of log events on the input side, merged records and error
// events on the output side.
package message

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/c360/logstitch/errors"
)

// Well-known interface contract identifiers for port declarations.
const (
	InterfaceBatch  = "logs.batch.v1"
	InterfaceRecord = "logs.record.v1"
	InterfaceError  = "logs.error.v1"
)

// LogEvent is one delivered log event: a tagged, timestamped record.
type LogEvent struct {
	Tag       string         `json:"tag"`
	Timestamp time.Time      `json:"ts"`
	Record    map[string]any `json:"record"`
}

// Batch is an ordered set of events delivered together. Events within a
// batch are in arrival order; consumers must preserve that order per stream.
type Batch struct {
	ID     string     `json:"id"`
	Events []LogEvent `json:"events"`
}

// NewBatch creates a batch with a fresh identifier.
func NewBatch(events []LogEvent) Batch {
	return Batch{
		ID:     uuid.NewString(),
		Events: events,
	}
}

// ParseBatch decodes and validates a batch envelope.
func ParseBatch(data []byte) (Batch, error) {
	var batch Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return Batch{}, errors.WrapInvalid(err, "Batch", "ParseBatch", "decode batch envelope")
	}
	if err := batch.Validate(); err != nil {
		return Batch{}, err
	}
	return batch, nil
}

// Validate performs basic envelope validation. Individual bad records are a
// per-event concern and do not fail the batch.
func (b *Batch) Validate() error {
	if len(b.Events) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidData, "Batch", "Validate", "batch has no events")
	}
	return nil
}

// Marshal encodes the batch envelope.
func (b Batch) Marshal() ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Batch", "Marshal", "encode batch envelope")
	}
	return data, nil
}

// Error kinds carried by ErrorEvent.
const (
	ErrorKindTimeout = "timeout"
	ErrorKindEvent   = "event"
)

// ErrorEvent wraps a record delivered via the error path: either a merged
// record forced out by a flush timeout, or an event that failed processing.
type ErrorEvent struct {
	Kind      string         `json:"kind"`
	Message   string         `json:"message"`
	Identity  string         `json:"identity,omitempty"`
	Tag       string         `json:"tag,omitempty"`
	Timestamp *time.Time     `json:"ts,omitempty"`
	Record    map[string]any `json:"record"`
}

// NewTimeoutError builds the error envelope for a staleness-flushed stream.
func NewTimeoutError(identity string, record map[string]any) ErrorEvent {
	return ErrorEvent{
		Kind:     ErrorKindTimeout,
		Message:  (&errors.FlushTimeoutError{Identity: identity}).Error(),
		Identity: identity,
		Record:   record,
	}
}

// NewEventError builds the error envelope for a single failed event,
// preserving the offending (tag, timestamp, record).
func NewEventError(event LogEvent, err error) ErrorEvent {
	ts := event.Timestamp
	return ErrorEvent{
		Kind:      ErrorKindEvent,
		Message:   err.Error(),
		Tag:       event.Tag,
		Timestamp: &ts,
		Record:    event.Record,
	}
}

// Marshal encodes the error envelope.
func (e ErrorEvent) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, errors.WrapInvalid(err, "ErrorEvent", "Marshal", "encode error envelope")
	}
	return data, nil
}
