package stitch

import (
	"regexp"
	"time"

	"github.com/c360/logstitch/errors"
)

// Engine is the per-event decision logic. It consumes one (tag, timestamp,
// record) at a time, in arrival order per stream identity, and decides
// whether the event continues an in-progress group, completes one, or starts
// a new one.
//
// Events for the same identity must be processed strictly in order; events
// for different identities may be processed in any order. The engine mutates
// its BufferStore only through the store's atomic operations, so it can share
// the store with a Sweeper.
type Engine struct {
	cfg   Config
	start *regexp.Regexp
	end   *regexp.Regexp
	store *BufferStore
	now   func() time.Time
}

// EngineOption configures optional Engine behavior.
type EngineOption func(*Engine)

// WithClock overrides the engine's time source. Used by tests and by owners
// that need a shared clock with the sweeper.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine validates the configuration, compiles boundary patterns, and
// returns an engine with an empty buffer store.
func NewEngine(cfg Config, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:   cfg,
		store: NewBufferStore(NewMerger(cfg.Key, cfg.SeparatorOrDefault())),
		now:   time.Now,
	}

	if cfg.Mode() == ModeRegexp {
		// Validate already compiled these once; failure here is impossible
		// for the same pattern strings.
		e.start = regexp.MustCompile(cfg.MultilineStartRegexp)
		if cfg.MultilineEndRegexp != "" {
			e.end = regexp.MustCompile(cfg.MultilineEndRegexp)
		}
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Config returns the engine's validated configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Store exposes the shared buffer store so a Sweeper and shutdown drain can
// operate on the same state.
func (e *Engine) Store() *BufferStore {
	return e.store
}

// Process handles one event and returns the record to emit downstream, if
// any. The returned bool reports whether a record was produced: a completed
// merge or an unbuffered pass-through. A held event produces nothing.
//
// Failures are scoped to the offending event; the caller reports them
// alongside the (tag, timestamp, record) triple and proceeds with the rest of
// the batch.
func (e *Engine) Process(tag string, ts time.Time, record Record) (Record, bool, error) {
	if record == nil {
		return nil, false, errors.WrapInvalid(errors.ErrInvalidData, "Engine", "Process", "nil record")
	}

	identity := StreamIdentity(tag, record, e.cfg.StreamIdentityKey)
	e.store.Touch(identity, e.now())

	line := Line{Tag: tag, Time: ts, Record: record}

	if e.cfg.Mode() == ModeLineCount {
		return e.processLineCount(identity, line)
	}
	return e.processRegexp(identity, line)
}

// processLineCount appends the line and flushes once the buffer reaches the
// configured size.
func (e *Engine) processLineCount(identity string, line Line) (Record, bool, error) {
	if e.store.Append(identity, line) < e.cfg.NLines {
		return nil, false, nil
	}
	merged, ok := e.store.Flush(identity, nil)
	return merged, ok, nil
}

// processRegexp runs the boundary state machine. The stream is idle when its
// buffer is empty and accumulating otherwise.
func (e *Engine) processRegexp(identity string, line Line) (Record, bool, error) {
	value := fieldString(line.Record, e.cfg.Key)

	switch {
	case e.start.MatchString(value):
		// A start match completes any open group without this line and seeds
		// the next group with it. On an idle stream the flush drains nothing
		// and the line simply opens a new group.
		merged, ok := e.store.Flush(identity, &line)
		return merged, ok, nil

	case e.end != nil && e.end.MatchString(value):
		// An end match closes the group including this line.
		e.store.Append(identity, line)
		merged, ok := e.store.Flush(identity, nil)
		return merged, ok, nil

	default:
		// Continuation line. While idle it belongs to no group and passes
		// through unchanged; while accumulating it extends the open group.
		if e.store.Empty(identity) {
			return line.Record, true, nil
		}
		e.store.Append(identity, line)
		return nil, false, nil
	}
}
