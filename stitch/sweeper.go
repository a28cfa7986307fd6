package stitch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/logstitch/errors"
)

// FlushFunc receives a merged record forcibly drained from a stalled stream.
// Implementations deliver it via the timeout path, not the normal output
// path.
type FlushFunc func(identity string, record Record)

// Sweeper periodically scans a BufferStore for streams idle longer than the
// flush interval and forces them through the merger. It runs independently
// of the ingestion cadence and must be stopped before the final shutdown
// drain.
type Sweeper struct {
	store    *BufferStore
	interval time.Duration
	tick     time.Duration
	emit     FlushFunc
	logger   *slog.Logger
	now      func() time.Time

	shutdown chan struct{}
	done     chan struct{}
	running  bool
	mu       sync.Mutex
}

// SweeperOption configures optional Sweeper behavior.
type SweeperOption func(*Sweeper)

// WithSweepTick overrides the scan cadence (default one second).
func WithSweepTick(tick time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if tick > 0 {
			s.tick = tick
		}
	}
}

// WithSweeperClock overrides the sweeper's time source.
func WithSweeperClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		s.now = now
	}
}

// WithSweeperLogger sets the logger for forced-flush events.
func WithSweeperLogger(logger *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSweeper creates a sweeper over the given store. Forced flushes are
// delivered to emit; interval is how long a stream may sit idle before being
// drained.
func NewSweeper(store *BufferStore, interval time.Duration, emit FlushFunc, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		store:    store,
		interval: interval,
		tick:     DefaultSweepTick,
		emit:     emit,
		logger:   slog.Default(),
		now:      time.Now,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start launches the background sweep loop. It returns an error if the
// sweeper is already running.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "Sweeper", "Start", "check running state")
	}
	s.running = true

	go s.run(ctx)

	return nil
}

// Stop signals the sweep loop and waits for it to exit. The final shutdown
// drain must not begin until Stop returns.
func (s *Sweeper) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.shutdown)
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(errors.ErrShuttingDown, "Sweeper", "Stop", "await sweep loop exit")
	}
}

// run is the sweep loop. One bounded scan per tick.
func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep performs one scan, draining every stream idle for at least the flush
// interval. Exposed so tests and owners can force a scan without waiting for
// a tick.
func (s *Sweeper) Sweep() int {
	flushed := s.store.FlushStale(s.now(), s.interval)
	for _, group := range flushed {
		s.logger.Info("Flushed stalled stream",
			"identity", group.Identity,
			"flush_interval", s.interval)
		s.emit(group.Identity, group.Record)
	}
	return len(flushed)
}
