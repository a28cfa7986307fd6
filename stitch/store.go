package stitch

import (
	"sync"
	"time"
)

// streamBuffer is per-identity state: the ordered pending lines plus the
// last-activity timestamp. The timestamp only moves forward and is refreshed
// on every event observed for the identity, buffered or not.
type streamBuffer struct {
	lines       []Line
	lastTouched time.Time
}

// FlushedGroup pairs a stream identity with the merged record drained from
// its buffer.
type FlushedGroup struct {
	Identity string
	Record   Record
}

// BufferStore is the single source of truth for pending lines, keyed by
// stream identity. It is mutated by both the synchronous ingestion path and
// the background sweeper; every exported operation is atomic with respect to
// any other, so at most one caller drains a given accumulation.
//
// An identity whose buffer is empty may linger for timestamp bookkeeping, but
// it is never emitted; the sweeper eventually evicts it.
type BufferStore struct {
	mu      sync.Mutex
	merger  *Merger
	streams map[string]*streamBuffer
}

// NewBufferStore creates an empty store draining through the given merger.
func NewBufferStore(merger *Merger) *BufferStore {
	return &BufferStore{
		merger:  merger,
		streams: make(map[string]*streamBuffer),
	}
}

// Touch sets the identity's last-activity timestamp, creating the entry if
// absent. The timestamp never moves backward.
func (s *BufferStore) Touch(identity string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sb := s.streams[identity]
	if sb == nil {
		sb = &streamBuffer{}
		s.streams[identity] = sb
	}
	if now.After(sb.lastTouched) {
		sb.lastTouched = now
	}
}

// Append adds a line to the tail of the identity's buffer, creating the
// entry if absent, and returns the resulting buffer size.
func (s *BufferStore) Append(identity string, line Line) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	sb := s.streams[identity]
	if sb == nil {
		sb = &streamBuffer{}
		s.streams[identity] = sb
	}
	sb.lines = append(sb.lines, line)
	return len(sb.lines)
}

// Empty reports whether the identity currently holds no pending lines.
func (s *BufferStore) Empty(identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sb := s.streams[identity]
	return sb == nil || len(sb.lines) == 0
}

// Flush atomically drains the identity's buffer through the merger and
// returns the merged record. When replacement is non-nil the buffer is seeded
// with it, so a new group's first line can displace the old group in one
// step. A flush of an empty buffer merges nothing and returns ok=false, but
// still seeds the replacement; callers distinguish that so the sweeper only
// emits for identities actually holding data.
func (s *BufferStore) Flush(identity string, replacement *Line) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sb := s.streams[identity]
	if sb == nil {
		if replacement == nil {
			return nil, false
		}
		sb = &streamBuffer{}
		s.streams[identity] = sb
	}

	var merged Record
	ok := len(sb.lines) > 0
	if ok {
		merged = s.merger.Merge(sb.lines)
	}

	sb.lines = nil
	if replacement != nil {
		sb.lines = []Line{*replacement}
	}

	return merged, ok
}

// FlushStale drains every identity idle for at least interval and removes it
// from activity tracking. Identities with empty buffers are evicted without
// being emitted. Used by the sweeper on each tick.
func (s *BufferStore) FlushStale(now time.Time, interval time.Duration) []FlushedGroup {
	s.mu.Lock()
	defer s.mu.Unlock()

	var flushed []FlushedGroup
	for identity, sb := range s.streams {
		if now.Sub(sb.lastTouched) < interval {
			continue
		}
		if len(sb.lines) > 0 {
			flushed = append(flushed, FlushedGroup{
				Identity: identity,
				Record:   s.merger.Merge(sb.lines),
			})
		}
		delete(s.streams, identity)
	}
	return flushed
}

// FlushAll drains every non-empty buffer and clears the store. Used at
// shutdown so no buffered data is silently dropped.
func (s *BufferStore) FlushAll() []FlushedGroup {
	s.mu.Lock()
	defer s.mu.Unlock()

	var flushed []FlushedGroup
	for identity, sb := range s.streams {
		if len(sb.lines) > 0 {
			flushed = append(flushed, FlushedGroup{
				Identity: identity,
				Record:   s.merger.Merge(sb.lines),
			})
		}
	}
	s.streams = make(map[string]*streamBuffer)
	return flushed
}

// Len returns the number of tracked identities, including ones retained only
// for timestamp bookkeeping.
func (s *BufferStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}
