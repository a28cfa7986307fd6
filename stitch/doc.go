// Package stitch implements stateful aggregation of log records that were
// split across multiple delivery events, rejoining them into single logical
// records.
//
// The core pieces are:
//
//   - Config: validated aggregation settings with two mutually exclusive
//     matching modes (fixed line count vs. regexp-delimited boundaries)
//   - BufferStore: thread-safe per-stream buffers with last-activity tracking
//   - Engine: the per-event decision logic; consumes one (tag, timestamp,
//     record) at a time and yields zero or one completed output record
//   - Merger: joins a group of buffered lines into one merged record
//   - Sweeper: a background task that forcibly flushes streams that stall
//
// Streams are partitioned by identity, derived from the event tag and an
// optional record field. Exactly one group is open per identity at any time.
// The ingestion path and the sweeper mutate the same BufferStore through
// atomic operations, so a natural flush and a forced timeout flush can never
// both drain the same accumulation.
package stitch
