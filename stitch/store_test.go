package stitch

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *BufferStore {
	return NewBufferStore(NewMerger("message", "\n"))
}

func TestBufferStore_TouchCreatesEntry(t *testing.T) {
	store := newTestStore()
	now := time.Now()

	store.Touch("app:default", now)
	assert.Equal(t, 1, store.Len())
	assert.True(t, store.Empty("app:default"))
}

func TestBufferStore_TouchNeverMovesBackward(t *testing.T) {
	store := newTestStore()
	now := time.Now()

	store.Touch("app:default", now)
	store.Append("app:default", Line{Tag: "app", Record: Record{"message": "a"}})
	store.Touch("app:default", now.Add(-time.Hour))

	// An hour-old touch must not make the stream look stale
	assert.Empty(t, store.FlushStale(now.Add(30*time.Minute), time.Hour))
}

func TestBufferStore_AppendAndFlush(t *testing.T) {
	store := newTestStore()

	assert.Equal(t, 1, store.Append("app:default", Line{Tag: "app", Record: Record{"message": "a"}}))
	assert.Equal(t, 2, store.Append("app:default", Line{Tag: "app", Record: Record{"message": "b"}}))
	assert.False(t, store.Empty("app:default"))

	merged, ok := store.Flush("app:default", nil)
	require.True(t, ok)
	assert.Equal(t, "a\nb", merged["message"])
	assert.True(t, store.Empty("app:default"))
}

func TestBufferStore_FlushEmptyIsNoOp(t *testing.T) {
	store := newTestStore()

	merged, ok := store.Flush("app:default", nil)
	assert.False(t, ok)
	assert.Nil(t, merged)

	store.Touch("app:default", time.Now())
	merged, ok = store.Flush("app:default", nil)
	assert.False(t, ok)
	assert.Nil(t, merged)
}

func TestBufferStore_FlushWithReplacementSeedsNewGroup(t *testing.T) {
	store := newTestStore()

	store.Append("app:default", Line{Tag: "app", Record: Record{"message": "old"}})

	seed := Line{Tag: "app", Record: Record{"message": "new"}}
	merged, ok := store.Flush("app:default", &seed)
	require.True(t, ok)
	assert.Equal(t, "old", merged["message"])

	// The replacement is the sole pending line of the next group
	next, ok := store.Flush("app:default", nil)
	require.True(t, ok)
	assert.Equal(t, "new", next["message"])
}

func TestBufferStore_FlushReplacementOnEmptyBufferSeedsWithoutEmitting(t *testing.T) {
	store := newTestStore()

	seed := Line{Tag: "app", Record: Record{"message": "first"}}
	merged, ok := store.Flush("app:default", &seed)
	assert.False(t, ok)
	assert.Nil(t, merged)
	assert.False(t, store.Empty("app:default"))
}

func TestBufferStore_FlushStale(t *testing.T) {
	store := newTestStore()
	base := time.Now()

	store.Touch("stale:default", base)
	store.Append("stale:default", Line{Tag: "stale", Record: Record{"message": "held"}})

	store.Touch("fresh:default", base.Add(50*time.Second))
	store.Append("fresh:default", Line{Tag: "fresh", Record: Record{"message": "active"}})

	// Only bookkeeping, no pending lines: evicted silently
	store.Touch("idle:default", base)

	flushed := store.FlushStale(base.Add(60*time.Second), 60*time.Second)
	require.Len(t, flushed, 1)
	assert.Equal(t, "stale:default", flushed[0].Identity)
	assert.Equal(t, "held", flushed[0].Record["message"])

	// stale and idle are gone from tracking, fresh remains
	assert.Equal(t, 1, store.Len())
	assert.False(t, store.Empty("fresh:default"))
}

func TestBufferStore_FlushAll(t *testing.T) {
	store := newTestStore()

	store.Append("a:default", Line{Tag: "a", Record: Record{"message": "1"}})
	store.Append("a:default", Line{Tag: "a", Record: Record{"message": "2"}})
	store.Append("b:default", Line{Tag: "b", Record: Record{"message": "3"}})
	store.Touch("empty:default", time.Now())

	flushed := store.FlushAll()
	require.Len(t, flushed, 2)

	byIdentity := map[string]Record{}
	for _, group := range flushed {
		byIdentity[group.Identity] = group.Record
	}
	assert.Equal(t, "1\n2", byIdentity["a:default"]["message"])
	assert.Equal(t, "3", byIdentity["b:default"]["message"])

	assert.Equal(t, 0, store.Len())
}

func TestBufferStore_ExactlyOneWinnerPerAccumulation(t *testing.T) {
	store := newTestStore()
	base := time.Now()

	store.Touch("app:default", base)
	store.Append("app:default", Line{Tag: "app", Record: Record{"message": "x"}})

	// A natural flush and a staleness sweep race over the same buffer;
	// exactly one of them may drain it.
	var mu sync.Mutex
	var wins int

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, ok := store.Flush("app:default", nil); ok {
			mu.Lock()
			wins++
			mu.Unlock()
		}
	}()
	go func() {
		defer wg.Done()
		if flushed := store.FlushStale(base.Add(time.Hour), time.Minute); len(flushed) > 0 {
			mu.Lock()
			wins++
			mu.Unlock()
		}
	}()
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestBufferStore_ConcurrentIdentitiesDoNotInterleave(t *testing.T) {
	store := newTestStore()

	const perStream = 50
	var wg sync.WaitGroup
	for _, id := range []string{"s1:default", "s2:default"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < perStream; i++ {
				store.Append(id, Line{Tag: id, Record: Record{"message": fmt.Sprintf("%s-%d", id, i)}})
			}
		}(id)
	}
	wg.Wait()

	for _, id := range []string{"s1:default", "s2:default"} {
		merged, ok := store.Flush(id, nil)
		require.True(t, ok)

		expected := make([]string, perStream)
		for i := 0; i < perStream; i++ {
			expected[i] = fmt.Sprintf("%s-%d", id, i)
		}
		assert.Equal(t, strings.Join(expected, "\n"), merged["message"])
	}
}
