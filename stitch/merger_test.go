package stitch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkLine(tag, msg string, extra Record) Line {
	rec := Record{"message": msg}
	for k, v := range extra {
		rec[k] = v
	}
	return Line{Tag: tag, Time: time.Now(), Record: rec}
}

func TestMerger_Merge(t *testing.T) {
	m := NewMerger("message", "\n")

	lines := []Line{
		mkLine("app", "a", Record{"first_only": true}),
		mkLine("app", "b", nil),
		mkLine("app", "c", Record{"host": "node-1"}),
	}

	merged := m.Merge(lines)
	require.NotNil(t, merged)

	assert.Equal(t, "a\nb\nc", merged["message"])

	// All other fields come from the last record
	assert.Equal(t, "node-1", merged["host"])
	assert.NotContains(t, merged, "first_only")
}

func TestMerger_CustomSeparator(t *testing.T) {
	m := NewMerger("message", " | ")

	merged := m.Merge([]Line{mkLine("app", "a", nil), mkLine("app", "b", nil)})
	assert.Equal(t, "a | b", merged["message"])
}

func TestMerger_SingleLine(t *testing.T) {
	m := NewMerger("message", "\n")

	merged := m.Merge([]Line{mkLine("app", "only", Record{"level": "error"})})
	assert.Equal(t, "only", merged["message"])
	assert.Equal(t, "error", merged["level"])
}

func TestMerger_EmptyGroup(t *testing.T) {
	m := NewMerger("message", "\n")
	assert.Nil(t, m.Merge(nil))
}

func TestMerger_MissingAndNonStringValues(t *testing.T) {
	m := NewMerger("message", "\n")

	lines := []Line{
		{Tag: "app", Record: Record{"other": "x"}}, // message missing
		{Tag: "app", Record: Record{"message": 42}},
		{Tag: "app", Record: Record{"message": "done"}},
	}

	merged := m.Merge(lines)
	assert.Equal(t, "\n42\ndone", merged["message"])
}

func TestMerger_DoesNotMutateInput(t *testing.T) {
	m := NewMerger("message", "\n")

	last := Record{"message": "b", "host": "node-1"}
	lines := []Line{mkLine("app", "a", nil), {Tag: "app", Record: last}}

	merged := m.Merge(lines)
	merged["host"] = "mutated"

	assert.Equal(t, "b", last["message"])
	assert.Equal(t, "node-1", last["host"])
}
