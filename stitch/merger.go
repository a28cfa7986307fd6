package stitch

import (
	"fmt"
	"strings"
)

// Merger joins a group of buffered lines into one merged record.
// Deterministic and side-effect free.
type Merger struct {
	key       string
	separator string
}

// NewMerger creates a merger for the given target field and separator.
func NewMerger(key, separator string) *Merger {
	return &Merger{key: key, separator: separator}
}

// Merge extracts the target field from each buffered record, joins the values
// with the separator, and returns the last record's full field set with the
// target field replaced by the joined string. The output is a new record;
// input records are never mutated. Fields unique to earlier lines in the
// group are discarded.
func (m *Merger) Merge(lines []Line) Record {
	if len(lines) == 0 {
		return nil
	}

	values := make([]string, len(lines))
	for i, line := range lines {
		values[i] = fieldString(line.Record, m.key)
	}

	last := lines[len(lines)-1].Record
	merged := make(Record, len(last))
	for k, v := range last {
		merged[k] = v
	}
	merged[m.key] = strings.Join(values, m.separator)

	return merged
}

// stringify renders a non-string field value for concatenation.
func stringify(v any) string {
	return fmt.Sprint(v)
}
