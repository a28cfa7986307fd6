package stitch

import (
	"fmt"
	"regexp"
	"time"

	"github.com/c360/logstitch/errors"
)

// Default configuration values
const (
	DefaultSeparator     = "\n"
	DefaultFlushInterval = 60 * time.Second
	DefaultSweepTick     = time.Second
)

// Record is a single log record: a mapping of field names to values.
type Record map[string]any

// Line is one buffered event awaiting aggregation. Order within a stream
// buffer is insertion order, which equals arrival order.
type Line struct {
	Tag    string
	Time   time.Time
	Record Record
}

// Mode selects the aggregation strategy. Exactly one mode is active for the
// lifetime of a configured engine.
type Mode int

const (
	// ModeLineCount flushes a stream once its buffer reaches a fixed size
	ModeLineCount Mode = iota
	// ModeRegexp flushes streams at regexp-delimited group boundaries
	ModeRegexp
)

// String returns the string representation of Mode
func (m Mode) String() string {
	switch m {
	case ModeLineCount:
		return "line_count"
	case ModeRegexp:
		return "regexp"
	default:
		return "unknown"
	}
}

// Config holds aggregation settings for an Engine.
//
// Exactly one of NLines or MultilineStartRegexp must be set; configuring both
// or neither is a configuration error. MultilineEndRegexp is only meaningful
// paired with MultilineStartRegexp.
type Config struct {
	// Key is the record field whose values are concatenated (required)
	Key string `json:"key"`

	// Separator joins buffered field values (default: newline)
	Separator string `json:"separator"`

	// NLines flushes a stream once its buffer holds this many lines
	NLines int `json:"n_lines,omitempty"`

	// MultilineStartRegexp marks the first line of a group
	MultilineStartRegexp string `json:"multiline_start_regexp,omitempty"`

	// MultilineEndRegexp optionally marks the last line of a group
	MultilineEndRegexp string `json:"multiline_end_regexp,omitempty"`

	// StreamIdentityKey optionally names a record field that partitions
	// buffering state beyond the event tag
	StreamIdentityKey string `json:"stream_identity_key,omitempty"`

	// FlushIntervalSeconds bounds how long a stream may sit idle before the
	// sweeper forces it out (default: 60)
	FlushIntervalSeconds int `json:"flush_interval,omitempty"`

	// TimeoutLabel optionally names an alternate routing target for
	// timeout-driven flushes
	TimeoutLabel string `json:"timeout_label,omitempty"`
}

// Mode returns the aggregation mode selected by this configuration.
// Only meaningful after Validate has passed.
func (c *Config) Mode() Mode {
	if c.MultilineStartRegexp != "" {
		return ModeRegexp
	}
	return ModeLineCount
}

// FlushInterval returns the idle bound as a duration, applying the default
// when unset.
func (c *Config) FlushInterval() time.Duration {
	if c.FlushIntervalSeconds <= 0 {
		return DefaultFlushInterval
	}
	return time.Duration(c.FlushIntervalSeconds) * time.Second
}

// SeparatorOrDefault returns the configured separator, defaulting to newline.
// An explicitly empty separator cannot be distinguished from an unset one;
// streams needing plain concatenation should configure a sentinel upstream.
func (c *Config) SeparatorOrDefault() string {
	if c.Separator == "" {
		return DefaultSeparator
	}
	return c.Separator
}

// Validate enforces the cross-field configuration rules. Violations are
// fatal: the component must not start with an invalid configuration.
func (c *Config) Validate() error {
	if c.Key == "" {
		return errors.WrapFatal(errors.ErrMissingConfig, "Config", "Validate", "key is required")
	}

	hasCount := c.NLines != 0
	hasRegexp := c.MultilineStartRegexp != ""

	if hasCount && hasRegexp {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			"n_lines and multiline_start_regexp are mutually exclusive")
	}
	if !hasCount && !hasRegexp {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			"one of n_lines or multiline_start_regexp is required")
	}
	if hasCount && c.NLines < 1 {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("n_lines must be positive, got %d", c.NLines))
	}
	if c.MultilineEndRegexp != "" && !hasRegexp {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			"multiline_end_regexp requires multiline_start_regexp")
	}

	// Patterns are treated as plain pattern strings; any delimiter stripping
	// is a configuration-layer concern.
	if hasRegexp {
		if _, err := regexp.Compile(c.MultilineStartRegexp); err != nil {
			return errors.WrapFatal(err, "Config", "Validate", "compile multiline_start_regexp")
		}
	}
	if c.MultilineEndRegexp != "" {
		if _, err := regexp.Compile(c.MultilineEndRegexp); err != nil {
			return errors.WrapFatal(err, "Config", "Validate", "compile multiline_end_regexp")
		}
	}

	if c.FlushIntervalSeconds < 0 {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("flush_interval must not be negative, got %d", c.FlushIntervalSeconds))
	}

	return nil
}
