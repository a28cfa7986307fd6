package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorTimeout, "timeout"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			result := test.class.String()
			if result != test.expected {
				t.Errorf("expected %s, got %s", test.expected, result)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"connection lost", ErrConnectionLost, true},
		{"circuit open", ErrCircuitOpen, true},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"context canceled", context.Canceled, true},
		{"invalid data", ErrInvalidData, false},
		{"network error", fmt.Errorf("network connection failed"), true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsTransient(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"invalid config", ErrInvalidConfig, true},
		{"missing config", ErrMissingConfig, true},
		{"parsing failed", ErrParsingFailed, false},
		{"fatal in message", fmt.Errorf("fatal processing error"), true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsFatal(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"invalid data", ErrInvalidData, true},
		{"parsing failed", ErrParsingFailed, true},
		{"connection lost", ErrConnectionLost, false},
		{"classified invalid", &ClassifiedError{Class: ErrorInvalid, Err: fmt.Errorf("test")}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsInvalid(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestFlushTimeout(t *testing.T) {
	err := NewFlushTimeout("app:default")

	if !IsFlushTimeout(err) {
		t.Errorf("expected flush timeout classification for %v", err)
	}
	if Classify(err) != ErrorTimeout {
		t.Errorf("expected ErrorTimeout class, got %v", Classify(err))
	}

	var fte *FlushTimeoutError
	if !errors.As(err, &fte) {
		t.Fatalf("expected FlushTimeoutError in chain")
	}
	if fte.Identity != "app:default" {
		t.Errorf("expected identity app:default, got %s", fte.Identity)
	}

	// wrapping preserves the timeout class
	wrapped := Wrap(err, "Sweeper", "tick", "flush stale stream")
	if !IsFlushTimeout(wrapped) {
		t.Errorf("expected wrapped error to keep timeout classification")
	}
}

func TestWrap(t *testing.T) {
	base := fmt.Errorf("boom")
	wrapped := Wrap(base, "Engine", "Process", "evaluate boundary")

	expected := "Engine.Process: evaluate boundary failed: boom"
	if wrapped.Error() != expected {
		t.Errorf("expected %q, got %q", expected, wrapped.Error())
	}
	if !errors.Is(wrapped, base) {
		t.Errorf("expected wrapped error to unwrap to base")
	}

	if Wrap(nil, "Engine", "Process", "noop") != nil {
		t.Errorf("expected nil for nil error")
	}
}

func TestWrapClassified(t *testing.T) {
	base := fmt.Errorf("boom")

	tests := []struct {
		name  string
		wrap  func(error, string, string, string) error
		class ErrorClass
	}{
		{"transient", WrapTransient, ErrorTransient},
		{"invalid", WrapInvalid, ErrorInvalid},
		{"fatal", WrapFatal, ErrorFatal},
		{"timeout", WrapTimeout, ErrorTimeout},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.wrap(base, "Component", "Method", "action")

			var ce *ClassifiedError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ClassifiedError")
			}
			if ce.Class != test.class {
				t.Errorf("expected class %v, got %v", test.class, ce.Class)
			}
			if ce.Component != "Component" {
				t.Errorf("expected component context, got %s", ce.Component)
			}
			if !errors.Is(err, base) {
				t.Errorf("expected classified error to unwrap to base")
			}

			if test.wrap(nil, "Component", "Method", "action") != nil {
				t.Errorf("expected nil for nil error")
			}
		})
	}
}
