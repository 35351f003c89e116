package hxpage

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	// Verify sentinel errors are distinct
	errs := []error{
		ErrUnknownWidget,
		ErrUnknownLayout,
		ErrMissingLayout,
		ErrUnknownRenderMode,
		ErrUnresolvedSlot,
		ErrDuplicateSlot,
		ErrInvalidSlotName,
		ErrMaxDepth,
		ErrFetchFailed,
		ErrRenderFailed,
	}

	for i, err1 := range errs {
		for j, err2 := range errs {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("Sentinel errors should be distinct: %v and %v", err1, err2)
			}
		}
		if !strings.HasPrefix(err1.Error(), "hxpage: ") {
			t.Errorf("sentinel %q lacks the package prefix", err1)
		}
	}
}

func TestWidgetError(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name     string
		phase    WidgetPhase
		sentinel error
		other    error
	}{
		{"fetch", PhaseFetch, ErrFetchFailed, ErrRenderFailed},
		{"render", PhaseRender, ErrRenderFailed, ErrFetchFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", &WidgetError{Widget: "article", Path: "main/body", Phase: tt.phase, Err: cause})

			if !errors.Is(err, tt.sentinel) {
				t.Errorf("errors.Is(%v) = false", tt.sentinel)
			}
			if errors.Is(err, tt.other) {
				t.Errorf("errors.Is(%v) = true", tt.other)
			}
			if !errors.Is(err, cause) {
				t.Error("cause not reachable through Unwrap")
			}
			if !IsWidgetError(err) {
				t.Error("IsWidgetError() = false")
			}
			msg := err.Error()
			if !strings.Contains(msg, `"article"`) || !strings.Contains(msg, "main/body") {
				t.Errorf("Error() = %q, want widget and path", msg)
			}
		})
	}
}

func TestIsConfigurationError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect bool
	}{
		{"nil error", nil, false},
		{"ConfigurationError", &ConfigurationError{Reason: "x", Err: ErrUnknownRenderMode}, true},
		{"wrapped", fmt.Errorf("serve: %w", &ConfigurationError{Reason: "x", Err: ErrMissingLayout}), true},
		{"sentinel alone", ErrUnknownRenderMode, false},
		{"CompositionError", &CompositionError{Layout: "l", Slot: "s", Err: ErrUnresolvedSlot}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsConfigurationError(tt.err)
			if result != tt.expect {
				t.Errorf("IsConfigurationError(%v) = %v, want %v", tt.err, result, tt.expect)
			}
		})
	}
}

func TestIsCompositionError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect bool
	}{
		{"nil error", nil, false},
		{"CompositionError", &CompositionError{Layout: "l", Slot: "s", Err: ErrUnresolvedSlot}, true},
		{"wrapped", fmt.Errorf("compose: %w", &CompositionError{Err: ErrUnresolvedSlot}), true},
		{"other error", errors.New("other"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsCompositionError(tt.err)
			if result != tt.expect {
				t.Errorf("IsCompositionError(%v) = %v, want %v", tt.err, result, tt.expect)
			}
		})
	}
}

func TestCompositionErrorUnwrap(t *testing.T) {
	err := &CompositionError{Layout: "page", Slot: "sidebar", Err: ErrUnresolvedSlot}
	if !errors.Is(err, ErrUnresolvedSlot) {
		t.Error("CompositionError does not unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "sidebar") {
		t.Errorf("Error() = %q", err.Error())
	}
}
