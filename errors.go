package hxpage

import (
	"errors"
	"fmt"
)

// Sentinel errors for engine operations.
var (
	ErrUnknownWidget     = errors.New("hxpage: unknown widget")
	ErrUnknownLayout     = errors.New("hxpage: unknown layout")
	ErrMissingLayout     = errors.New("hxpage: no layout for html response")
	ErrUnknownRenderMode = errors.New("hxpage: unrecognized render mode")
	ErrUnresolvedSlot    = errors.New("hxpage: slot has no widget and no default")
	ErrDuplicateSlot     = errors.New("hxpage: duplicate slot in fragment")
	ErrInvalidSlotName   = errors.New("hxpage: invalid slot name")
	ErrMaxDepth          = errors.New("hxpage: widget tree exceeds max depth")
	ErrFetchFailed       = errors.New("hxpage: widget fetch failed")
	ErrRenderFailed      = errors.New("hxpage: widget render failed")
)

// WidgetPhase identifies which step of a widget's lifecycle failed.
type WidgetPhase string

const (
	PhaseFetch  WidgetPhase = "fetch"
	PhaseRender WidgetPhase = "render"
)

// WidgetError is a node-local failure. It is reported but never aborts the
// rest of the tree.
type WidgetError struct {
	Widget string
	Path   string
	Phase  WidgetPhase
	Err    error
}

func (e *WidgetError) Error() string {
	return fmt.Sprintf("hxpage: widget %q at %s: %s failed: %v", e.Widget, e.Path, e.Phase, e.Err)
}

// Unwrap returns both the phase sentinel and the underlying error so callers
// can match either with errors.Is.
func (e *WidgetError) Unwrap() []error {
	sentinel := ErrFetchFailed
	if e.Phase == PhaseRender {
		sentinel = ErrRenderFailed
	}
	return []error{sentinel, e.Err}
}

// CompositionError reports a layout insertion point that could not be filled.
type CompositionError struct {
	Layout string
	Slot   string
	Err    error
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("hxpage: compose layout %q slot %q: %v", e.Layout, e.Slot, e.Err)
}

func (e *CompositionError) Unwrap() error {
	return e.Err
}

// ConfigurationError is fatal to the request and surfaced as a 500.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("hxpage: configuration error: %s: %v", e.Reason, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsConfigurationError checks if err is or wraps a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsCompositionError checks if err is or wraps a *CompositionError.
func IsCompositionError(err error) bool {
	var ce *CompositionError
	return errors.As(err, &ce)
}

// IsWidgetError checks if err is or wraps a *WidgetError.
func IsWidgetError(err error) bool {
	var we *WidgetError
	return errors.As(err, &we)
}
