package hxpage

import (
	"maps"

	"github.com/a-h/templ"
)

// RenderMode selects how the pipeline produces the response body. It is a
// closed set: any other value is a configuration error, never a fallback.
type RenderMode string

const (
	RenderHTML    RenderMode = "html"
	RenderJSON    RenderMode = "json"
	RenderNothing RenderMode = "nothing"
)

// Valid reports whether m is one of the known render modes.
func (m RenderMode) Valid() bool {
	switch m {
	case RenderHTML, RenderJSON, RenderNothing:
		return true
	}
	return false
}

// SlotValue is what a handler puts into a slot: a widget to resolve or
// content that is already resolved.
type SlotValue struct {
	widget  string
	def     Definition
	content templ.Component
}

// UseWidget fills a slot with the registered widget called name.
func UseWidget(name string) SlotValue {
	return SlotValue{widget: name}
}

// UseDefinition fills a slot with a widget definition that need not be
// registered. A nil def fails the slot's widget with ErrUnknownWidget.
func UseDefinition(def Definition) SlotValue {
	if def == nil {
		return SlotValue{}
	}
	return SlotValue{widget: def.Name(), def: def}
}

// Content fills a slot with an already-resolved component.
func Content(c templ.Component) SlotValue {
	return SlotValue{content: c}
}

// HTMLContent fills a slot with literal trusted markup.
func HTMLContent(html string) SlotValue {
	return SlotValue{content: templ.Raw(html)}
}

// Response is returned by handlers to tell the pipeline what to render.
//
// Response is a value-type builder; every method returns a modified copy:
//
//	// Widget page in the default layout
//	return hxpage.Page("").Slot("main", hxpage.UseWidget("article")), nil
//
//	// Literal JSON; declared widgets, if any, are ignored
//	return hxpage.JSON(map[string]any{"ok": true}), nil
//
//	// Empty body
//	return hxpage.Nothing().Status(http.StatusNoContent), nil
type Response struct {
	mode    RenderMode
	layout  string
	slots   map[string]SlotValue
	value   any
	headers map[string]string
	status  int
}

// Page creates an HTML response in layout. An empty layout means the
// configured default layout.
func Page(layout string) Response {
	return Response{mode: RenderHTML, layout: layout}
}

// JSON creates a response that serializes v and bypasses the widget engine.
func JSON(v any) Response {
	return Response{mode: RenderJSON, value: v}
}

// Nothing creates a response with an empty body.
func Nothing() Response {
	return Response{mode: RenderNothing}
}

// WithMode creates a response with an arbitrary render mode, for modes
// chosen at runtime. Unknown modes fail when the pipeline runs.
func WithMode(mode RenderMode) Response {
	return Response{mode: mode}
}

// Slot sets the content of a named slot.
func (r Response) Slot(name string, v SlotValue) Response {
	r.slots = maps.Clone(r.slots)
	if r.slots == nil {
		r.slots = make(map[string]SlotValue)
	}
	r.slots[name] = v
	return r
}

// Layout sets the layout.
func (r Response) Layout(name string) Response {
	r.layout = name
	return r
}

// Value sets the literal value serialized in json mode.
func (r Response) Value(v any) Response {
	r.value = v
	return r
}

// Header sets a response header.
func (r Response) Header(key, value string) Response {
	r.headers = maps.Clone(r.headers)
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

// Status sets the HTTP status code. The default is 200.
func (r Response) Status(code int) Response {
	r.status = code
	return r
}

// Mode returns the render mode.
func (r Response) Mode() RenderMode {
	return r.mode
}

// LayoutName returns the layout name ("" for the default).
func (r Response) LayoutName() string {
	return r.layout
}

// Slots returns the names of the declared slots.
func (r Response) Slots() []string {
	names := make([]string, 0, len(r.slots))
	for name := range r.slots {
		names = append(names, name)
	}
	return names
}

// GetValue returns the literal value.
func (r Response) GetValue() any {
	return r.value
}

// GetHeaders returns the response headers.
func (r Response) GetHeaders() map[string]string {
	return maps.Clone(r.headers)
}

// GetStatus returns the HTTP status code (0 means not set, use 200).
func (r Response) GetStatus() int {
	return r.status
}
