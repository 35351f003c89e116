package hxpage

import (
	"context"
	"fmt"
	"html"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/a-h/templ"
)

// Fragment is the immutable rendered output of one widget.
//
// Its markup may contain insertion points (see Slot and Embed) that are
// filled with child fragments during assembly. Fragments are shared between
// the cache and concurrent requests and must never be modified; the accessors
// return copies where that matters.
type Fragment struct {
	html     string
	children []ChildRef
}

// NewFragment creates a fragment from markup and its declared children.
func NewFragment(markup string, children ...ChildRef) Fragment {
	return Fragment{html: markup, children: slices.Clone(children)}
}

// HTML returns the fragment markup, including unfilled insertion points.
func (f Fragment) HTML() string {
	return f.html
}

// Children returns the child references declared while rendering.
func (f Fragment) Children() []ChildRef {
	return slices.Clone(f.children)
}

// ChildRef is a late-bound reference to a child widget. Widget is a registry
// name resolved only when the child is discovered; Values enrich the
// parent's environment for the child's fetch.
type ChildRef struct {
	Slot   string
	Widget string
	Values map[string]any
}

// Slot returns a templ component marking a named insertion point. Use it in
// layouts; the composer replaces it with the slot's resolved fragment.
//
//	templ page() {
//	    <header>@hxpage.Slot("header")</header>
//	    <main>@hxpage.Slot("main")</main>
//	}
func Slot(name string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if !validSlotName(name) {
			return fmt.Errorf("%w: %q", ErrInvalidSlotName, name)
		}
		_, err := io.WriteString(w, marker(name))
		return err
	})
}

// Embed declares a child widget inside a widget view. The child is looked up
// by name in the registry after this view renders and is fetched on the next
// scheduling level with the parent's environment plus values.
//
//	func (c *Article) View(ctx context.Context, a Article) templ.Component {
//	    return articleTemplate(a, hxpage.Embed("comments", "comments", map[string]any{
//	        "article_id": a.ID,
//	    }))
//	}
//
// Embed used outside a widget view renders an empty insertion point.
func Embed(slot, widget string, values map[string]any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if !validSlotName(slot) {
			return fmt.Errorf("%w: %q", ErrInvalidSlotName, slot)
		}
		if c := collectorFrom(ctx); c != nil {
			if err := c.add(ChildRef{Slot: slot, Widget: widget, Values: values}); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, marker(slot))
		return err
	})
}

// ErrorFragment renders the placeholder shown in place of a failed widget.
// The message is HTML-escaped; pass showDetail=false to hide it.
func ErrorFragment(widget string, err error, showDetail bool) Fragment {
	var sb strings.Builder
	sb.WriteString(`<div class="hxpage-error" data-widget="`)
	sb.WriteString(html.EscapeString(widget))
	sb.WriteString(`">`)
	if showDetail && err != nil {
		sb.WriteString("Widget error: ")
		sb.WriteString(html.EscapeString(err.Error()))
	}
	sb.WriteString(`</div>`)
	return Fragment{html: sb.String()}
}

type collectorKey struct{}

// childCollector records Embed calls made while one view renders.
type childCollector struct {
	mu       sync.Mutex
	children []ChildRef
	seen     map[string]bool
}

func (c *childCollector) add(ref ChildRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen[ref.Slot] {
		return fmt.Errorf("%w: %q", ErrDuplicateSlot, ref.Slot)
	}
	c.seen[ref.Slot] = true
	c.children = append(c.children, ref)
	return nil
}

func withCollector(ctx context.Context) (context.Context, *childCollector) {
	c := &childCollector{seen: make(map[string]bool)}
	return context.WithValue(ctx, collectorKey{}, c), c
}

func collectorFrom(ctx context.Context) *childCollector {
	c, _ := ctx.Value(collectorKey{}).(*childCollector)
	return c
}
