package hxpage

import (
	"bytes"
	"context"
	"maps"

	"github.com/a-h/templ"
)

// Layout is a shared outer document with named insertion points.
//
// Template renders the document; insertion points are written with Slot.
// Defaults binds insertion points to widgets used when a handler does not
// supply that slot.
//
//	hxpage.NewLayout("main", pageTemplate()).
//	    Default("header", "site-header").
//	    Default("footer", "site-footer")
type Layout struct {
	Name     string
	Template templ.Component
	Defaults map[string]string
}

// NewLayout creates a layout.
func NewLayout(name string, template templ.Component) *Layout {
	return &Layout{Name: name, Template: template, Defaults: map[string]string{}}
}

// Default binds slot to a fallback widget.
func (l *Layout) Default(slot, widget string) *Layout {
	if l.Defaults == nil {
		l.Defaults = map[string]string{}
	}
	l.Defaults[slot] = widget
	return l
}

// Document is a rendered layout: its markup and the insertion points it
// declares, in document order.
type Document struct {
	Layout string
	HTML   string
	Slots  []string
}

// Render renders the layout template.
func (l *Layout) Render(ctx context.Context) (Document, error) {
	var buf bytes.Buffer
	if l.Template != nil {
		if err := l.Template.Render(ctx, &buf); err != nil {
			return Document{}, err
		}
	}
	html := buf.String()
	return Document{Layout: l.Name, HTML: html, Slots: slotNames(html)}, nil
}

// Composer fills a layout's insertion points with resolved fragments.
type Composer struct {
	// FailOnMissing turns an insertion point with neither a resolved fragment
	// nor a default into a *CompositionError. Otherwise it is left empty.
	FailOnMissing bool
}

// NewComposer creates a composer for the configured missing-slot policy.
func NewComposer(cfg Config) *Composer {
	return &Composer{FailOnMissing: cfg.MissingSlot == MissingSlotFail}
}

// Compose substitutes every insertion point of doc with its entry in
// resolved. Defaults are resolved by the scheduler before composing, so by
// now a slot is either present in resolved or missing.
func (c *Composer) Compose(doc Document, resolved map[string]string) (string, error) {
	var missing []string
	out := fillSlots(doc.HTML, func(name string) (string, bool) {
		s, ok := resolved[name]
		return s, ok
	}, func(name string) {
		missing = append(missing, name)
	})

	if len(missing) > 0 && c.FailOnMissing {
		return "", &CompositionError{Layout: doc.Layout, Slot: missing[0], Err: ErrUnresolvedSlot}
	}
	return out, nil
}

// seeds builds the top-level widgets for a layout from the response slots,
// falling back to the layout defaults. Pre-rendered content is returned
// separately; it needs no scheduling.
func (l *Layout) seeds(ctx context.Context, doc Document, slots map[string]SlotValue) ([]Seed, map[string]string, error) {
	var seeds []Seed
	static := make(map[string]string)
	for _, name := range doc.Slots {
		v, ok := slots[name]
		if !ok {
			if widget, ok := l.Defaults[name]; ok {
				seeds = append(seeds, Seed{Slot: name, Widget: widget})
			}
			continue
		}
		if v.content != nil {
			html, err := renderContent(ctx, v.content)
			if err != nil {
				return nil, nil, err
			}
			static[name] = html
			continue
		}
		seeds = append(seeds, Seed{Slot: name, Widget: v.widget, Def: v.def})
	}
	return seeds, static, nil
}

func renderContent(ctx context.Context, c templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	// Content is already resolved; stray insertion points are dropped.
	return fillSlots(buf.String(), func(string) (string, bool) { return "", false }, nil), nil
}

// mergeSlots layers b over a into a new map.
func mergeSlots(a, b map[string]string) map[string]string {
	out := maps.Clone(a)
	if out == nil {
		out = make(map[string]string, len(b))
	}
	maps.Copy(out, b)
	return out
}
