package hxpage

import (
	"context"
	"fmt"

	"github.com/a-h/templ"
)

// CachePolicy controls whether a widget's rendered fragment is memoized and
// which part of the environment identifies a cache entry.
type CachePolicy struct {
	// Enabled turns caching on. Widgets whose fetch or view is not
	// deterministic must leave it off.
	Enabled bool

	// Inputs lists the environment keys the fetch reads. The fingerprint is
	// built from these keys only; empty means the whole environment.
	Inputs []string

	// Key, if set, replaces Inputs and returns the value to fingerprint.
	Key func(env Env) (any, error)
}

// Widget[D] is the typed widget definition. D is the type of the fetched
// data handed to the view.
//
//	var Weather = hxpage.NewWidget("weather",
//	    func(ctx context.Context, env hxpage.Env) (Forecast, error) {
//	        return weatherAPI.Get(ctx, env.Query("city"))
//	    },
//	    func(ctx context.Context, f Forecast) templ.Component {
//	        return forecastTemplate(f)
//	    },
//	).Inputs("query")
//
// Caching is on by default; call NoCache for widgets that are not
// deterministic.
type Widget[D any] struct {
	name   string
	fetch  func(ctx context.Context, env Env) (D, error)
	view   func(ctx context.Context, data D) templ.Component
	policy CachePolicy
}

// NewWidget creates a widget from a fetch and a view function.
// A nil fetch yields the zero D.
func NewWidget[D any](name string, fetch func(ctx context.Context, env Env) (D, error), view func(ctx context.Context, data D) templ.Component) *Widget[D] {
	return &Widget[D]{
		name:   name,
		fetch:  fetch,
		view:   view,
		policy: CachePolicy{Enabled: true},
	}
}

// Define creates a widget from a type implementing Fetcher and Viewer.
func Define[D any](name string, impl WidgetImpl[D]) *Widget[D] {
	return NewWidget(name, impl.Fetch, impl.View)
}

// Inputs restricts the cache fingerprint to the given environment keys.
func (w *Widget[D]) Inputs(keys ...string) *Widget[D] {
	w.policy.Inputs = keys
	return w
}

// CacheKey sets a custom fingerprint source.
func (w *Widget[D]) CacheKey(fn func(env Env) (any, error)) *Widget[D] {
	w.policy.Key = fn
	return w
}

// NoCache disables caching for this widget.
func (w *Widget[D]) NoCache() *Widget[D] {
	w.policy.Enabled = false
	return w
}

// Name returns the widget's registry name.
func (w *Widget[D]) Name() string {
	return w.name
}

// CachePolicy returns the widget's cache policy.
func (w *Widget[D]) CachePolicy() CachePolicy {
	return w.policy
}

// Fetch runs the typed fetch function.
func (w *Widget[D]) Fetch(ctx context.Context, env Env) (any, error) {
	if w.fetch == nil {
		var zero D
		return zero, nil
	}
	return w.fetch(ctx, env)
}

// View runs the typed view function. data must be a D.
func (w *Widget[D]) View(ctx context.Context, data any) (templ.Component, error) {
	d, ok := data.(D)
	if !ok && data != nil {
		return nil, fmt.Errorf("widget %q: view got %T, want %T", w.name, data, *new(D))
	}
	if w.view == nil {
		return nil, fmt.Errorf("widget %q: no view", w.name)
	}
	return w.view(ctx, d), nil
}
