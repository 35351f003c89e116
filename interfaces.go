package hxpage

import (
	"context"

	"github.com/a-h/templ"
)

// Definition is the static identity of a widget: its name, how it fetches
// data and how it renders that data.
//
// Most code builds definitions with NewWidget or Define rather than
// implementing this directly. The scheduler only ever sees Definition, so
// hand-written implementations work the same way.
type Definition interface {
	Name() string
	Fetch(ctx context.Context, env Env) (any, error)
	View(ctx context.Context, data any) (templ.Component, error)
	CachePolicy() CachePolicy
}

// Fetcher is implemented by widgets to acquire their data.
//
// Fetch may block on I/O and receives a read-only environment. It runs
// exactly once per widget instantiation in a render pass; there are no
// retries, so a fetch that wants them must do them itself.
//
//	func (w *Comments) Fetch(ctx context.Context, env hxpage.Env) (CommentList, error) {
//	    return w.store.Comments(ctx, env.String("article_id"))
//	}
type Fetcher[D any] interface {
	Fetch(ctx context.Context, env Env) (D, error)
}

// Viewer is implemented by widgets to render fetched data.
//
// View must be pure: the same data always yields the same markup and nothing
// else is touched. The engine caches and reorders views on that assumption.
// Children are declared with Embed inside the returned component.
//
//	func (w *Comments) View(ctx context.Context, list CommentList) templ.Component {
//	    return commentsTemplate(list)
//	}
type Viewer[D any] interface {
	View(ctx context.Context, data D) templ.Component
}

// WidgetImpl combines Fetcher and Viewer.
type WidgetImpl[D any] interface {
	Fetcher[D]
	Viewer[D]
}
