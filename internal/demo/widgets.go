// Package demo is a small article site built on hxpage. It is served by
// cmd/hxpage and doubles as an end-to-end exercise of the engine.
package demo

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/a-h/templ"
	"github.com/pthm/hxpage"
)

// Widget and layout names.
const (
	LayoutMain     = "main"
	WidgetHeader   = "site-header"
	WidgetFooter   = "site-footer"
	WidgetList     = "article-list"
	WidgetSummary  = "article-summary"
	WidgetArticle  = "article"
	WidgetComments = "comments"
	WidgetRelated  = "related"
)

// keyArticleID is the env key parents use to hand an article id to children.
const keyArticleID = "article_id"

// htmlWriter writes markup and keeps the first error.
type htmlWriter struct {
	ctx context.Context
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *htmlWriter) slot(name string) {
	if h.err == nil {
		h.err = hxpage.Slot(name).Render(h.ctx, h.w)
	}
}

func (h *htmlWriter) embed(slot, widget string, values map[string]any) {
	if h.err == nil {
		h.err = hxpage.Embed(slot, widget, values).Render(h.ctx, h.w)
	}
}

func component(fn func(h *htmlWriter)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{ctx: ctx, w: w}
		fn(h)
		return h.err
	})
}

// articleID reads the article id handed down by a parent widget, falling
// back to the {id} path parameter.
func articleID(env hxpage.Env) (int64, error) {
	if v, ok := env.Get(keyArticleID); ok {
		if id, ok := v.(int64); ok {
			return id, nil
		}
	}
	id, err := strconv.ParseInt(env.Param("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("article id %q: %w", env.Param("id"), err)
	}
	return id, nil
}

// Registry builds the demo widgets and layout over store.
func Registry(store *Store) *hxpage.Registry {
	reg := hxpage.NewRegistry()
	reg.Add(
		headerWidget(store),
		footerWidget(),
		listWidget(store),
		summaryWidget(store),
		articleWidget(store),
		commentsWidget(store),
		relatedWidget(store),
	)
	reg.AddLayout(hxpage.NewLayout(LayoutMain, mainLayout()).
		Default("header", WidgetHeader).
		Default("footer", WidgetFooter))
	return reg
}

func mainLayout() templ.Component {
	return component(func(h *htmlWriter) {
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>hxpage</title>`)
		h.raw(`<script src="https://unpkg.com/htmx.org@2.0.4"></script></head><body>`)
		h.raw(`<header id="header">`)
		h.slot("header")
		h.raw(`</header><main id="main">`)
		h.slot("main")
		h.raw(`</main><footer id="footer">`)
		h.slot("footer")
		h.raw(`</footer></body></html>`)
	})
}

// headerWidget shows the live article count, so it is never cached.
func headerWidget(store *Store) *hxpage.Widget[int] {
	return hxpage.NewWidget(WidgetHeader,
		func(ctx context.Context, env hxpage.Env) (int, error) {
			return store.CountArticles(ctx)
		},
		func(ctx context.Context, count int) templ.Component {
			return component(func(h *htmlWriter) {
				h.raw(`<nav><a href="/" hx-get="/" hx-target="#main">Articles</a> <span class="count">`)
				h.text(strconv.Itoa(count))
				h.raw(` published</span></nav>`)
			})
		}).NoCache()
}

func footerWidget() *hxpage.Widget[struct{}] {
	year := strconv.Itoa(time.Now().Year())
	return hxpage.NewWidget(WidgetFooter, nil,
		func(ctx context.Context, _ struct{}) templ.Component {
			return component(func(h *htmlWriter) {
				h.raw(`<small>&copy; `)
				h.text(year)
				h.raw(` hxpage demo</small>`)
			})
		}).CacheKey(func(hxpage.Env) (any, error) { return "static", nil })
}

// listWidget fetches the article ids and leaves each summary to a child.
func listWidget(store *Store) *hxpage.Widget[[]Article] {
	return hxpage.NewWidget(WidgetList,
		func(ctx context.Context, env hxpage.Env) ([]Article, error) {
			return store.ListArticles(ctx, 20)
		},
		func(ctx context.Context, articles []Article) templ.Component {
			return component(func(h *htmlWriter) {
				if len(articles) == 0 {
					h.raw(`<p class="empty">Nothing published yet.</p>`)
					return
				}
				h.raw(`<ul class="articles">`)
				for _, a := range articles {
					h.embed(fmt.Sprintf("article-%d", a.ID), WidgetSummary, map[string]any{keyArticleID: a.ID})
				}
				h.raw(`</ul>`)
			})
		}).NoCache()
}

func summaryWidget(store *Store) *hxpage.Widget[Article] {
	return hxpage.NewWidget(WidgetSummary,
		func(ctx context.Context, env hxpage.Env) (Article, error) {
			id, err := articleID(env)
			if err != nil {
				return Article{}, err
			}
			return store.Article(ctx, id)
		},
		func(ctx context.Context, a Article) templ.Component {
			return component(func(h *htmlWriter) {
				href := fmt.Sprintf("/articles/%d", a.ID)
				h.raw(`<li><a href="`)
				h.text(href)
				h.raw(`" hx-get="`)
				h.text(href)
				h.raw(`" hx-target="#main" hx-push-url="true">`)
				h.text(a.Title)
				h.raw(`</a> <span class="author">`)
				h.text(a.Author)
				h.raw(`</span></li>`)
			})
		}).Inputs(keyArticleID)
}

// articleWidget renders an article and declares its comments and related
// articles as children, which resolve on the next level.
func articleWidget(store *Store) *hxpage.Widget[Article] {
	return hxpage.NewWidget(WidgetArticle,
		func(ctx context.Context, env hxpage.Env) (Article, error) {
			id, err := articleID(env)
			if err != nil {
				return Article{}, err
			}
			return store.Article(ctx, id)
		},
		func(ctx context.Context, a Article) templ.Component {
			return component(func(h *htmlWriter) {
				h.raw(`<article><h1>`)
				h.text(a.Title)
				h.raw(`</h1><p class="byline">by `)
				h.text(a.Author)
				h.raw(`</p><div class="body">`)
				h.text(a.Body)
				h.raw(`</div><section class="comments">`)
				h.embed("comments", WidgetComments, map[string]any{keyArticleID: a.ID})
				h.raw(`</section><aside class="related">`)
				h.embed("related", WidgetRelated, map[string]any{keyArticleID: a.ID})
				h.raw(`</aside></article>`)
			})
		}).Inputs(hxpage.EnvParams)
}

func commentsWidget(store *Store) *hxpage.Widget[[]Comment] {
	return hxpage.NewWidget(WidgetComments,
		func(ctx context.Context, env hxpage.Env) ([]Comment, error) {
			id, err := articleID(env)
			if err != nil {
				return nil, err
			}
			return store.Comments(ctx, id)
		},
		func(ctx context.Context, comments []Comment) templ.Component {
			return component(func(h *htmlWriter) {
				h.raw(`<h2>Comments</h2>`)
				if len(comments) == 0 {
					h.raw(`<p class="empty">No comments yet.</p>`)
					return
				}
				h.raw(`<ul>`)
				for _, c := range comments {
					h.raw(`<li><b>`)
					h.text(c.Author)
					h.raw(`</b> `)
					h.text(c.Body)
					h.raw(`</li>`)
				}
				h.raw(`</ul>`)
			})
		}).Inputs(keyArticleID)
}

func relatedWidget(store *Store) *hxpage.Widget[[]Article] {
	return hxpage.NewWidget(WidgetRelated,
		func(ctx context.Context, env hxpage.Env) ([]Article, error) {
			id, err := articleID(env)
			if err != nil {
				return nil, err
			}
			return store.Related(ctx, id, 3)
		},
		func(ctx context.Context, articles []Article) templ.Component {
			return component(func(h *htmlWriter) {
				if len(articles) == 0 {
					return
				}
				h.raw(`<h2>More from this author</h2><ul>`)
				for _, a := range articles {
					h.embed(fmt.Sprintf("related-%d", a.ID), WidgetSummary, map[string]any{keyArticleID: a.ID})
				}
				h.raw(`</ul>`)
			})
		}).Inputs(keyArticleID)
}
