// Package hxpage assembles server-rendered pages from independently fetched
// widgets, using Go, Templ templates and HTMX.
//
// A page is a layout with named slots. Each slot is filled by a widget, a
// self-contained unit that fetches its data and renders it to a fragment.
// Widgets may embed child widgets, which are discovered while rendering and
// resolved on the next level. Siblings never wait for each other.
//
// # Widgets
//
// A widget pairs a typed fetch with a typed view:
//
//	articles := hxpage.NewWidget("article",
//	    func(ctx context.Context, env hxpage.Env) (Article, error) {
//	        return store.Article(ctx, env.Param("id"))
//	    },
//	    func(ctx context.Context, a Article) templ.Component {
//	        return ArticleView(a)
//	    }).Inputs(hxpage.EnvParams)
//
// Types that already carry their dependencies can implement WidgetImpl and
// register through Define instead.
//
// Inputs names the env keys the fragment depends on. Identical inputs
// produce identical markup, so the rendered fragment is cached under the
// widget name and a fingerprint of those inputs. CacheKey overrides the
// fingerprint source and NoCache opts a widget out.
//
// # Embedding children
//
// A view declares a child by rendering Embed in place of its markup:
//
//	@hxpage.Embed("comments", "comments", map[string]any{"article_id": a.ID})
//
// The child inherits the parent's env overlaid with the given values. Its
// fragment replaces the insertion marker once it resolves.
//
// # Resolution
//
// The Scheduler walks the widget tree one level at a time. Every widget on
// a level fetches in parallel; renders start once the whole level has
// fetched, and children found by those renders form the next level. A
// failing widget becomes an error fragment in its slot and is reported to
// the widget error hook. The rest of the page is unaffected.
//
// # Layouts and responses
//
// Handlers return a Response in one of three modes:
//
//	hxpage.Page("main").Slot("main", hxpage.UseWidget("article"))  // html
//	hxpage.JSON(payload).Status(http.StatusCreated)                 // json
//	hxpage.Nothing().Status(http.StatusNoContent)                   // nothing
//
// Layout templates mark their slots with Slot. Slots the handler leaves
// empty fall back to the layout's defaults. Only html responses resolve
// widgets.
//
// # Pipeline
//
// Pipeline ties the registry, cache, scheduler and composer together and
// serves handlers over net/http:
//
//	p := hxpage.NewPipeline(reg, cfg, hxpage.WithLogger(logger))
//	p.Use(authMiddleware)
//	p.Handle("GET /articles/{id}", articlePage)
//	http.ListenAndServe(":8080", p)
//
// When an HTMX request targets an element whose id names a layout slot,
// only that slot is resolved and returned.
//
// # Testing
//
// TestRender renders a single widget without the scheduler and reports the
// children it declared. TestRequest drives a full request through a
// pipeline:
//
//	result := hxpage.TestRequest(p, http.MethodGet, "/articles/1", nil)
//	if !result.IsOK() || !result.HTMLContains("<h1>") {
//	    t.Fatal(result.HTML)
//	}
package hxpage
