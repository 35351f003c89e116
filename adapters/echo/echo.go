// Package hxpageecho runs hxpage handlers inside the Echo framework.
//
// Wrap a page handler as an Echo route; Echo path params become env params:
//
//	e := echo.New()
//	p := hxpage.NewPipeline(reg, cfg)
//	e.GET("/articles/:id", hxpageecho.Wrap(p, articlePage))
//
// Or mount the pipeline's own routes under a prefix, sharing group middleware:
//
//	g := e.Group("/site", authMiddleware)
//	hxpageecho.MountGroup(g, p)
package hxpageecho

import (
	"strings"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/pthm/hxpage"
)

// Option configures Mount and MountGroup.
type Option func(*options)

type options struct {
	path string
}

// WithPath sets the prefix the pipeline routes are mounted under.
// Defaults to "/".
func WithPath(path string) Option {
	return func(o *options) {
		o.path = path
	}
}

// Wrap adapts h to an Echo handler. The pipeline writes the response, so the
// returned handler only fails when Echo itself does.
func Wrap(p *hxpage.Pipeline, h hxpage.Handler) echo.HandlerFunc {
	return func(c echo.Context) error {
		p.ServeRequest(c.Response(), c.Request(), h, Params(c))
		return nil
	}
}

// Params collects Echo path params into the map the pipeline copies into
// the request env.
func Params(c echo.Context) map[string]string {
	names := c.ParamNames()
	if len(names) == 0 {
		return nil
	}
	values := c.ParamValues()
	params := make(map[string]string, len(names))
	for i, name := range names {
		if i < len(values) {
			params[name] = values[i]
		}
	}
	return params
}

// Mount serves every route registered with p.Handle on an Echo instance.
//
//	e := echo.New()
//	hxpageecho.Mount(e, p)
//
//	// Under a prefix:
//	hxpageecho.Mount(e, p, hxpageecho.WithPath("/site/"))
func Mount(e *echo.Echo, p *hxpage.Pipeline, opts ...Option) {
	e.Any(mountPath(opts)+"*", forward(p))
}

// MountGroup serves the pipeline routes on an Echo group, so they share the
// group's middleware.
func MountGroup(g *echo.Group, p *hxpage.Pipeline, opts ...Option) {
	g.Any(mountPath(opts)+"*", forward(p))
}

func mountPath(opts []Option) string {
	o := &options{path: "/"}
	for _, opt := range opts {
		opt(o)
	}
	if !strings.HasSuffix(o.path, "/") {
		o.path += "/"
	}
	return o.path
}

// forward hands the request to the pipeline mux with the mount prefix
// removed, so routes are registered without it.
func forward(p *hxpage.Pipeline) echo.HandlerFunc {
	return func(c echo.Context) error {
		r := c.Request()
		r2 := r.Clone(r.Context())
		r2.URL.Path = "/" + c.Param("*")
		r2.URL.RawPath = ""
		p.ServeHTTP(c.Response(), r2)
		return nil
	}
}

// Render writes a templ component to the Echo response.
//
//	func handler(c echo.Context) error {
//	    return hxpageecho.Render(c, myTemplate())
//	}
func Render(c echo.Context, component templ.Component) error {
	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(c.Request().Context(), c.Response())
}
