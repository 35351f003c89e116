package demo

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/pthm/hxpage"
	"go.uber.org/zap"
)

// Routes registers the demo pages and API on p.
func Routes(p *hxpage.Pipeline, store *Store) {
	p.Use(Timing())

	p.Handle("GET /{$}", func(ctx context.Context, env hxpage.Env) (hxpage.Response, error) {
		return hxpage.Page(LayoutMain).Slot("main", hxpage.UseWidget(WidgetList)), nil
	})

	p.Handle("GET /articles/{id}", func(ctx context.Context, env hxpage.Env) (hxpage.Response, error) {
		if _, err := strconv.ParseInt(env.Param("id"), 10, 64); err != nil {
			return hxpage.Nothing().Status(http.StatusNotFound), nil
		}
		return hxpage.Page(LayoutMain).Slot("main", hxpage.UseWidget(WidgetArticle)), nil
	})

	p.Handle("GET /api/articles/{id}", func(ctx context.Context, env hxpage.Env) (hxpage.Response, error) {
		id, err := strconv.ParseInt(env.Param("id"), 10, 64)
		if err != nil {
			return hxpage.JSON(map[string]string{"error": "invalid id"}).Status(http.StatusBadRequest), nil
		}
		a, err := store.Article(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return hxpage.JSON(map[string]string{"error": "not found"}).Status(http.StatusNotFound), nil
		}
		if err != nil {
			return hxpage.Response{}, err
		}
		comments, err := store.Comments(ctx, id)
		if err != nil {
			return hxpage.Response{}, err
		}
		return hxpage.JSON(map[string]any{"article": a, "comments": comments}), nil
	})

	p.Handle("GET /healthz", func(ctx context.Context, env hxpage.Env) (hxpage.Response, error) {
		return hxpage.Nothing().Status(http.StatusNoContent), nil
	})
}

// Timing logs how long each handler took to build its response. Widget
// resolution happens after the handler returns and is traced separately.
func Timing() hxpage.Middleware {
	return func(next hxpage.Handler) hxpage.Handler {
		return func(ctx context.Context, env hxpage.Env) (hxpage.Response, error) {
			start := time.Now()
			resp, err := next(ctx, env)
			hxpage.LoggerFromContext(ctx).Debug("handler finished",
				zap.String("mode", string(resp.Mode())),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
			return resp, err
		}
	}
}
