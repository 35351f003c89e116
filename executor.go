package hxpage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/pthm/hxpage"

// FetchExecutor runs a widget's fetch step. Failures are returned as-is; the
// scheduler attributes them to the node.
type FetchExecutor interface {
	Execute(ctx context.Context, def Definition, env Env) (any, error)
}

// ViewRenderer turns fetched data into a fragment. Implementations must not
// have side effects: the scheduler caches and reorders renders freely.
type ViewRenderer interface {
	Render(ctx context.Context, def Definition, data any) (Fragment, error)
}

// FetchFunc adapts a function to FetchExecutor.
type FetchFunc func(ctx context.Context, def Definition, env Env) (any, error)

func (f FetchFunc) Execute(ctx context.Context, def Definition, env Env) (any, error) {
	return f(ctx, def, env)
}

// executor is the default FetchExecutor: per-fetch timeout, panic recovery
// and a span per fetch.
type executor struct {
	timeout time.Duration
	tracer  trace.Tracer
}

func newExecutor(timeout time.Duration) *executor {
	return &executor{timeout: timeout, tracer: otel.Tracer(tracerName)}
}

func (e *executor) Execute(ctx context.Context, def Definition, env Env) (data any, err error) {
	ctx, span := e.tracer.Start(ctx, "widget.fetch",
		trace.WithAttributes(attribute.String("widget.name", def.Name())))
	defer span.End()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "fetch failed")
		}
	}()

	return def.Fetch(ctx, env)
}

// renderer is the default ViewRenderer. It renders the templ component into
// a buffer while collecting the children declared with Embed.
type renderer struct {
	tracer trace.Tracer
}

func newRenderer() *renderer {
	return &renderer{tracer: otel.Tracer(tracerName)}
}

func (r *renderer) Render(ctx context.Context, def Definition, data any) (frag Fragment, err error) {
	ctx, span := r.tracer.Start(ctx, "widget.render",
		trace.WithAttributes(attribute.String("widget.name", def.Name())))
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			frag, err = Fragment{}, fmt.Errorf("panic: %v", rec)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "render failed")
		}
	}()

	component, err := def.View(ctx, data)
	if err != nil {
		return Fragment{}, err
	}
	if component == nil {
		return Fragment{}, nil
	}

	ctx, collector := withCollector(ctx)
	var buf bytes.Buffer
	if err := component.Render(ctx, &buf); err != nil {
		return Fragment{}, err
	}
	return Fragment{html: buf.String(), children: collector.children}, nil
}
