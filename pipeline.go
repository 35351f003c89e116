package hxpage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/pthm/hxpage/lib/encoding"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Phase is a step of the response pipeline.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDispatching
	PhaseAwaitingWidgets
	PhaseComposing
	PhaseSerializing
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDispatching:
		return "dispatching"
	case PhaseAwaitingWidgets:
		return "awaiting_widgets"
	case PhaseComposing:
		return "composing"
	case PhaseSerializing:
		return "serializing"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Output is the finished response of one pipeline run.
type Output struct {
	Status      int
	Header      http.Header
	ContentType string
	Body        []byte

	// Tree is the resolved widget tree; nil unless the response was html.
	Tree *Tree

	// Phases lists the pipeline phases in the order they were entered.
	Phases []Phase
}

func (o *Output) enter(p Phase) {
	o.Phases = append(o.Phases, p)
}

// Pipeline turns handler responses into HTTP responses.
//
// For html responses it resolves the widget tree with the Scheduler and
// composes the result into the layout. json responses are serialized
// directly and never touch the widget engine; nothing responses have an
// empty body.
//
//	reg := hxpage.NewRegistry()
//	reg.Add(articleWidget, commentsWidget)
//	reg.AddLayout(hxpage.NewLayout("main", mainLayout()).Default("header", "site-header"))
//
//	p := hxpage.NewPipeline(reg, cfg, hxpage.WithLogger(logger))
//	p.Handle("GET /articles/{id}", func(ctx context.Context, env hxpage.Env) (hxpage.Response, error) {
//	    return hxpage.Page("main").Slot("main", hxpage.UseWidget("article")), nil
//	})
//	http.ListenAndServe(":8080", p)
type Pipeline struct {
	registry   *Registry
	cfg        Config
	cache      *Cache
	scheduler  *Scheduler
	composer   *Composer
	serializer encoding.Serializer
	logger     *zap.Logger
	tracer     trace.Tracer
	mux        *http.ServeMux
	middleware []Middleware

	// OnError writes the HTTP response for a failed pipeline run.
	// Customize this to handle errors appropriately for your application.
	OnError func(http.ResponseWriter, *http.Request, error)

	// OnWidgetError is called for every node-local widget failure. The page
	// is still served, with an error fragment in place of the widget.
	OnWidgetError func(ctx context.Context, err *WidgetError)
}

// NewPipeline creates a pipeline over reg. cfg is copied and never
// modified afterwards. It panics if cfg is invalid.
func NewPipeline(reg *Registry, cfg Config, opts ...Option) *Pipeline {
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("hxpage: %v", err))
	}
	serializer, err := encoding.ByName(cfg.Serializer)
	if err != nil {
		panic(fmt.Sprintf("hxpage: %v", err))
	}

	o := buildOptions(cfg, opts)
	cache := o.cache
	if cache == nil && cfg.Cache.Enabled {
		cache = NewCache()
	}

	p := &Pipeline{
		registry:   reg,
		cfg:        cfg,
		cache:      cache,
		composer:   NewComposer(cfg),
		serializer: serializer,
		logger:     o.logger,
		tracer:     otel.Tracer(tracerName),
		mux:        http.NewServeMux(),
	}

	hook := o.onError
	p.scheduler = NewScheduler(reg, cache, cfg,
		WithFetchExecutor(o.fetcher),
		WithViewRenderer(o.renderer),
		WithLogger(o.logger),
		WithWidgetErrorHook(func(ctx context.Context, err *WidgetError) {
			if hook != nil {
				hook(ctx, err)
			}
			if p.OnWidgetError != nil {
				p.OnWidgetError(ctx, err)
			}
		}),
	)

	p.OnError = func(w http.ResponseWriter, r *http.Request, err error) {
		switch {
		case errors.Is(err, context.Canceled):
			// Client went away; nobody is reading.
		case errors.Is(err, context.DeadlineExceeded):
			http.Error(w, "Gateway timeout", http.StatusGatewayTimeout)
		default:
			http.Error(w, "Internal error", http.StatusInternalServerError)
		}
	}

	return p
}

// Cache returns the pipeline's widget cache, or nil if caching is disabled.
func (p *Pipeline) Cache() *Cache {
	return p.cache
}

// Registry returns the registry the pipeline resolves widgets and layouts
// from.
func (p *Pipeline) Registry() *Registry {
	return p.registry
}

// Use appends middleware. Middleware declared later wraps middleware
// declared earlier, so the last one is the outermost.
func (p *Pipeline) Use(mws ...Middleware) {
	p.middleware = append(p.middleware, mws...)
}

// Serve runs h and produces the response.
//
// Widget failures are reported on the tree and never fail Serve. Serve fails
// for handler errors, a *ConfigurationError (unknown render mode, missing
// layout), a *CompositionError when the missing slot policy is fail, and
// cancellation of ctx.
func (p *Pipeline) Serve(ctx context.Context, env Env, h Handler) (out *Output, err error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.serve")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "pipeline failed")
		}
		span.End()
	}()

	out = &Output{Status: http.StatusOK, Header: make(http.Header)}
	out.enter(PhaseIdle)
	out.enter(PhaseDispatching)

	resp, err := Chain(h, p.middleware...)(ctx, env)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("render.mode", string(resp.mode)))

	switch resp.mode {
	case RenderHTML:
		if err := p.serveHTML(ctx, env, resp, out); err != nil {
			return nil, err
		}
	case RenderJSON:
		out.enter(PhaseSerializing)
		body, err := p.serializer.Marshal(resp.value)
		if err != nil {
			return nil, fmt.Errorf("hxpage: serialize response: %w", err)
		}
		out.Body = body
		out.ContentType = p.serializer.ContentType()
	case RenderNothing:
	default:
		return nil, &ConfigurationError{
			Reason: fmt.Sprintf("render mode %q", resp.mode),
			Err:    ErrUnknownRenderMode,
		}
	}

	if resp.status != 0 {
		out.Status = resp.status
	}
	for k, v := range resp.headers {
		out.Header.Set(k, v)
	}
	out.enter(PhaseDone)
	span.SetAttributes(attribute.Int("http.status_code", out.Status))
	return out, nil
}

func (p *Pipeline) serveHTML(ctx context.Context, env Env, resp Response, out *Output) error {
	name := resp.layout
	if name == "" {
		name = p.cfg.DefaultLayout
	}
	if name == "" {
		return &ConfigurationError{Reason: "html response without layout", Err: ErrMissingLayout}
	}
	layout, ok := p.registry.Layout(name)
	if !ok {
		return &ConfigurationError{Reason: fmt.Sprintf("layout %q", name), Err: ErrUnknownLayout}
	}

	doc, err := layout.Render(ctx)
	if err != nil {
		return fmt.Errorf("hxpage: render layout %q: %w", name, err)
	}
	seeds, static, err := layout.seeds(ctx, doc, resp.slots)
	if err != nil {
		return fmt.Errorf("hxpage: render slot content: %w", err)
	}

	target := partialTarget(ctx)
	if target != "" && !containsSlot(doc.Slots, target) {
		target = ""
	}
	if target != "" {
		seeds = onlySlot(seeds, target)
	}

	out.enter(PhaseAwaitingWidgets)
	tree, err := p.scheduler.Resolve(ctx, env, seeds)
	if err != nil {
		return err
	}
	out.Tree = tree

	out.enter(PhaseComposing)
	resolved := mergeSlots(static, tree.Slots())
	out.ContentType = "text/html; charset=utf-8"

	if target != "" {
		html, ok := resolved[target]
		if !ok && p.composer.FailOnMissing {
			return &CompositionError{Layout: name, Slot: target, Err: ErrUnresolvedSlot}
		}
		out.Body = []byte(html)
		return nil
	}

	html, err := p.composer.Compose(doc, resolved)
	if err != nil {
		return err
	}
	out.Body = []byte(html)
	return nil
}

// Handle registers h for pattern on the pipeline's mux. pattern uses
// http.ServeMux syntax; its {name} and {name...} wildcards are available to
// widgets through Env.Param.
func (p *Pipeline) Handle(pattern string, h Handler) {
	names := wildcards(pattern)
	p.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		params := make(map[string]string, len(names))
		for _, n := range names {
			params[n] = r.PathValue(n)
		}
		p.serveHTTP(w, r, h, params)
	})
}

// ServeHTTP dispatches to the handlers registered with Handle.
func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mux.ServeHTTP(w, r)
}

// Handler adapts h to an http.Handler for use with another router. The
// environment carries no path params.
func (p *Pipeline) Handler(h Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.serveHTTP(w, r, h, nil)
	})
}

// ServeRequest runs h for r with the given path params and writes the
// response. Router adapters use it to supply their own params.
func (p *Pipeline) ServeRequest(w http.ResponseWriter, r *http.Request, h Handler, params map[string]string) {
	p.serveHTTP(w, r, h, params)
}

func (p *Pipeline) serveHTTP(w http.ResponseWriter, r *http.Request, h Handler, params map[string]string) {
	reqID := r.Header.Get("X-Request-Id")
	if reqID == "" {
		reqID = uuid.NewString()
	}
	w.Header().Set("X-Request-Id", reqID)

	logger := p.logger.With(
		zap.String("request_id", reqID),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path))
	ctx := ContextWithLogger(r.Context(), logger)
	if p.cfg.PartialRender {
		if target := PartialSlot(r); target != "" {
			ctx = withPartialTarget(ctx, target)
		}
	}

	out, err := p.Serve(ctx, EnvFromRequest(r, params), h)
	if err != nil {
		logger.Error("request failed", zap.Error(err))
		p.OnError(w, r, err)
		return
	}

	for k, vs := range out.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	if out.ContentType != "" && w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", out.ContentType)
	}
	w.WriteHeader(out.Status)
	if len(out.Body) > 0 && r.Method != http.MethodHead {
		if _, err := w.Write(out.Body); err != nil {
			logger.Debug("write response", zap.Error(err))
		}
	}
}

type partialKey struct{}

func withPartialTarget(ctx context.Context, slot string) context.Context {
	return context.WithValue(ctx, partialKey{}, slot)
}

func partialTarget(ctx context.Context) string {
	s, _ := ctx.Value(partialKey{}).(string)
	return s
}

func containsSlot(slots []string, name string) bool {
	for _, s := range slots {
		if s == name {
			return true
		}
	}
	return false
}

func onlySlot(seeds []Seed, slot string) []Seed {
	out := seeds[:0:0]
	for _, s := range seeds {
		if s.Slot == slot {
			out = append(out, s)
		}
	}
	return out
}

// wildcards returns the wildcard names in a ServeMux pattern, skipping the
// {$} end anchor.
func wildcards(pattern string) []string {
	var names []string
	for {
		i := strings.IndexByte(pattern, '{')
		if i < 0 {
			return names
		}
		j := strings.IndexByte(pattern[i:], '}')
		if j < 0 {
			return names
		}
		name := strings.TrimSuffix(pattern[i+1:i+j], "...")
		if name != "$" && name != "" {
			names = append(names, name)
		}
		pattern = pattern[i+j+1:]
	}
}
