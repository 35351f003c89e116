package hxpage

import (
	"context"
	"fmt"
	"sync"

	"github.com/pthm/hxpage/lib/encoding"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Seed is a top-level widget to resolve. Def takes precedence over Widget;
// a Widget name is looked up in the registry.
type Seed struct {
	Slot   string
	Widget string
	Def    Definition
}

// Scheduler resolves widget trees level by level.
//
// Every node on the current level is fetched concurrently, and no node
// renders until the whole level has fetched. Renders then run concurrently,
// and the children they declare form the next level. A page therefore costs
// roughly depth × slowest-sibling-per-level, not the sum of its widgets.
//
// Node failures (fetch, render, unknown child, depth limit) are isolated:
// the node gets an error fragment and everything else continues.
type Scheduler struct {
	registry *Registry
	cache    *Cache
	cfg      Config
	fetcher  FetchExecutor
	renderer ViewRenderer
	logger   *zap.Logger
	tracer   trace.Tracer
	onError  func(ctx context.Context, err *WidgetError)
}

// options collects the settings shared by NewScheduler and NewPipeline.
type options struct {
	fetcher  FetchExecutor
	renderer ViewRenderer
	logger   *zap.Logger
	onError  func(ctx context.Context, err *WidgetError)
	cache    *Cache
}

// Option configures a Scheduler or a Pipeline.
type Option func(*options)

// WithFetchExecutor replaces the default fetch executor.
func WithFetchExecutor(f FetchExecutor) Option {
	return func(o *options) { o.fetcher = f }
}

// WithViewRenderer replaces the default view renderer.
func WithViewRenderer(r ViewRenderer) Option {
	return func(o *options) { o.renderer = r }
}

// WithLogger sets the logger used for widget failures and level progress.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithWidgetErrorHook is called once for every node-local failure.
func WithWidgetErrorHook(fn func(ctx context.Context, err *WidgetError)) Option {
	return func(o *options) { o.onError = fn }
}

// WithCache makes a pipeline use c instead of creating its own, so that
// several pipelines can share rendered fragments. NewScheduler takes its
// cache as an argument and ignores this option.
func WithCache(c *Cache) Option {
	return func(o *options) { o.cache = c }
}

func buildOptions(cfg Config, opts []Option) options {
	o := options{
		fetcher:  newExecutor(cfg.FetchTimeout),
		renderer: newRenderer(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewScheduler creates a scheduler. A nil cache disables caching.
func NewScheduler(reg *Registry, cache *Cache, cfg Config, opts ...Option) *Scheduler {
	o := buildOptions(cfg, opts)
	return &Scheduler{
		registry: reg,
		cache:    cache,
		cfg:      cfg,
		fetcher:  o.fetcher,
		renderer: o.renderer,
		logger:   o.logger,
		tracer:   otel.Tracer(tracerName),
		onError:  o.onError,
	}
}

// pass holds the state shared by all nodes of one render pass.
type pass struct {
	fetches sync.Map // key -> *fetchCall
	renders sync.Map // key -> *renderCall

	mu       sync.Mutex
	failures []*WidgetError
}

type fetchCall struct {
	once sync.Once
	data any
	err  error
}

type renderCall struct {
	once sync.Once
	frag Fragment
	err  error
}

func (p *pass) addFailure(err *WidgetError) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = append(p.failures, err)
}

// Resolve fetches, renders and assembles the widget tree rooted at seeds.
//
// It returns an error only when ctx is done; widget failures are reported
// through Tree.Failures. Entries already stored in the cache stay valid after
// a cancelled pass.
func (s *Scheduler) Resolve(ctx context.Context, env Env, seeds []Seed) (*Tree, error) {
	ctx, span := s.tracer.Start(ctx, "scheduler.resolve",
		trace.WithAttributes(attribute.Int("widget.seeds", len(seeds))))
	defer span.End()

	p := &pass{}
	roots := make([]*Node, 0, len(seeds))
	seen := make(map[string]bool, len(seeds))
	for _, sd := range seeds {
		if seen[sd.Slot] {
			continue
		}
		seen[sd.Slot] = true

		def, name := sd.Def, sd.Widget
		if def == nil {
			def, _ = s.registry.Widget(name)
		} else if name == "" {
			name = def.Name()
		}
		n := newNode(sd.Slot, name, def, env, nil)
		roots = append(roots, n)
		if def == nil {
			s.failNode(ctx, p, n, PhaseFetch, fmt.Errorf("%w: %q", ErrUnknownWidget, name))
		}
	}

	frontier := roots
	levels := 0
	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		levels++
		s.runLevel(ctx, p, levels, frontier)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frontier = s.discover(ctx, p, frontier)
	}

	tree := &Tree{
		roots:    roots,
		html:     make(map[string]string, len(roots)),
		levels:   levels,
		failures: p.failures,
	}
	for _, n := range roots {
		tree.html[n.Slot] = assemble(n)
	}
	span.SetAttributes(
		attribute.Int("widget.levels", levels),
		attribute.Int("widget.failures", len(p.failures)),
	)
	return tree, nil
}

// runLevel fetches every unresolved node of the level, waits for all of
// them, then renders. The wait between the two phases is the level barrier.
func (s *Scheduler) runLevel(ctx context.Context, p *pass, level int, frontier []*Node) {
	ctx, span := s.tracer.Start(ctx, "scheduler.level",
		trace.WithAttributes(
			attribute.Int("widget.level", level),
			attribute.Int("widget.nodes", len(frontier)),
		))
	defer span.End()

	loggerFrom(ctx, s.logger).Debug("resolving level",
		zap.Int("level", level),
		zap.Int("nodes", len(frontier)))

	s.forEach(frontier, func(n *Node) { s.fetchNode(ctx, p, n) })
	if ctx.Err() != nil {
		return
	}
	s.forEach(frontier, func(n *Node) { s.renderNode(ctx, p, n) })
}

// forEach runs fn for every unresolved node concurrently and waits.
func (s *Scheduler) forEach(nodes []*Node, fn func(n *Node)) {
	var g errgroup.Group
	if s.cfg.MaxConcurrency > 0 {
		g.SetLimit(s.cfg.MaxConcurrency)
	}
	for _, n := range nodes {
		if n.resolved() {
			continue
		}
		g.Go(func() error {
			fn(n)
			return nil
		})
	}
	_ = g.Wait()
}

// prepare computes the node's pass key and whether it may use the cache.
// A fingerprint failure leaves the node keyless: no cache and no sharing.
func (s *Scheduler) prepare(ctx context.Context, n *Node) {
	policy := n.def.CachePolicy()

	var input any
	var err error
	switch {
	case policy.Key != nil:
		input, err = policy.Key(n.env)
	case len(policy.Inputs) > 0:
		input = n.env.subset(policy.Inputs)
	default:
		input = n.env.values
	}

	var fp string
	if err == nil {
		fp, err = encoding.Fingerprint(input)
	}
	if err != nil {
		loggerFrom(ctx, s.logger).Debug("widget not fingerprintable, caching skipped",
			zap.String("widget", n.Widget),
			zap.String("path", n.Path),
			zap.Error(err))
		return
	}

	n.mu.Lock()
	n.key = n.Widget + "@" + fp
	n.cacheable = s.cache != nil && policy.Enabled && s.cfg.CacheEnabled(n.Widget)
	n.mu.Unlock()
}

func (s *Scheduler) fetchNode(ctx context.Context, p *pass, n *Node) {
	s.prepare(ctx, n)
	key, cacheable := n.cacheKey()

	if cacheable {
		if f, ok := s.cache.Get(key); ok {
			n.setFragment(f, true)
			return
		}
	}

	var data any
	var err error
	if key != "" {
		v, _ := p.fetches.LoadOrStore(key, &fetchCall{})
		call := v.(*fetchCall)
		call.once.Do(func() {
			call.data, call.err = s.fetcher.Execute(ctx, n.def, n.env)
		})
		data, err = call.data, call.err
	} else {
		data, err = s.fetcher.Execute(ctx, n.def, n.env)
	}

	if err != nil {
		if ctx.Err() != nil {
			// The pass is abandoned; Resolve reports ctx.Err().
			return
		}
		s.failNode(ctx, p, n, PhaseFetch, err)
		return
	}
	n.setData(data)
}

func (s *Scheduler) renderNode(ctx context.Context, p *pass, n *Node) {
	key, cacheable := n.cacheKey()
	data := n.Data()
	renderCtx := ctx
	if cacheable {
		// The flight is shared with other requests; this caller going away
		// must not fail it for them.
		renderCtx = context.WithoutCancel(ctx)
	}
	compute := func() (Fragment, error) {
		return s.renderer.Render(renderCtx, n.def, data)
	}

	var frag Fragment
	var err error
	switch {
	case cacheable:
		frag, _, err = s.cache.GetOrCompute(key, compute)
	case key != "":
		v, _ := p.renders.LoadOrStore(key, &renderCall{})
		call := v.(*renderCall)
		call.once.Do(func() {
			call.frag, call.err = compute()
		})
		frag, err = call.frag, call.err
	default:
		frag, err = compute()
	}

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.failNode(ctx, p, n, PhaseRender, err)
		return
	}
	n.setFragment(frag, false)
}

// discover instantiates the children declared by the frontier's fragments
// and returns those that still need fetching.
func (s *Scheduler) discover(ctx context.Context, p *pass, frontier []*Node) []*Node {
	var next []*Node
	for _, n := range frontier {
		if n.failed() {
			continue
		}
		refs := n.Fragment().Children()
		if len(refs) == 0 {
			continue
		}

		children := make([]*Node, 0, len(refs))
		for _, ref := range refs {
			def, ok := s.registry.Widget(ref.Widget)
			child := newNode(ref.Slot, ref.Widget, def, n.env.Merge(ref.Values), n)
			children = append(children, child)

			switch {
			case !ok:
				s.failNode(ctx, p, child, PhaseFetch, fmt.Errorf("%w: %q", ErrUnknownWidget, ref.Widget))
			case s.cfg.MaxDepth > 0 && child.Depth >= s.cfg.MaxDepth:
				s.failNode(ctx, p, child, PhaseFetch, fmt.Errorf("%w: %d", ErrMaxDepth, s.cfg.MaxDepth))
			default:
				next = append(next, child)
			}
		}
		n.setChildren(children)
	}
	return next
}

func (s *Scheduler) failNode(ctx context.Context, p *pass, n *Node, phase WidgetPhase, err error) {
	werr := &WidgetError{Widget: n.Widget, Path: n.Path, Phase: phase, Err: err}
	n.fail(werr, ErrorFragment(n.Widget, err, s.cfg.ShowErrors))
	p.addFailure(werr)

	loggerFrom(ctx, s.logger).Warn("widget failed",
		zap.String("widget", n.Widget),
		zap.String("path", n.Path),
		zap.String("phase", string(phase)),
		zap.Error(err))

	if s.onError != nil {
		s.onError(ctx, werr)
	}
}

// assemble substitutes the node's children into its insertion points,
// bottom-up, and returns the finished markup.
func assemble(n *Node) string {
	frag := n.Fragment()
	children := n.Children()
	if len(children) == 0 {
		return fillSlots(frag.HTML(), func(string) (string, bool) { return "", false }, nil)
	}

	bySlot := make(map[string]*Node, len(children))
	for _, c := range children {
		bySlot[c.Slot] = c
	}
	return fillSlots(frag.HTML(), func(name string) (string, bool) {
		c, ok := bySlot[name]
		if !ok {
			return "", false
		}
		return assemble(c), true
	}, nil)
}
