package hxpage

import (
	"sync"
)

// NodeState is where a node is in its fetch/render lifecycle.
type NodeState int32

const (
	NodePending NodeState = iota
	NodeFetched
	NodeRendered
	NodeFailed
)

func (s NodeState) String() string {
	switch s {
	case NodePending:
		return "pending"
	case NodeFetched:
		return "fetched"
	case NodeRendered:
		return "rendered"
	case NodeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Node is one instantiation of a widget within a single render pass.
//
// Ownership is top-down: a parent holds its children, and the parent pointer
// is only a back reference for paths and error reporting. Data and Fragment
// are single-assignment; children are known only after the node's own fetch
// and view have completed.
type Node struct {
	Slot   string
	Widget string
	Path   string
	Depth  int

	def    Definition
	env    Env
	parent *Node

	mu        sync.Mutex
	state     NodeState
	data      any
	dataSet   bool
	frag      Fragment
	fragSet   bool
	err       error
	cached    bool
	key       string
	cacheable bool
	children  []*Node
}

func newNode(slot, widget string, def Definition, env Env, parent *Node) *Node {
	n := &Node{
		Slot:   slot,
		Widget: widget,
		Path:   slot,
		def:    def,
		env:    env,
		parent: parent,
	}
	if parent != nil {
		n.Path = parent.Path + "/" + slot
		n.Depth = parent.Depth + 1
	}
	return n
}

// Parent returns the node's parent, or nil for a root.
func (n *Node) Parent() *Node {
	return n.parent
}

// Env returns the environment the node fetched with.
func (n *Node) Env() Env {
	return n.env
}

// State returns the node's lifecycle state.
func (n *Node) State() NodeState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Data returns the fetched data. It is nil for cached or failed nodes.
func (n *Node) Data() any {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.data
}

// Fragment returns the node's rendered fragment.
func (n *Node) Fragment() Fragment {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.frag
}

// Err returns the node's failure, if any.
func (n *Node) Err() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.err
}

// Cached reports whether the fragment was served from the cache without
// fetching.
func (n *Node) Cached() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cached
}

// Children returns the child nodes discovered from the fragment.
func (n *Node) Children() []*Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// setData records the fetched data. Later calls are ignored.
func (n *Node) setData(data any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.dataSet {
		return
	}
	n.data, n.dataSet = data, true
	n.state = NodeFetched
}

// setFragment records the rendered fragment. Later calls are ignored.
func (n *Node) setFragment(f Fragment, cached bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fragSet {
		return
	}
	n.frag, n.fragSet = f, true
	n.cached = cached
	if n.err == nil {
		n.state = NodeRendered
	}
}

// fail marks the node failed with err and gives it the error fragment.
func (n *Node) fail(err error, frag Fragment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return
	}
	n.err = err
	n.state = NodeFailed
	if !n.fragSet {
		n.frag, n.fragSet = frag, true
	}
}

// cacheKey returns the pass key ("" when the node could not be
// fingerprinted) and whether the shared cache may be used.
func (n *Node) cacheKey() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.key, n.cacheable
}

func (n *Node) resolved() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.fragSet
}

func (n *Node) failed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.err != nil
}

func (n *Node) setChildren(children []*Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.children = children
}

// Tree is the resolved widget tree of one render pass.
type Tree struct {
	roots    []*Node
	html     map[string]string
	levels   int
	failures []*WidgetError
}

// Roots returns the top-level nodes in seed order.
func (t *Tree) Roots() []*Node {
	out := make([]*Node, len(t.roots))
	copy(out, t.roots)
	return out
}

// Root returns the top-level node for slot.
func (t *Tree) Root(slot string) (*Node, bool) {
	for _, n := range t.roots {
		if n.Slot == slot {
			return n, true
		}
	}
	return nil, false
}

// HTML returns the assembled markup of the root in slot.
func (t *Tree) HTML(slot string) (string, bool) {
	s, ok := t.html[slot]
	return s, ok
}

// Slots returns the assembled markup of every root, keyed by slot.
func (t *Tree) Slots() map[string]string {
	out := make(map[string]string, len(t.html))
	for k, v := range t.html {
		out[k] = v
	}
	return out
}

// Levels returns the number of scheduling levels the pass took.
func (t *Tree) Levels() int {
	return t.levels
}

// Failures returns every node-local failure of the pass.
func (t *Tree) Failures() []*WidgetError {
	out := make([]*WidgetError, len(t.failures))
	copy(out, t.failures)
	return out
}

// Walk visits every node depth-first, parents before children.
func (t *Tree) Walk(fn func(n *Node)) {
	var visit func(n *Node)
	visit = func(n *Node) {
		fn(n)
		for _, c := range n.Children() {
			visit(c)
		}
	}
	for _, r := range t.roots {
		visit(r)
	}
}
