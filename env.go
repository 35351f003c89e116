package hxpage

import (
	"maps"
	"net/http"
	"slices"
)

// Request-derived environment keys.
const (
	EnvMethod = "method"
	EnvPath   = "path"
	EnvParams = "params"
	EnvQuery  = "query"
)

// Env is the read-only environment a handler and its widgets see.
//
// An Env is never mutated after construction. Middleware and parent widgets
// that need to add data derive a new Env with With or Merge; the receiver
// and every other holder of it keep seeing the original values. This is what
// lets sibling widgets fetch concurrently from the same Env.
type Env struct {
	values map[string]any
}

// NewEnv creates an environment holding a copy of values.
func NewEnv(values map[string]any) Env {
	return Env{values: maps.Clone(values)}
}

// EnvFromRequest builds the request-derived environment. params holds the
// path wildcards matched by the route.
func EnvFromRequest(r *http.Request, params map[string]string) Env {
	if params == nil {
		params = map[string]string{}
	}
	query := map[string][]string(r.URL.Query())
	return NewEnv(map[string]any{
		EnvMethod: r.Method,
		EnvPath:   r.URL.Path,
		EnvParams: params,
		EnvQuery:  query,
	})
}

// Get returns the value stored under key.
func (e Env) Get(key string) (any, bool) {
	v, ok := e.values[key]
	return v, ok
}

// String returns the value under key if it is a string, or "".
func (e Env) String(key string) string {
	s, _ := e.values[key].(string)
	return s
}

// Param returns a path parameter captured by the route.
func (e Env) Param(name string) string {
	params, _ := e.values[EnvParams].(map[string]string)
	return params[name]
}

// Query returns the first query value for name.
func (e Env) Query(name string) string {
	query, _ := e.values[EnvQuery].(map[string][]string)
	if vs := query[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// With returns a derived environment with key set to value.
func (e Env) With(key string, value any) Env {
	next := make(map[string]any, len(e.values)+1)
	maps.Copy(next, e.values)
	next[key] = value
	return Env{values: next}
}

// Merge returns a derived environment with all of values layered on top.
func (e Env) Merge(values map[string]any) Env {
	if len(values) == 0 {
		return e
	}
	next := make(map[string]any, len(e.values)+len(values))
	maps.Copy(next, e.values)
	maps.Copy(next, values)
	return Env{values: next}
}

// Keys returns the sorted environment keys.
func (e Env) Keys() []string {
	return slices.Sorted(maps.Keys(e.values))
}

// Len returns the number of keys.
func (e Env) Len() int {
	return len(e.values)
}

// Map returns a copy of the environment's values.
func (e Env) Map() map[string]any {
	return maps.Clone(e.values)
}

// subset returns the values for keys, skipping absent ones. Used to build
// fetch fingerprints from a widget's declared inputs.
func (e Env) subset(keys []string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := e.values[k]; ok {
			out[k] = v
		}
	}
	return out
}
