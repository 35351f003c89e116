package hxpage

import "context"

// Handler produces a Response from the request environment.
type Handler func(ctx context.Context, env Env) (Response, error)

// Middleware wraps a Handler. A middleware may derive a richer Env for the
// next handler, short-circuit with its own Response, or return an error to
// abort the request.
//
//	func RequireUser(store Sessions) hxpage.Middleware {
//	    return func(next hxpage.Handler) hxpage.Handler {
//	        return func(ctx context.Context, env hxpage.Env) (hxpage.Response, error) {
//	            user, err := store.User(ctx, env)
//	            if err != nil {
//	                return hxpage.Response{}, err
//	            }
//	            return next(ctx, env.With("user", user))
//	        }
//	    }
//	}
type Middleware func(next Handler) Handler

// Chain wraps h with mws. The last middleware in the list is the outermost:
// it runs first on the way in and last on the way out. Chain(h, a, b)
// is b(a(h)).
func Chain(h Handler, mws ...Middleware) Handler {
	for _, mw := range mws {
		if mw != nil {
			h = mw(h)
		}
	}
	return h
}

// WithValue returns a middleware that derives env with key set to the
// value computed from the incoming env.
func WithValue(key string, fn func(ctx context.Context, env Env) (any, error)) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, env Env) (Response, error) {
			v, err := fn(ctx, env)
			if err != nil {
				return Response{}, err
			}
			return next(ctx, env.With(key, v))
		}
	}
}
