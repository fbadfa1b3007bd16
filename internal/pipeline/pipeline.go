// Package pipeline defines the request-processing primitives: an
// immutable request/response snapshot pair and composable middleware
// wrapped around a terminal handler.
package pipeline

import "context"

// Handler processes one request and produces at most one response.
// A nil *Response means the handler declined to produce one; callers
// must pass that nil through unchanged rather than fabricating a
// replacement. A non-nil error is a raised failure owned by one of the
// enclosing classification layers; returning it unchanged re-raises it
// to the next outer layer.
type Handler func(ctx context.Context, req *Request) (*Response, error)

// Middleware wraps a handler with one cross-cutting behavior and
// returns the wrapped handler.
type Middleware func(next Handler) Handler

// Chain composes middlewares around h. The first middleware is the
// outermost: Chain(h, a, b) behaves as a(b(h)).
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
