// Package pipeline composes the stages a REST call passes through before it reaches the transport.
//
// The standard order, outermost first, is Timeout, RateLimit, Authorize, then the transport.
// Each stage receives the request by value and may short-circuit with an error.
package pipeline

import (
	"context"

	"binancex/pkg/core"
)

// Handler sends a request and returns the raw response.
type Handler interface {
	Do(ctx context.Context, req core.Request) (*core.Response, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req core.Request) (*core.Response, error)

func (f HandlerFunc) Do(ctx context.Context, req core.Request) (*core.Response, error) {
	return f(ctx, req)
}

// Middleware wraps a Handler with one stage.
type Middleware func(Handler) Handler

// Chain wraps h so that mws[0] runs first. Nil middlewares are skipped.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		h = mws[i](h)
	}
	return h
}
