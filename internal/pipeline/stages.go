package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"binancex/pkg/core"
)

// Admitter decides whether a request fits the local rate budgets.
type Admitter interface {
	Admit(ctx context.Context, meta core.Meta) bool
}

// Authorizer rewrites a request with credentials and signature.
type Authorizer interface {
	Authorize(req core.Request) (core.Request, error)
}

// Breaker guards the transport against a failing exchange.
type Breaker interface {
	Allow() error
	Record(err error)
}

type result struct {
	resp *core.Response
	err  error
}

// Timeout bounds the whole downstream chain by d. A zero d disables the stage.
// On expiry the in-flight call is abandoned; deductions already made are kept.
func Timeout(d time.Duration) Middleware {
	return func(next Handler) Handler {
		if d <= 0 {
			return next
		}
		return HandlerFunc(func(ctx context.Context, req core.Request) (*core.Response, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			done := make(chan result, 1)
			go func() {
				resp, err := next.Do(ctx, req)
				done <- result{resp: resp, err: err}
			}()

			select {
			case r := <-done:
				return r.resp, r.err
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return nil, core.NewTimeoutError(fmt.Sprintf("%s did not finish within %s", req, d), ctx.Err())
				}
				return nil, ctx.Err()
			}
		})
	}
}

// RateLimit rejects requests the admitter denies without calling next.
// The weight and dimensions are cleared before forwarding.
func RateLimit(limiter Admitter) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req core.Request) (*core.Response, error) {
			if !limiter.Admit(ctx, req.Meta) {
				return nil, core.NewRateLimitError(fmt.Sprintf("%s exceeds local rate budget (weight %d)", req, req.Meta.Weight))
			}
			req.Meta.Weight = 0
			req.Meta.Dimensions = nil
			return next.Do(ctx, req)
		})
	}
}

// Authorize attaches credentials and signatures.
func Authorize(a Authorizer) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req core.Request) (*core.Response, error) {
			signed, err := a.Authorize(req)
			if err != nil {
				return nil, err
			}
			return next.Do(ctx, signed)
		})
	}
}

// Guard consults b before each call and reports the outcome afterwards.
func Guard(b Breaker) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req core.Request) (*core.Response, error) {
			if err := b.Allow(); err != nil {
				return nil, core.NewConnectivityError(req.String(), err).WithCode(core.ErrCodeCircuitBreaker)
			}
			resp, err := next.Do(ctx, req)
			b.Record(err)
			return resp, err
		})
	}
}

// Observe calls fn with the outcome of every call. It is used for key rotation and metrics.
func Observe(fn func(ctx context.Context, req core.Request, resp *core.Response, err error, elapsed time.Duration)) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req core.Request) (*core.Response, error) {
			start := time.Now()
			resp, err := next.Do(ctx, req)
			fn(ctx, req, resp, err, time.Since(start))
			return resp, err
		})
	}
}
