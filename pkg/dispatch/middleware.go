package dispatch

import "context"

// Call is a command whose arguments have been coerced.
type Call struct {
	Name  string
	GUID  string
	Label string // Label of the table handling the call
	Args  []any
}

// Handler executes a call.
type Handler func(ctx context.Context, call *Call) (any, error)

// Middleware wraps a Handler.
type Middleware func(next Handler) Handler

// Chain composes middleware so that mw[0] runs first.
func Chain(mw ...Middleware) Middleware {
	return func(next Handler) Handler {
		for i := len(mw) - 1; i >= 0; i-- {
			if mw[i] != nil {
				next = mw[i](next)
			}
		}
		return next
	}
}
