package dispatch

import "context"

// Caller is the connection a command arrived on. Operations use it to push
// notifications back to the peer.
type Caller interface {
	ID() string
	Notify(name string, args ...any) error
}

type callerKey struct{}

// WithCaller returns a context carrying c.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the Caller stored in ctx, if any.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}
