package correlation

import (
	"context"

	"github.com/wscomms-dev/wscomms/pkg/protocol"
)

type outcome struct {
	result protocol.Value
	err    error
}

// Await is a continuation that can be waited on.
type Await struct {
	ch chan outcome
}

// NewAwait creates an Await. Register its Continuation, then call Wait.
func NewAwait() *Await {
	return &Await{ch: make(chan outcome, 1)}
}

// Continuation returns the function to register with the Registry.
func (a *Await) Continuation() Continuation {
	return func(result protocol.Value, err error) {
		a.ch <- outcome{result: result, err: err}
	}
}

// Wait blocks until the call completes or ctx is done.
func (a *Await) Wait(ctx context.Context) (protocol.Value, error) {
	select {
	case o := <-a.ch:
		return o.result, o.err
	case <-ctx.Done():
		return protocol.Null, ctx.Err()
	}
}
