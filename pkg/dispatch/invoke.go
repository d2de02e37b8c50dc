package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/wscomms-dev/wscomms/pkg/protocol"
)

// Invoke executes the command in env and returns the reply to send.
//
// A nil reply means nothing should be sent: env was nil or named an unknown
// command (reported as ErrUnknownCommand). When the reply is "__error" the
// returned error describes the failure for logging. The reply always carries
// env's GUID.
func (t *Table) Invoke(ctx context.Context, env *protocol.Envelope) (*protocol.Envelope, error) {
	if env == nil {
		return nil, nil
	}

	op, ok := t.Resolve(env.Name)
	if !ok {
		if env.Name == protocol.IdentityQuery {
			return protocol.NewResponse(env.GUID, protocol.MustValueOf(t.label)), nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, env.Name)
	}

	args, err := op.bind(env.Arguments)
	if err != nil {
		return protocol.NewError(env.GUID), err
	}

	call := &Call{
		Name:  env.Name,
		GUID:  env.GUID,
		Label: t.label,
		Args:  args,
	}

	t.mu.RLock()
	h := Chain(t.middleware...)(invokeHandler(op))
	t.mu.RUnlock()

	result, err := run(ctx, h, call)
	if err != nil {
		return protocol.NewError(env.GUID), err
	}
	if op.Void {
		result = nil
	}

	v, err := protocol.ValueOf(result)
	if err != nil {
		return protocol.NewError(env.GUID), &OperationError{Name: env.Name, GUID: env.GUID, Err: err}
	}
	return protocol.NewResponse(env.GUID, v), nil
}

// run calls h, converting a panic anywhere in the middleware chain into
// *OperationError.
func run(ctx context.Context, h Handler, call *Call) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &OperationError{
				Name:  call.Name,
				GUID:  call.GUID,
				Panic: r,
				Stack: debug.Stack(),
			}
		}
	}()
	return h(ctx, call)
}

// invokeHandler is the innermost handler: it runs the operation, converting
// returned errors and panics into *OperationError.
func invokeHandler(op Operation) Handler {
	return func(ctx context.Context, call *Call) (result any, err error) {
		defer func() {
			if r := recover(); r != nil {
				result = nil
				err = &OperationError{
					Name:  call.Name,
					GUID:  call.GUID,
					Panic: r,
					Stack: debug.Stack(),
				}
			}
		}()

		result, err = op.Invoke(ctx, call.Args)
		if err != nil {
			return nil, &OperationError{Name: call.Name, GUID: call.GUID, Err: err}
		}
		return result, nil
	}
}
