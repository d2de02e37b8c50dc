package dispatch

import (
	"context"

	"github.com/wscomms-dev/wscomms/pkg/protocol"
)

// Param declares one positional parameter of an operation.
type Param struct {
	// Type is the Go type name, used in error messages.
	Type string

	// Coerce converts the wire value into the parameter's Go value.
	Coerce func(protocol.Value) (any, error)
}

// ParamOf declares a parameter of type T, coerced with Coerce[T].
func ParamOf[T any]() Param {
	return Param{
		Type: typeName[T](),
		Coerce: func(v protocol.Value) (any, error) {
			return Coerce[T](v)
		},
	}
}

// Operation is a named, invocable unit of application logic.
type Operation struct {
	// Params are bound positionally to the envelope's arguments. Extra
	// arguments are ignored; missing ones fail coercion.
	Params []Param

	// Invoke runs the operation with coerced arguments, one per Param.
	Invoke func(ctx context.Context, args []any) (any, error)

	// Void marks operations with no result. Their response carries null.
	Void bool

	raw bool
}

// bind coerces the supplied values against the declared parameters.
func (op Operation) bind(values []protocol.Value) ([]any, error) {
	if op.raw {
		args := make([]any, len(values))
		for i, v := range values {
			args[i] = v
		}
		return args, nil
	}
	args := make([]any, len(op.Params))
	for i, p := range op.Params {
		if i >= len(values) {
			return nil, &CoercionError{Index: i, Param: p.Type, Kind: protocol.KindNull, Err: errMissingArgument}
		}
		v, err := p.Coerce(values[i])
		if err != nil {
			return nil, &CoercionError{Index: i, Param: p.Type, Kind: values[i].Kind(), Err: err}
		}
		args[i] = v
	}
	return args, nil
}

// arg returns args[i] as T, or the zero T when it holds nil.
func arg[T any](args []any, i int) T {
	v, _ := args[i].(T)
	return v
}

// Raw builds an operation that receives the uncoerced argument values.
// Every supplied argument is passed through.
func Raw(fn func(ctx context.Context, args []protocol.Value) (any, error)) Operation {
	return Operation{
		Invoke: func(ctx context.Context, args []any) (any, error) {
			values := make([]protocol.Value, 0, len(args))
			for _, a := range args {
				if v, ok := a.(protocol.Value); ok {
					values = append(values, v)
				}
			}
			return fn(ctx, values)
		},
		raw: true,
	}
}

// Func0 builds an operation with no parameters that returns a value.
func Func0[R any](fn func(ctx context.Context) (R, error)) Operation {
	return Operation{
		Invoke: func(ctx context.Context, _ []any) (any, error) {
			return fn(ctx)
		},
	}
}

// Func1 builds a one-parameter operation that returns a value.
func Func1[A, R any](fn func(ctx context.Context, a A) (R, error)) Operation {
	return Operation{
		Params: []Param{ParamOf[A]()},
		Invoke: func(ctx context.Context, args []any) (any, error) {
			return fn(ctx, arg[A](args, 0))
		},
	}
}

// Func2 builds a two-parameter operation that returns a value.
func Func2[A, B, R any](fn func(ctx context.Context, a A, b B) (R, error)) Operation {
	return Operation{
		Params: []Param{ParamOf[A](), ParamOf[B]()},
		Invoke: func(ctx context.Context, args []any) (any, error) {
			return fn(ctx, arg[A](args, 0), arg[B](args, 1))
		},
	}
}

// Func3 builds a three-parameter operation that returns a value.
func Func3[A, B, C, R any](fn func(ctx context.Context, a A, b B, c C) (R, error)) Operation {
	return Operation{
		Params: []Param{ParamOf[A](), ParamOf[B](), ParamOf[C]()},
		Invoke: func(ctx context.Context, args []any) (any, error) {
			return fn(ctx, arg[A](args, 0), arg[B](args, 1), arg[C](args, 2))
		},
	}
}

// Action0 builds an operation with no parameters and no result.
func Action0(fn func(ctx context.Context) error) Operation {
	return Operation{
		Invoke: func(ctx context.Context, _ []any) (any, error) {
			return nil, fn(ctx)
		},
		Void: true,
	}
}

// Action1 builds a one-parameter operation with no result.
func Action1[A any](fn func(ctx context.Context, a A) error) Operation {
	return Operation{
		Params: []Param{ParamOf[A]()},
		Invoke: func(ctx context.Context, args []any) (any, error) {
			return nil, fn(ctx, arg[A](args, 0))
		},
		Void: true,
	}
}

// Action2 builds a two-parameter operation with no result.
func Action2[A, B any](fn func(ctx context.Context, a A, b B) error) Operation {
	return Operation{
		Params: []Param{ParamOf[A](), ParamOf[B]()},
		Invoke: func(ctx context.Context, args []any) (any, error) {
			return nil, fn(ctx, arg[A](args, 0), arg[B](args, 1))
		},
		Void: true,
	}
}

// Action3 builds a three-parameter operation with no result.
func Action3[A, B, C any](fn func(ctx context.Context, a A, b B, c C) error) Operation {
	return Operation{
		Params: []Param{ParamOf[A](), ParamOf[B](), ParamOf[C]()},
		Invoke: func(ctx context.Context, args []any) (any, error) {
			return nil, fn(ctx, arg[A](args, 0), arg[B](args, 1), arg[C](args, 2))
		},
		Void: true,
	}
}
