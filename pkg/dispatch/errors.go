package dispatch

import (
	"errors"
	"fmt"

	"github.com/wscomms-dev/wscomms/pkg/protocol"
)

var (
	// ErrUnknownCommand is returned when no operation is registered under a name.
	ErrUnknownCommand = errors.New("dispatch: unknown command")

	// ErrArgumentCoercion is wrapped by every CoercionError.
	ErrArgumentCoercion = errors.New("dispatch: argument coercion failed")

	// ErrDuplicateOperation is returned when a name is registered twice.
	ErrDuplicateOperation = errors.New("dispatch: duplicate operation")

	// ErrEmptyName is returned when registering an operation without a name.
	ErrEmptyName = errors.New("dispatch: empty operation name")

	// ErrNilInvoke is returned when registering an operation without a body.
	ErrNilInvoke = errors.New("dispatch: operation has no invoke function")
)

// CoercionError reports an argument that could not be converted to the
// declared parameter type.
type CoercionError struct {
	Index int
	Param string        // Declared Go type
	Kind  protocol.Kind // Kind of the supplied value
	Err   error
}

// Error returns the error message.
func (e *CoercionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dispatch: argument %d: cannot convert %s to %s: %v", e.Index, e.Kind, e.Param, e.Err)
	}
	return fmt.Sprintf("dispatch: argument %d: cannot convert %s to %s", e.Index, e.Kind, e.Param)
}

// Unwrap returns ErrArgumentCoercion so callers can match with errors.Is,
// along with the underlying cause.
func (e *CoercionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrArgumentCoercion}
	}
	return []error{ErrArgumentCoercion, e.Err}
}

// errMissingArgument is the cause recorded when fewer arguments than
// parameters were supplied.
var errMissingArgument = errors.New("missing argument")

// OperationError wraps a failure raised by an operation, either a returned
// error or a recovered panic.
type OperationError struct {
	Name  string
	GUID  string
	Err   error
	Panic any
	Stack []byte
}

// Error returns the error message.
func (e *OperationError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("dispatch: operation %s panicked: %v", e.Name, e.Panic)
	}
	return fmt.Sprintf("dispatch: operation %s: %v", e.Name, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *OperationError) Unwrap() error {
	return e.Err
}

// IsPanic reports whether the operation panicked.
func (e *OperationError) IsPanic() bool {
	return e.Panic != nil
}
