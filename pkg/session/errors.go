package session

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionLost is returned when the transport fails or closes, and
	// rejects calls still pending when a session closes.
	ErrConnectionLost = errors.New("session: connection lost")

	// ErrNotOpen is returned when sending on a session that is not open.
	ErrNotOpen = errors.New("session: not open")

	// ErrInvalidState is returned when a lifecycle method is called in the
	// wrong state.
	ErrInvalidState = errors.New("session: invalid state")
)

// Error wraps an error with session context.
type Error struct {
	SessionID string
	Op        string
	Err       error
}

// Error returns the error message with session context.
func (e *Error) Error() string {
	if e.SessionID == "" {
		return fmt.Sprintf("session: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("session %s: %s: %v", e.SessionID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}
