package server

import (
	"errors"
	"fmt"
)

// Sentinel errors for route and server conditions.
var (
	// ErrRouteExists is returned when a prefix is already mounted.
	ErrRouteExists = errors.New("server: route already exists")

	// ErrInvalidPrefix is returned for a route prefix that cannot be
	// canonicalized.
	ErrInvalidPrefix = errors.New("server: invalid route prefix")

	// ErrNilProvider is returned when a route is added without a provider.
	ErrNilProvider = errors.New("server: nil provider")

	// ErrServerClosed is returned when adding routes or accepting
	// connections after shutdown began.
	ErrServerClosed = errors.New("server: closed")

	// ErrRouteClosed is returned when a connection arrives on a closed route.
	ErrRouteClosed = errors.New("server: route closed")

	// ErrNotLoopback is returned when a non-loopback client connects to a
	// loopback-only server.
	ErrNotLoopback = errors.New("server: remote address is not loopback")
)

// RouteError wraps an error with route context.
type RouteError struct {
	Prefix string
	Op     string // Operation that failed
	Err    error  // Underlying error
}

// Error returns the error message with route context.
func (e *RouteError) Error() string {
	if e.Prefix == "" {
		return fmt.Sprintf("server: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("server: route %s: %s: %v", e.Prefix, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *RouteError) Unwrap() error {
	return e.Err
}
