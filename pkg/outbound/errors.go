package outbound

import "errors"

var (
	// ErrTransportWrite is returned by the sender when a write fails. The
	// connection should be treated as broken.
	ErrTransportWrite = errors.New("outbound: transport write failed")

	// ErrSenderStarted is returned when Start is called twice.
	ErrSenderStarted = errors.New("outbound: sender already started")
)
