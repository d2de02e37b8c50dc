package protocol

import "errors"

var (
	// ErrMalformedEnvelope is returned when a message cannot be decoded into an
	// Envelope: it is not a JSON object or its name is missing.
	ErrMalformedEnvelope = errors.New("protocol: malformed envelope")

	// ErrEmptyName is returned when encoding an envelope without a name.
	ErrEmptyName = errors.New("protocol: envelope name is empty")

	// ErrNilEnvelope is returned when encoding a nil envelope.
	ErrNilEnvelope = errors.New("protocol: nil envelope")

	// ErrInvalidValue is returned when raw bytes are not a valid JSON value.
	ErrInvalidValue = errors.New("protocol: invalid JSON value")

	// ErrMaxDepthExceeded is returned when a message nests deeper than MaxArgumentDepth.
	ErrMaxDepthExceeded = errors.New("protocol: maximum nesting depth exceeded")
)
