package protocol

import (
	"encoding/json"
	"fmt"
)

// Encode serializes an envelope to its wire text.
func Encode(e *Envelope) ([]byte, error) {
	if e == nil {
		return nil, ErrNilEnvelope
	}
	if e.Name == "" {
		return nil, ErrEmptyName
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %q: %w", e.Name, err)
	}
	return b, nil
}

// MustEncode is like Encode but panics on error.
func MustEncode(e *Envelope) []byte {
	b, err := Encode(e)
	if err != nil {
		panic(err)
	}
	return b
}
