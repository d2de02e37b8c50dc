package protocol

import (
	"encoding/json"
	"fmt"
)

// wireEnvelope distinguishes a missing name from an empty one.
type wireEnvelope struct {
	Name      *string `json:"name"`
	Arguments []Value `json:"arguments"`
	GUID      string  `json:"guid"`
}

// Decode parses wire text into an Envelope. It fails with ErrMalformedEnvelope
// when the text is not a JSON object or carries no name; argument types are
// not checked here.
func Decode(data []byte) (*Envelope, error) {
	if err := checkDepth(data, MaxArgumentDepth); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}

	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	if w.Name == nil || *w.Name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrMalformedEnvelope)
	}

	return &Envelope{
		Name:      *w.Name,
		Arguments: w.Arguments,
		GUID:      w.GUID,
	}, nil
}
