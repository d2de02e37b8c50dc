// Package correlation matches replies to the requests that are waiting for
// them.
package correlation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wscomms-dev/wscomms/pkg/protocol"
)

var (
	// ErrDuplicateID is returned when an id is already pending.
	ErrDuplicateID = errors.New("correlation: duplicate id")

	// ErrEmptyID is returned when registering without an id.
	ErrEmptyID = errors.New("correlation: empty id")

	// ErrRemoteError rejects a call answered with "__error".
	ErrRemoteError = errors.New("correlation: remote reported an error")

	// ErrExpired rejects a call removed by Expire.
	ErrExpired = errors.New("correlation: call expired")
)

// Continuation receives the outcome of a pending call. Exactly one of
// result and err is meaningful.
type Continuation func(result protocol.Value, err error)

// Pending describes one outstanding call.
type Pending struct {
	ID        string
	CreatedAt time.Time
}

type entry struct {
	cont      Continuation
	createdAt time.Time
}

// Registry holds continuations keyed by correlation id. Each continuation
// runs at most once, outside the registry lock.
type Registry struct {
	mu      sync.Mutex
	pending map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		pending: make(map[string]entry),
	}
}

// NewID returns a fresh correlation id.
func NewID() string {
	return uuid.NewString()
}

// RegisterPending stores cont under id.
func (r *Registry) RegisterPending(id string, cont Continuation) error {
	if id == "" {
		return ErrEmptyID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pending[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	r.pending[id] = entry{cont: cont, createdAt: time.Now()}
	return nil
}

// take removes and returns the continuation for id.
func (r *Registry) take(id string) (Continuation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
	}
	return e.cont, ok
}

// Resolve completes the call id with result. It reports false when no such
// call is pending.
func (r *Registry) Resolve(id string, result protocol.Value) bool {
	cont, ok := r.take(id)
	if !ok {
		return false
	}
	if cont != nil {
		cont(result, nil)
	}
	return true
}

// Reject fails the call id with err. It reports false when no such call is
// pending.
func (r *Registry) Reject(id string, err error) bool {
	cont, ok := r.take(id)
	if !ok {
		return false
	}
	if cont != nil {
		cont(protocol.Null, err)
	}
	return true
}

// ResolveEnvelope completes the call named by a reply envelope. "__response"
// resolves with the first argument; "__error" rejects with ErrRemoteError.
// Other envelopes are ignored.
func (r *Registry) ResolveEnvelope(env *protocol.Envelope) bool {
	switch {
	case env.IsResponse():
		return r.Resolve(env.GUID, env.Result())
	case env.IsError():
		return r.Reject(env.GUID, fmt.Errorf("%w: call %s", ErrRemoteError, env.GUID))
	default:
		return false
	}
}

// Len returns the number of pending calls.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Pending returns a snapshot of the outstanding calls.
func (r *Registry) Pending() []Pending {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Pending, 0, len(r.pending))
	for id, e := range r.pending {
		out = append(out, Pending{ID: id, CreatedAt: e.createdAt})
	}
	return out
}

// Expire rejects every call registered longer than olderThan ago with
// ErrExpired and returns how many were removed. Nothing calls it
// automatically.
func (r *Registry) Expire(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	r.mu.Lock()
	var expired []Continuation
	for id, e := range r.pending {
		if e.createdAt.Before(cutoff) {
			expired = append(expired, e.cont)
			delete(r.pending, id)
		}
	}
	r.mu.Unlock()

	for _, cont := range expired {
		if cont != nil {
			cont(protocol.Null, ErrExpired)
		}
	}
	return len(expired)
}

// FailAll rejects every pending call with err.
func (r *Registry) FailAll(err error) int {
	r.mu.Lock()
	pending := r.pending
	r.pending = make(map[string]entry)
	r.mu.Unlock()

	for _, e := range pending {
		if e.cont != nil {
			e.cont(protocol.Null, err)
		}
	}
	return len(pending)
}
