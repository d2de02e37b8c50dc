package dispatch

import (
	"fmt"
	"sort"
	"sync"
)

// Provider registers the operations an application object exposes.
type Provider interface {
	RegisterCommands(t *Table) error
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(t *Table) error

// RegisterCommands calls f(t).
func (f ProviderFunc) RegisterCommands(t *Table) error {
	return f(t)
}

// Table is a registry of named operations. Registration is expected at
// startup; lookups and invocations are safe for concurrent use.
type Table struct {
	label string

	mu         sync.RWMutex
	ops        map[string]Operation
	middleware []Middleware
}

// NewTable creates an empty table. label answers the identity query.
func NewTable(label string) *Table {
	return &Table{
		label: label,
		ops:   make(map[string]Operation),
	}
}

// NewTableFrom creates a table and installs each provider in order.
func NewTableFrom(label string, providers ...Provider) (*Table, error) {
	t := NewTable(label)
	if err := t.Install(providers...); err != nil {
		return nil, err
	}
	return t, nil
}

// Install lets each provider register its operations.
func (t *Table) Install(providers ...Provider) error {
	for _, p := range providers {
		if p == nil {
			continue
		}
		if err := p.RegisterCommands(t); err != nil {
			return fmt.Errorf("dispatch: install %T: %w", p, err)
		}
	}
	return nil
}

// Register adds an operation under name.
func (t *Table) Register(name string, op Operation) error {
	if name == "" {
		return ErrEmptyName
	}
	if op.Invoke == nil {
		return fmt.Errorf("%w: %s", ErrNilInvoke, name)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.ops[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateOperation, name)
	}
	t.ops[name] = op
	return nil
}

// MustRegister is like Register but panics on error.
func (t *Table) MustRegister(name string, op Operation) {
	if err := t.Register(name, op); err != nil {
		panic(err)
	}
}

// Resolve returns the operation registered under name.
func (t *Table) Resolve(name string) (Operation, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	op, ok := t.ops[name]
	return op, ok
}

// Names returns the registered operation names in sorted order.
func (t *Table) Names() []string {
	t.mu.RLock()
	names := make([]string, 0, len(t.ops))
	for name := range t.ops {
		names = append(names, name)
	}
	t.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Len returns the number of registered operations.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.ops)
}

// Label returns the name reported for the identity query.
func (t *Table) Label() string {
	return t.label
}

// Use appends middleware wrapped around every invocation. The first
// middleware added is the outermost.
func (t *Table) Use(mw ...Middleware) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.middleware = append(t.middleware, mw...)
}
