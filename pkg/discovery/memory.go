package discovery

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRegistry is an in-process Registry for single-host setups and
// tests. TTLs are ignored.
type MemoryRegistry struct {
	mu       sync.Mutex
	entries  map[string]Endpoint
	watchers map[string][]chan []Endpoint
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		entries:  make(map[string]Endpoint),
		watchers: make(map[string][]chan []Endpoint),
	}
}

// Register stores ep.
func (m *MemoryRegistry) Register(_ context.Context, ep Endpoint, _ time.Duration) error {
	if err := ep.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[Key(ep)] = ep
	m.mu.Unlock()
	m.notify(ep.Link)
	return nil
}

// Deregister removes ep.
func (m *MemoryRegistry) Deregister(_ context.Context, ep Endpoint) error {
	m.mu.Lock()
	delete(m.entries, Key(ep))
	m.mu.Unlock()
	m.notify(ep.Link)
	return nil
}

// Discover returns the endpoints for link, ordered by key.
func (m *MemoryRegistry) Discover(_ context.Context, link string) ([]Endpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(link), nil
}

func (m *MemoryRegistry) list(link string) []Endpoint {
	prefix := LinkPrefix(link)
	keys := make([]string, 0)
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make([]Endpoint, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.entries[k])
	}
	return out
}

// Watch emits the endpoint list for link after every change until ctx is
// done. Slow readers see only the latest list.
func (m *MemoryRegistry) Watch(ctx context.Context, link string) <-chan []Endpoint {
	ch := make(chan []Endpoint, 1)

	m.mu.Lock()
	m.watchers[link] = append(m.watchers[link], ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		watchers := m.watchers[link]
		for i, w := range watchers {
			if w == ch {
				m.watchers[link] = append(watchers[:i], watchers[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch
}

func (m *MemoryRegistry) notify(link string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.list(link)
	for _, ch := range m.watchers[link] {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- list:
		default:
		}
	}
}
