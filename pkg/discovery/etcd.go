package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdRegistry implements Registry on etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client
	owned  bool
	logger *slog.Logger

	mu     sync.Mutex
	leases map[string]registration
}

type registration struct {
	lease  clientv3.LeaseID
	cancel context.CancelFunc
}

// NewEtcdRegistry connects to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string, dialTimeout time.Duration) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("discovery: connect etcd: %w", err)
	}
	r := NewEtcdRegistryFromClient(c)
	r.owned = true
	return r, nil
}

// NewEtcdRegistryFromClient wraps an existing client. Close does not close
// the client.
func NewEtcdRegistryFromClient(c *clientv3.Client) *EtcdRegistry {
	return &EtcdRegistry{
		client: c,
		logger: slog.Default().With("component", "discovery"),
		leases: make(map[string]registration),
	}
}

// Register stores ep under a lease of ttl that is renewed until Deregister
// or Close.
func (r *EtcdRegistry) Register(ctx context.Context, ep Endpoint, ttl time.Duration) error {
	if err := ep.Validate(); err != nil {
		return err
	}
	seconds := int64(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	lease, err := r.client.Grant(ctx, seconds)
	if err != nil {
		return fmt.Errorf("discovery: grant lease: %w", err)
	}

	val, err := json.Marshal(ep)
	if err != nil {
		return err
	}

	key := Key(ep)
	if _, err := r.client.Put(ctx, key, string(val), clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("discovery: put %s: %w", key, err)
	}

	kaCtx, cancel := context.WithCancel(context.Background())
	ch, err := r.client.KeepAlive(kaCtx, lease.ID)
	if err != nil {
		cancel()
		return fmt.Errorf("discovery: keepalive: %w", err)
	}
	go func() {
		for range ch {
		}
		r.logger.Debug("lease keepalive ended", "key", key)
	}()

	r.mu.Lock()
	if prev, ok := r.leases[key]; ok {
		prev.cancel()
	}
	r.leases[key] = registration{lease: lease.ID, cancel: cancel}
	r.mu.Unlock()

	r.logger.Info("endpoint registered", "key", key, "ttl", ttl)
	return nil
}

// Deregister removes ep and revokes its lease.
func (r *EtcdRegistry) Deregister(ctx context.Context, ep Endpoint) error {
	key := Key(ep)

	r.mu.Lock()
	reg, ok := r.leases[key]
	delete(r.leases, key)
	r.mu.Unlock()

	if ok {
		reg.cancel()
		if _, err := r.client.Revoke(ctx, reg.lease); err != nil {
			r.logger.Debug("lease revoke failed", "key", key, "error", err)
		}
	}
	if _, err := r.client.Delete(ctx, key); err != nil {
		return fmt.Errorf("discovery: delete %s: %w", key, err)
	}
	return nil
}

// Discover returns every endpoint registered for link.
func (r *EtcdRegistry) Discover(ctx context.Context, link string) ([]Endpoint, error) {
	resp, err := r.client.Get(ctx, LinkPrefix(link), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("discovery: get %s: %w", link, err)
	}

	endpoints := make([]Endpoint, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var ep Endpoint
		if err := json.Unmarshal(kv.Value, &ep); err != nil {
			r.logger.Warn("skipping malformed endpoint", "key", string(kv.Key), "error", err)
			continue
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, nil
}

// Watch emits the full endpoint list for link after every change, until ctx
// is done.
func (r *EtcdRegistry) Watch(ctx context.Context, link string) <-chan []Endpoint {
	ch := make(chan []Endpoint, 1)

	go func() {
		defer close(ch)
		for range r.client.Watch(ctx, LinkPrefix(link), clientv3.WithPrefix()) {
			endpoints, err := r.Discover(ctx, link)
			if err != nil {
				r.logger.Warn("watch refresh failed", "link", link, "error", err)
				continue
			}
			select {
			case ch <- endpoints:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

// Close stops lease renewal and, if the registry created the client,
// closes it.
func (r *EtcdRegistry) Close() error {
	r.mu.Lock()
	for key, reg := range r.leases {
		reg.cancel()
		delete(r.leases, key)
	}
	r.mu.Unlock()

	if r.owned {
		return r.client.Close()
	}
	return nil
}
