// Package discovery announces host routes so peers can find them by link
// name instead of a fixed address.
//
// Keys are laid out as:
//
//	/wscomms/{Link}/{Route}/{URL}
//
// with a JSON-encoded Endpoint as the value. Registrations hold a TTL lease
// so a crashed host disappears on its own.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// KeyPrefix is the root of every discovery key.
const KeyPrefix = "/wscomms/"

// ErrNoEndpoints is returned when nothing is registered for a link.
var ErrNoEndpoints = errors.New("discovery: no endpoints")

// Endpoint is one announced WebSocket route.
type Endpoint struct {
	Link    string            `json:"link"`
	Route   string            `json:"route"`
	URL     string            `json:"url"`
	Meta    map[string]string `json:"meta,omitempty"`
	Version string            `json:"version,omitempty"`
}

// Registry stores and looks up endpoints.
type Registry interface {
	Register(ctx context.Context, ep Endpoint, ttl time.Duration) error
	Deregister(ctx context.Context, ep Endpoint) error
	Discover(ctx context.Context, link string) ([]Endpoint, error)
	Watch(ctx context.Context, link string) <-chan []Endpoint
}

// Key returns the storage key for ep.
func Key(ep Endpoint) string {
	return LinkPrefix(ep.Link) + strings.Trim(ep.Route, "/") + "/" + url.PathEscape(ep.URL)
}

// LinkPrefix returns the key prefix holding every endpoint of link.
func LinkPrefix(link string) string {
	return KeyPrefix + link + "/"
}

// Validate checks that ep can be registered.
func (ep Endpoint) Validate() error {
	if ep.Link == "" {
		return fmt.Errorf("discovery: endpoint has no link")
	}
	if ep.URL == "" {
		return fmt.Errorf("discovery: endpoint %s has no url", ep.Link)
	}
	return nil
}

// Pick returns the first endpoint serving route, or any endpoint when route
// is empty.
func Pick(endpoints []Endpoint, route string) (Endpoint, error) {
	want := strings.Trim(route, "/")
	for _, ep := range endpoints {
		if want == "" || strings.Trim(ep.Route, "/") == want {
			return ep, nil
		}
	}
	return Endpoint{}, ErrNoEndpoints
}
