package server

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wscomms-dev/wscomms/pkg/content"
	"github.com/wscomms-dev/wscomms/pkg/discovery"
	"github.com/wscomms-dev/wscomms/pkg/session"
)

// ServerConfig holds server-wide configuration.
type ServerConfig struct {
	// Address is the address to listen on (e.g., ":8080").
	Address string

	// LinkName identifies the host. It answers the identity query on every
	// route and is the discovery link name.
	// Default: "wscomms".
	LinkName string

	// LoopbackOnly rejects WebSocket connections from non-loopback
	// addresses.
	LoopbackOnly bool

	// ReadBufferSize is the WebSocket read buffer size.
	// Default: 4096.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	// Default: 4096.
	WriteBufferSize int

	// CheckOrigin validates the Origin header of upgrade requests.
	// Default: SameOriginCheck.
	CheckOrigin func(r *http.Request) bool

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// ReadHeaderTimeout bounds reading request headers.
	// Default: 5 seconds.
	ReadHeaderTimeout time.Duration

	// SessionConfig is the base configuration for every session. Routes
	// may override coalescing.
	SessionConfig *session.Config

	// ClientPath serves the browser client. Empty disables it.
	// Default: "/_wscomms/client.js".
	ClientPath string

	// MetricsPath serves Prometheus metrics. Empty disables the endpoint.
	MetricsPath string

	// Registry receives the server's collectors.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// Gatherer backs the metrics endpoint.
	// Default: prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// ContentSources serve static files for GET requests that match no
	// route. Earlier sources win.
	ContentSources []content.Source

	// Discovery announces routes on Run. Nil disables announcement.
	Discovery discovery.Registry

	// DiscoveryTTL is the lifetime of each announcement lease.
	// Default: 15 seconds.
	DiscoveryTTL time.Duration

	// PublicURL is the base WebSocket URL announced through discovery,
	// e.g. "ws://10.0.0.5:8080". Default: derived from Address.
	PublicURL string

	// Logger is the structured logger.
	// Default: slog.Default().
	Logger *slog.Logger
}

// DefaultClientPath is where the browser client is served.
const DefaultClientPath = "/_wscomms/client.js"

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:           ":8080",
		LinkName:          "wscomms",
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		CheckOrigin:       SameOriginCheck,
		ShutdownTimeout:   30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		SessionConfig:     session.DefaultConfig(),
		ClientPath:        DefaultClientPath,
		DiscoveryTTL:      15 * time.Second,
	}
}

// SameOriginCheck accepts requests without an Origin header and requests
// whose Origin host matches the request Host.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if r.Host == "" {
		return false
	}
	return originURL.Host == r.Host
}

// AllowAllOrigins accepts every upgrade request. Use only behind another
// access control.
func AllowAllOrigins(*http.Request) bool {
	return true
}

// Clone returns a copy of the ServerConfig.
func (c *ServerConfig) Clone() *ServerConfig {
	if c == nil {
		return nil
	}
	clone := *c
	if c.SessionConfig != nil {
		clone.SessionConfig = c.SessionConfig.Clone()
	}
	if c.ContentSources != nil {
		clone.ContentSources = append([]content.Source(nil), c.ContentSources...)
	}
	return &clone
}

// WithAddress sets the server address and returns the config for chaining.
func (c *ServerConfig) WithAddress(addr string) *ServerConfig {
	c.Address = addr
	return c
}

// WithLinkName sets the link name and returns the config for chaining.
func (c *ServerConfig) WithLinkName(name string) *ServerConfig {
	c.LinkName = name
	return c
}

// WithLoopbackOnly restricts WebSocket clients to loopback addresses.
func (c *ServerConfig) WithLoopbackOnly(only bool) *ServerConfig {
	c.LoopbackOnly = only
	return c
}

// WithEcho enables console echo of inbound messages on every session.
func (c *ServerConfig) WithEcho(enabled bool) *ServerConfig {
	if c.SessionConfig == nil {
		c.SessionConfig = session.DefaultConfig()
	}
	c.SessionConfig.Echo = enabled
	return c
}

// WithMetrics registers collectors on reg and serves them at path.
func (c *ServerConfig) WithMetrics(path string, reg *prometheus.Registry) *ServerConfig {
	c.MetricsPath = path
	if reg != nil {
		c.Registry = reg
		c.Gatherer = reg
	}
	return c
}

// WithContent appends static content sources.
func (c *ServerConfig) WithContent(sources ...content.Source) *ServerConfig {
	c.ContentSources = append(c.ContentSources, sources...)
	return c
}

// WithDiscovery announces routes through reg.
func (c *ServerConfig) WithDiscovery(reg discovery.Registry, publicURL string) *ServerConfig {
	c.Discovery = reg
	c.PublicURL = publicURL
	return c
}

// publicURL returns the base WebSocket URL for announcements.
func (c *ServerConfig) publicURL() string {
	if c.PublicURL != "" {
		return strings.TrimRight(c.PublicURL, "/")
	}
	host, port, err := net.SplitHostPort(c.Address)
	if err != nil {
		return "ws://" + c.Address
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "ws://" + net.JoinHostPort(host, port)
}
