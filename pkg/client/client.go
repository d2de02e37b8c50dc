// Package client dials a wscomms host and runs a session over the
// connection.
//
// The peer side exposes its own operations through a Provider, so the host
// can call back into it over the same socket:
//
//	c, err := client.Dial(ctx, "ws://localhost:8080/calc", handlers, nil)
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//	sum, err := c.Call(ctx, "Add", 2, 3)
//
// Reconnect keeps a connection up across host restarts.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wscomms-dev/wscomms/pkg/discovery"
	"github.com/wscomms-dev/wscomms/pkg/dispatch"
	"github.com/wscomms-dev/wscomms/pkg/protocol"
	"github.com/wscomms-dev/wscomms/pkg/session"
)

// DefaultReconnectDelay matches the browser client's retry interval.
const DefaultReconnectDelay = 4 * time.Second

// ErrEmptyURL is returned when dialing without an address.
var ErrEmptyURL = errors.New("client: empty url")

// Config configures a Client.
type Config struct {
	// Label answers the identity query from the host.
	Label string

	// Session configures the underlying session.
	// Default: session.DefaultConfig().
	Session *session.Config

	// Header is sent with the handshake request.
	Header http.Header

	// HandshakeTimeout bounds the WebSocket handshake.
	// Default: 10 seconds.
	HandshakeTimeout time.Duration

	// ReconnectDelay is the wait between reconnect attempts.
	// Default: 4 seconds.
	ReconnectDelay time.Duration

	// MaxReconnectDelay enables exponential backoff up to this delay.
	// Zero keeps the delay fixed.
	MaxReconnectDelay time.Duration

	// OnStateChange observes every session transition, including a failed
	// handshake (Connecting to Closed).
	OnStateChange session.StateHook

	// Logger is the structured logger.
	// Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Session:          session.DefaultConfig(),
		HandshakeTimeout: 10 * time.Second,
		ReconnectDelay:   DefaultReconnectDelay,
	}
}

func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	clone := *c
	if clone.Session == nil {
		clone.Session = d.Session
	}
	if clone.HandshakeTimeout <= 0 {
		clone.HandshakeTimeout = d.HandshakeTimeout
	}
	if clone.ReconnectDelay <= 0 {
		clone.ReconnectDelay = d.ReconnectDelay
	}
	if clone.Logger == nil {
		clone.Logger = slog.Default()
	}
	return &clone
}

// Client is a connected peer.
type Client struct {
	url     string
	session *session.Session
	logger  *slog.Logger
	served  chan struct{}
	err     error
}

// Dial connects to url and returns a client whose session is Open. The
// session starts Connecting; a failed handshake moves it to Closed and the
// returned error wraps session.ErrConnectionLost.
func Dial(ctx context.Context, url string, provider dispatch.Provider, cfg *Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if url == "" {
		return nil, ErrEmptyURL
	}

	table := dispatch.NewTable(cfg.Label)
	if provider != nil {
		if err := table.Install(provider); err != nil {
			return nil, fmt.Errorf("client: %w", err)
		}
	}

	sessCfg := cfg.Session.Clone()
	if sessCfg.Logger == nil {
		sessCfg.Logger = cfg.Logger
	}
	s := session.New(table, sessCfg)
	if cfg.OnStateChange != nil {
		s.OnStateChange(cfg.OnStateChange)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, url, cfg.Header)
	if err != nil {
		cause := fmt.Errorf("%w: %w", session.ErrConnectionLost, err)
		s.Fail(cause)
		return nil, fmt.Errorf("client: dial %s: %w", url, cause)
	}

	if err := s.Attach(session.NewWebSocketTransport(conn, sessCfg)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("client: %w", err)
	}

	c := &Client{
		url:     url,
		session: s,
		logger:  cfg.Logger.With("component", "client", "url", url, "session_id", s.ID()),
		served:  make(chan struct{}),
	}
	go c.serve()
	c.logger.Debug("connected")
	return c, nil
}

// DialDiscovered looks up link in reg and dials the endpoint serving route.
// An empty route accepts any endpoint of the link.
func DialDiscovered(ctx context.Context, reg discovery.Registry, link, route string, provider dispatch.Provider, cfg *Config) (*Client, error) {
	eps, err := reg.Discover(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("client: discover %s: %w", link, err)
	}
	ep, err := discovery.Pick(eps, route)
	if err != nil {
		return nil, fmt.Errorf("client: discover %s%s: %w", link, route, err)
	}
	return Dial(ctx, ep.URL, provider, cfg)
}

func (c *Client) serve() {
	defer close(c.served)
	if err := c.session.Serve(context.Background()); err != nil {
		c.err = err
		c.logger.Info("disconnected", "error", err)
		return
	}
	c.logger.Debug("disconnected")
}

// URL returns the dialed address.
func (c *Client) URL() string {
	return c.url
}

// Session returns the underlying session.
func (c *Client) Session() *session.Session {
	return c.session
}

// State returns the session state.
func (c *Client) State() session.State {
	return c.session.State()
}

// Done is closed once the connection is gone and inbound processing has
// stopped.
func (c *Client) Done() <-chan struct{} {
	return c.served
}

// Err returns why the connection ended. Valid after Done is closed.
func (c *Client) Err() error {
	<-c.served
	return c.err
}

// Call invokes name on the host and waits for the reply.
func (c *Client) Call(ctx context.Context, name string, args ...any) (protocol.Value, error) {
	return c.session.Call(ctx, name, args...)
}

// CallInto invokes name and decodes the result into out.
func (c *Client) CallInto(ctx context.Context, out any, name string, args ...any) error {
	return c.session.CallInto(ctx, out, name, args...)
}

// Notify sends a command without waiting for a reply.
func (c *Client) Notify(name string, args ...any) error {
	return c.session.Notify(name, args...)
}

// Close closes the connection and waits for inbound processing to stop.
func (c *Client) Close() error {
	err := c.session.Close()
	<-c.served
	return err
}
