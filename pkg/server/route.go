package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/wscomms-dev/wscomms/internal/routepath"
	"github.com/wscomms-dev/wscomms/pkg/dispatch"
	"github.com/wscomms-dev/wscomms/pkg/outbound"
	"github.com/wscomms-dev/wscomms/pkg/protocol"
	"github.com/wscomms-dev/wscomms/pkg/session"
)

// RouteOption configures a route.
type RouteOption func(*routeOptions)

type routeOptions struct {
	shouldSend outbound.ShouldSend
	middleware []dispatch.Middleware
}

// WithCoalesce sets the coalescing predicate for every session on the route.
func WithCoalesce(fn outbound.ShouldSend) RouteOption {
	return func(o *routeOptions) {
		o.shouldSend = fn
	}
}

// WithMiddleware wraps every operation on the route.
func WithMiddleware(mw ...dispatch.Middleware) RouteOption {
	return func(o *routeOptions) {
		o.middleware = append(o.middleware, mw...)
	}
}

// Route is a WebSocket endpoint with its own dispatch table and sessions.
type Route struct {
	prefix  string
	table   *dispatch.Table
	config  *session.Config
	logger  *slog.Logger
	metrics *collectors
	counts  routeCounters

	mu       sync.RWMutex
	sessions map[string]*session.Session
	closed   bool
}

// NormalizePrefix returns the canonical form of prefix: one leading slash,
// no trailing slash, dot segments resolved. The root prefix is "/".
func NormalizePrefix(prefix string) (string, error) {
	p, err := routepath.Canonical(prefix)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPrefix, err)
	}
	return p, nil
}

func newRoute(prefix string, table *dispatch.Table, base *session.Config, m *collectors, logger *slog.Logger) *Route {
	r := &Route{
		prefix:   prefix,
		table:    table,
		logger:   logger.With("component", "server", "route", prefix),
		metrics:  m,
		sessions: make(map[string]*session.Session),
	}
	r.config = r.sessionConfig(base, logger.With("route", prefix))
	return r
}

// sessionConfig chains the route's counters in front of any hooks the base
// configuration already carries.
func (r *Route) sessionConfig(base *session.Config, logger *slog.Logger) *session.Config {
	cfg := base.Clone()
	if cfg == nil {
		cfg = session.DefaultConfig()
	}
	cfg.ID = ""
	if cfg.Logger == nil {
		cfg.Logger = logger
	}

	onReceived, onSent, onDropped := cfg.OnReceived, cfg.OnSent, cfg.OnDropped
	cfg.OnReceived = func(env *protocol.Envelope) {
		r.counts.received.Add(1)
		r.metrics.messagesReceived.WithLabelValues(r.prefix).Inc()
		if onReceived != nil {
			onReceived(env)
		}
	}
	cfg.OnSent = func(env *protocol.Envelope, size int) {
		r.counts.sent.Add(1)
		r.counts.bytes.Add(uint64(size))
		r.metrics.messagesSent.WithLabelValues(r.prefix).Inc()
		r.metrics.bytesSent.WithLabelValues(r.prefix).Add(float64(size))
		if onSent != nil {
			onSent(env, size)
		}
	}
	cfg.OnDropped = func(env *protocol.Envelope) {
		r.counts.dropped.Add(1)
		r.metrics.messagesDropped.WithLabelValues(r.prefix).Inc()
		if onDropped != nil {
			onDropped(env)
		}
	}
	return cfg
}

// Prefix returns the URL path the route is mounted at.
func (r *Route) Prefix() string {
	return r.prefix
}

// Table returns the route's dispatch table.
func (r *Route) Table() *dispatch.Table {
	return r.table
}

// Len returns the number of tracked sessions.
func (r *Route) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sessions returns a snapshot of the tracked sessions.
func (r *Route) Sessions() []*session.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*session.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Session returns the session with the given id.
func (r *Route) Session(id string) (*session.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// SendMessage queues env on every open session and returns how many
// sessions accepted it. Closing and closed sessions are skipped.
func (r *Route) SendMessage(env *protocol.Envelope) int {
	if env == nil {
		return 0
	}
	sent := 0
	for _, s := range r.Sessions() {
		if s.State() != session.StateOpen {
			continue
		}
		if err := s.Send(env); err == nil {
			sent++
		}
	}
	return sent
}

// Notify builds a command and broadcasts it.
func (r *Route) Notify(name string, args ...any) (int, error) {
	env, err := protocol.NewCommand(name, args...)
	if err != nil {
		return 0, &RouteError{Prefix: r.prefix, Op: "notify", Err: err}
	}
	return r.SendMessage(env), nil
}

// Close closes every session and refuses new connections.
func (r *Route) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	for _, s := range r.Sessions() {
		s.Close()
	}
}

// Stats returns a snapshot of the route's counters.
func (r *Route) Stats() RouteStats {
	return RouteStats{
		Prefix:           r.prefix,
		Active:           r.Len(),
		TotalSessions:    r.counts.sessions.Load(),
		MessagesReceived: r.counts.received.Load(),
		MessagesSent:     r.counts.sent.Load(),
		MessagesDropped:  r.counts.dropped.Load(),
		BytesSent:        r.counts.bytes.Load(),
	}
}

func (r *Route) add(s *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRouteClosed
	}
	r.sessions[s.ID()] = s
	r.counts.sessions.Add(1)
	r.metrics.sessionsTotal.WithLabelValues(r.prefix).Inc()
	r.metrics.sessionsActive.WithLabelValues(r.prefix).Inc()
	return nil
}

func (r *Route) remove(s *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID()]; !ok {
		return
	}
	delete(r.sessions, s.ID())
	r.metrics.sessionsActive.WithLabelValues(r.prefix).Dec()
}

// serve runs one accepted connection until it closes.
func (r *Route) serve(ctx context.Context, conn *websocket.Conn) {
	s := session.New(r.table, r.config)
	if err := r.add(s); err != nil {
		s.Fail(err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "route closed"), deadline(r.config.WriteTimeout))
		conn.Close()
		return
	}
	defer r.remove(s)

	if err := s.Attach(session.NewWebSocketTransport(conn, r.config)); err != nil {
		r.logger.Error("session attach failed", "session_id", s.ID(), "error", err)
		conn.Close()
		return
	}
	r.logger.Info("session connected", "session_id", s.ID(), "remote_addr", conn.RemoteAddr().String())

	if err := s.Serve(ctx); err != nil {
		r.logger.Info("session disconnected", "session_id", s.ID(), "error", err)
		return
	}
	r.logger.Info("session disconnected", "session_id", s.ID())
}

// handle upgrades the request and serves the connection.
func (r *Route) handle(srv *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if srv.config.LoopbackOnly && !isLoopback(req) {
			r.logger.Warn("rejected non-loopback client", "remote_addr", req.RemoteAddr)
			http.Error(w, ErrNotLoopback.Error(), http.StatusForbidden)
			return
		}
		if srv.isClosed() {
			http.Error(w, ErrServerClosed.Error(), http.StatusServiceUnavailable)
			return
		}
		conn, err := srv.upgrader.Upgrade(w, req, nil)
		if err != nil {
			r.logger.Error("websocket upgrade failed", "error", err)
			return
		}
		r.serve(srv.baseContext(), conn)
	}
}
