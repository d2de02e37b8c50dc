package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wscomms-dev/wscomms/pkg/content"
	"github.com/wscomms-dev/wscomms/pkg/discovery"
	"github.com/wscomms-dev/wscomms/pkg/dispatch"
	"github.com/wscomms-dev/wscomms/pkg/protocol"
)

// Version is announced with every discovery endpoint.
var Version = "dev"

// Server hosts routes over HTTP and WebSocket.
type Server struct {
	config   *ServerConfig
	logger   *slog.Logger
	upgrader websocket.Upgrader
	metrics  *collectors

	ctx    context.Context
	cancel context.CancelFunc

	handlerOnce sync.Once
	handler     http.Handler

	mu         sync.RWMutex
	routes     map[string]*Route
	closed     bool
	httpServer *http.Server
	announced  []discovery.Endpoint
}

// New creates a new Server with the given configuration.
func New(config *ServerConfig) *Server {
	if config == nil {
		config = DefaultServerConfig()
	} else {
		config = config.Clone()
	}

	defaults := DefaultServerConfig()
	if config.LinkName == "" {
		config.LinkName = defaults.LinkName
	}
	if config.ReadBufferSize == 0 {
		config.ReadBufferSize = defaults.ReadBufferSize
	}
	if config.WriteBufferSize == 0 {
		config.WriteBufferSize = defaults.WriteBufferSize
	}
	if config.CheckOrigin == nil {
		config.CheckOrigin = defaults.CheckOrigin
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if config.ReadHeaderTimeout == 0 {
		config.ReadHeaderTimeout = defaults.ReadHeaderTimeout
	}
	if config.SessionConfig == nil {
		config.SessionConfig = defaults.SessionConfig
	}
	if config.DiscoveryTTL == 0 {
		config.DiscoveryTTL = defaults.DiscoveryTTL
	}
	if config.Registry == nil {
		config.Registry = prometheus.DefaultRegisterer
	}
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config: config,
		logger: config.Logger.With("component", "server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		metrics: newCollectors(config.Registry),
		ctx:     ctx,
		cancel:  cancel,
		routes:  make(map[string]*Route),
	}
}

// Config returns the server's configuration.
func (s *Server) Config() *ServerConfig {
	return s.config
}

// AddRoute mounts a WebSocket route at prefix. The provider's operations
// form the route's dispatch table, labelled with the server's link name.
func (s *Server) AddRoute(prefix string, provider dispatch.Provider, opts ...RouteOption) (*Route, error) {
	p, err := NormalizePrefix(prefix)
	if err != nil {
		return nil, &RouteError{Prefix: prefix, Op: "add", Err: err}
	}
	prefix = p
	if provider == nil {
		return nil, &RouteError{Prefix: prefix, Op: "add", Err: ErrNilProvider}
	}

	var o routeOptions
	for _, opt := range opts {
		opt(&o)
	}

	table, err := dispatch.NewTableFrom(s.config.LinkName, provider)
	if err != nil {
		return nil, &RouteError{Prefix: prefix, Op: "add", Err: err}
	}
	table.Use(o.middleware...)

	base := s.config.SessionConfig
	if o.shouldSend != nil {
		base = base.WithShouldSend(o.shouldSend)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, &RouteError{Prefix: prefix, Op: "add", Err: ErrServerClosed}
	}
	if _, ok := s.routes[prefix]; ok {
		return nil, &RouteError{Prefix: prefix, Op: "add", Err: ErrRouteExists}
	}
	route := newRoute(prefix, table, base, s.metrics, s.config.Logger)
	s.routes[prefix] = route

	s.logger.Info("route added", "route", prefix, "operations", table.Len())
	return route, nil
}

// Route returns the route mounted at prefix.
func (s *Server) Route(prefix string) (*Route, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := NormalizePrefix(prefix)
	if err != nil {
		return nil, false
	}
	r, ok := s.routes[p]
	return r, ok
}

// Routes returns every route ordered by prefix.
func (s *Server) Routes() []*Route {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Route, 0, len(s.routes))
	for _, r := range s.routes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].prefix < out[j].prefix })
	return out
}

// SendMessage broadcasts env on every route and returns the number of
// sessions that accepted it.
func (s *Server) SendMessage(env *protocol.Envelope) int {
	sent := 0
	for _, r := range s.Routes() {
		sent += r.SendMessage(env)
	}
	return sent
}

// Stats returns a snapshot of every route's counters.
func (s *Server) Stats() Stats {
	stats := Stats{CollectedAt: time.Now()}
	for _, r := range s.Routes() {
		rs := r.Stats()
		stats.Routes = append(stats.Routes, rs)
		stats.Active += rs.Active
	}
	return stats
}

// Handler returns the HTTP handler serving WebSocket routes, the browser
// client, metrics and static content. Routes added later are served too.
func (s *Server) Handler() http.Handler {
	s.handlerOnce.Do(func() {
		s.handler = s.buildRouter()
	})
	return s.handler
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	if s.config.ClientPath != "" {
		r.Get(s.config.ClientPath, serveClient)
		r.Head(s.config.ClientPath, serveClient)
	}
	if s.config.MetricsPath != "" {
		r.Handle(s.config.MetricsPath, promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	}

	static := content.Handler(s.config.ContentSources...)
	r.HandleFunc("/*", func(w http.ResponseWriter, req *http.Request) {
		if websocket.IsWebSocketUpgrade(req) {
			if route, ok := s.Route(req.URL.Path); ok {
				route.handle(s)(w, req)
				return
			}
		}
		static.ServeHTTP(w, req)
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Handler().ServeHTTP(w, r)
}

func (s *Server) baseContext() context.Context {
	return s.ctx
}

func (s *Server) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Run starts the server and blocks until SIGINT/SIGTERM or a listen error,
// then shuts down gracefully.
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.ListenAndServe(ctx)
}

// ListenAndServe listens on the configured address and serves until ctx is
// done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.config.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	s.httpServer = httpServer
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", ln.Addr().String())
		errCh <- httpServer.Serve(ln)
	}()

	if err := s.announce(ctx); err != nil {
		s.logger.Warn("discovery announce failed", "error", err)
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// announce registers every route with the discovery registry.
func (s *Server) announce(ctx context.Context) error {
	reg := s.config.Discovery
	if reg == nil {
		return nil
	}
	base := s.config.publicURL()
	var errs []error
	for _, r := range s.Routes() {
		ep := discovery.Endpoint{
			Link:    s.config.LinkName,
			Route:   r.prefix,
			URL:     base + r.prefix,
			Version: Version,
		}
		if err := reg.Register(ctx, ep, s.config.DiscoveryTTL); err != nil {
			errs = append(errs, &RouteError{Prefix: r.prefix, Op: "announce", Err: err})
			continue
		}
		s.mu.Lock()
		s.announced = append(s.announced, ep)
		s.mu.Unlock()
		s.logger.Info("route announced", "route", r.prefix, "url", ep.URL)
	}
	return errors.Join(errs...)
}

// Shutdown withdraws discovery announcements, closes every session and
// stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.mu.Lock()
	s.closed = true
	announced := s.announced
	s.announced = nil
	httpServer := s.httpServer
	s.mu.Unlock()

	for _, ep := range announced {
		if err := s.config.Discovery.Deregister(ctx, ep); err != nil {
			s.logger.Warn("discovery deregister failed", "route", ep.Route, "error", err)
		}
	}

	s.cancel()
	for _, r := range s.Routes() {
		r.Close()
	}

	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
	}
	s.logger.Info("server stopped")
	return nil
}
