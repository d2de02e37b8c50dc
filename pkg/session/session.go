package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/wscomms-dev/wscomms/pkg/correlation"
	"github.com/wscomms-dev/wscomms/pkg/dispatch"
	"github.com/wscomms-dev/wscomms/pkg/outbound"
	"github.com/wscomms-dev/wscomms/pkg/protocol"
)

// StateHook observes a state transition. err is the close cause, if any.
type StateHook func(from, to State, err error)

// Session is one end of a connection.
type Session struct {
	id       string
	table    *dispatch.Table
	config   *Config
	logger   *slog.Logger
	registry *correlation.Registry
	queue    *outbound.Queue
	limiter  *rate.Limiter
	echo     *echo

	mu        sync.Mutex
	state     State
	transport Transport
	sender    *outbound.Sender
	closeErr  error
	hooks     []StateHook

	done chan struct{}
}

// New creates a session in the Connecting state. table handles inbound
// commands and may be nil for a session that only issues calls.
func New(table *dispatch.Table, cfg *Config) *Session {
	cfg = cfg.withDefaults()
	if table == nil {
		table = dispatch.NewTable("")
	}
	id := cfg.ID
	if id == "" {
		id = correlation.NewID()
	}

	s := &Session{
		id:       id,
		table:    table,
		config:   cfg,
		logger:   cfg.Logger.With("component", "session", "session_id", id),
		registry: correlation.NewRegistry(),
		queue:    outbound.NewQueue(),
		state:    StateConnecting,
		done:     make(chan struct{}),
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	if cfg.Echo {
		s.echo = newEcho(cfg.EchoOutput, cfg.EchoWidth)
	}
	return s
}

// Open creates a session over an established transport. It is the host
// side path: the session starts Open.
func Open(t Transport, table *dispatch.Table, cfg *Config) (*Session, error) {
	s := New(table, cfg)
	if err := s.Attach(t); err != nil {
		return nil, err
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Table returns the dispatch table for inbound commands.
func (s *Session) Table() *dispatch.Table {
	return s.table
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session reaches Closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns why the session closed: nil for a local Close, otherwise the
// transport failure.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeErr
}

// Pending returns the number of calls awaiting a reply.
func (s *Session) Pending() int {
	return s.registry.Len()
}

// Queued returns the number of outbound messages not yet written.
func (s *Session) Queued() int {
	return s.queue.Len()
}

// OnStateChange registers a hook called after every transition.
func (s *Session) OnStateChange(fn StateHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// OnClose registers a hook called once when the session reaches Closed.
func (s *Session) OnClose(fn func(err error)) {
	s.OnStateChange(func(_, to State, err error) {
		if to == StateClosed {
			fn(err)
		}
	})
}

// Attach binds an established transport and moves Connecting to Open. The
// sender goroutine starts immediately; call Serve to process inbound
// messages.
func (s *Session) Attach(t Transport) error {
	s.mu.Lock()
	if s.state != StateConnecting {
		state := s.state
		s.mu.Unlock()
		return &Error{SessionID: s.id, Op: "attach", Err: fmt.Errorf("%w: %s", ErrInvalidState, state)}
	}

	sender := outbound.NewSender(s.queue, t, outbound.Options{
		ShouldSend:   s.config.ShouldSend,
		PollInterval: s.config.PollInterval,
		OnSent:       s.config.OnSent,
		OnDropped:    s.config.OnDropped,
		Logger:       s.logger,
	})
	s.transport = t
	s.sender = sender
	s.state = StateOpen
	hooks := s.snapshotHooks()
	s.mu.Unlock()

	if err := sender.Start(); err != nil {
		return err
	}
	go s.watchSender(sender)

	s.logger.Debug("session open")
	notify(hooks, StateConnecting, StateOpen, nil)
	return nil
}

// Fail records a failed connection attempt, moving Connecting to Closed.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.closeErr = err
	hooks := s.snapshotHooks()
	s.mu.Unlock()

	s.logger.Debug("connection attempt failed", "error", err)
	s.registry.FailAll(ErrConnectionLost)
	close(s.done)
	notify(hooks, StateConnecting, StateClosed, err)
}

// Close shuts the session down. Safe to call more than once and from any
// goroutine, including operations running on this session.
func (s *Session) Close() error {
	s.shutdown(nil)
	return nil
}

// shutdown runs the Open → Closing → Closed sequence. It reports whether
// this call performed the transition.
func (s *Session) shutdown(cause error) bool {
	s.mu.Lock()
	switch s.state {
	case StateClosing, StateClosed:
		s.mu.Unlock()
		return false
	case StateConnecting:
		s.mu.Unlock()
		s.Fail(cause)
		return true
	}
	s.state = StateClosing
	s.closeErr = cause
	sender, transport := s.sender, s.transport
	hooks := s.snapshotHooks()
	s.mu.Unlock()

	notify(hooks, StateOpen, StateClosing, cause)

	if cause != nil {
		s.logger.Info("session closing", "error", cause)
	} else {
		s.logger.Debug("session closing")
	}

	sender.Stop()
	if err := transport.Close(); err != nil {
		s.logger.Debug("transport close", "error", err)
	}
	if n := s.registry.FailAll(ErrConnectionLost); n > 0 {
		s.logger.Debug("failed pending calls", "count", n)
	}
	if dropped := len(s.queue.Drain()); dropped > 0 {
		s.logger.Debug("discarded queued messages", "count", dropped)
	}

	s.mu.Lock()
	s.state = StateClosed
	hooks = s.snapshotHooks()
	s.mu.Unlock()

	close(s.done)
	notify(hooks, StateClosing, StateClosed, cause)
	return true
}

// watchSender closes the session when the sender exits on a write failure.
func (s *Session) watchSender(sender *outbound.Sender) {
	<-sender.Done()
	if err := sender.Err(); err != nil {
		s.shutdown(&Error{SessionID: s.id, Op: "write", Err: err})
	}
}

// snapshotHooks must be called with s.mu held.
func (s *Session) snapshotHooks() []StateHook {
	return append([]StateHook(nil), s.hooks...)
}

func notify(hooks []StateHook, from, to State, err error) {
	for _, h := range hooks {
		h(from, to, err)
	}
}

// Serve reads and processes inbound messages until the transport fails,
// the session is closed, or ctx is done. It returns nil when the session was
// closed locally or the peer closed normally.
func (s *Session) Serve(ctx context.Context) error {
	s.mu.Lock()
	t := s.transport
	s.mu.Unlock()
	if t == nil {
		return &Error{SessionID: s.id, Op: "serve", Err: ErrNotOpen}
	}

	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	for {
		data, err := t.ReadMessage()
		if err != nil {
			if isNormalClose(err) {
				s.shutdown(nil)
				return nil
			}
			cause := &Error{SessionID: s.id, Op: "read", Err: fmt.Errorf("%w: %w", ErrConnectionLost, err)}
			if s.shutdown(cause) {
				return cause
			}
			return nil
		}

		s.handleMessage(ctx, data)
	}
}

func (s *Session) handleMessage(ctx context.Context, data []byte) {
	if s.echo != nil {
		s.echo.print(data)
	}

	if s.limiter != nil && !s.limiter.Allow() {
		s.logger.Warn("inbound rate limit exceeded, message dropped")
		return
	}

	env, err := protocol.Decode(data)
	if err != nil {
		s.logger.Warn("malformed message dropped", "error", err, "size", len(data))
		return
	}
	if s.config.OnReceived != nil {
		s.config.OnReceived(env)
	}

	if env.IsReply() {
		if !s.registry.ResolveEnvelope(env) {
			s.logger.Debug("reply for unknown call", "guid", env.GUID)
		}
		return
	}

	reply, err := s.table.Invoke(dispatch.WithCaller(ctx, s), env)
	if err != nil {
		s.logInvokeError(env, err)
	}
	if reply == nil || reply.GUID == "" {
		return
	}
	if err := s.Send(reply); err != nil {
		s.logger.Debug("reply not sent", "name", env.Name, "error", err)
	}
}

func (s *Session) logInvokeError(env *protocol.Envelope, err error) {
	var opErr *dispatch.OperationError
	switch {
	case errors.Is(err, dispatch.ErrUnknownCommand):
		s.logger.Debug("unknown command", "name", env.Name)
	case errors.As(err, &opErr) && opErr.IsPanic():
		s.logger.Error("operation panic",
			"name", env.Name,
			"guid", env.GUID,
			"panic", opErr.Panic,
			"stack", string(opErr.Stack))
	default:
		s.logger.Warn("command failed", "name", env.Name, "guid", env.GUID, "error", err)
	}
}

// Send queues env for delivery. It fails with ErrNotOpen unless the session
// is open.
func (s *Session) Send(env *protocol.Envelope) error {
	if env == nil {
		return protocol.ErrNilEnvelope
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return ErrNotOpen
	}
	s.queue.Enqueue(env)
	return nil
}

// Notify queues a fire-and-forget command. No reply is expected.
func (s *Session) Notify(name string, args ...any) error {
	env, err := protocol.NewCommand(name, args...)
	if err != nil {
		return err
	}
	return s.Send(env)
}

// Call sends a command and waits for its reply. A "__error" reply returns
// correlation.ErrRemoteError; closing the session returns ErrConnectionLost.
// Timeouts are the caller's, through ctx.
func (s *Session) Call(ctx context.Context, name string, args ...any) (protocol.Value, error) {
	env, err := protocol.NewCommand(name, args...)
	if err != nil {
		return protocol.Null, err
	}
	env.GUID = correlation.NewID()

	await := correlation.NewAwait()
	if err := s.registry.RegisterPending(env.GUID, await.Continuation()); err != nil {
		return protocol.Null, err
	}
	if err := s.Send(env); err != nil {
		s.registry.Reject(env.GUID, err)
		return protocol.Null, err
	}

	v, err := await.Wait(ctx)
	if err != nil && ctx.Err() != nil {
		// Drop the continuation so a late reply is ignored.
		s.registry.Reject(env.GUID, ctx.Err())
	}
	return v, err
}

// CallInto is like Call but decodes the result into out.
func (s *Session) CallInto(ctx context.Context, out any, name string, args ...any) error {
	v, err := s.Call(ctx, name, args...)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return v.Decode(out)
}

// String implements fmt.Stringer.
func (s *Session) String() string {
	return fmt.Sprintf("session(%s, %s)", s.id, s.State())
}
