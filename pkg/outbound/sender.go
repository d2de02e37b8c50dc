package outbound

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wscomms-dev/wscomms/pkg/protocol"
)

// DefaultPollInterval is how often an idle sender re-checks its queue.
const DefaultPollInterval = 100 * time.Millisecond

// ShouldSend decides whether current is still worth sending given that next
// is waiting behind it. Returning false drops current.
type ShouldSend func(current, next *protocol.Envelope) bool

// Writer delivers one encoded message.
type Writer interface {
	WriteMessage(data []byte) error
}

// WriterFunc adapts a function to the Writer interface.
type WriterFunc func(data []byte) error

// WriteMessage calls f(data).
func (f WriterFunc) WriteMessage(data []byte) error {
	return f(data)
}

// Options configures a Sender.
type Options struct {
	// ShouldSend is the coalescing predicate. Nil sends everything.
	ShouldSend ShouldSend

	// PollInterval bounds how long queued messages can wait if a wake-up
	// signal is missed. Default: 100ms.
	PollInterval time.Duration

	// OnSent is called after each successful write, on the sender
	// goroutine. It must not call Stop.
	OnSent func(env *protocol.Envelope, size int)

	// OnDropped is called for each message superseded by coalescing or
	// that failed to encode, on the sender goroutine. It must not call Stop.
	OnDropped func(env *protocol.Envelope)

	// Logger receives sender diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// Sender is the single delivery goroutine for one queue.
type Sender struct {
	queue  *Queue
	writer Writer
	opts   Options
	logger *slog.Logger

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
	err      error
}

// NewSender creates a sender that drains queue into w. Call Start to run it.
func NewSender(queue *Queue, w Writer, opts Options) *Sender {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Sender{
		queue:  queue,
		writer: w,
		opts:   opts,
		logger: logger.With("component", "outbound"),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the delivery goroutine.
func (s *Sender) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrSenderStarted
	}
	go s.run()
	return nil
}

// Stop signals the sender and waits for it to exit. A drain already in
// progress finishes first. Safe to call more than once, and before Start.
// Must not be called from OnSent or OnDropped.
func (s *Sender) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.started.CompareAndSwap(false, true) {
		close(s.done)
		return
	}
	<-s.done
}

// Done is closed when the sender has exited.
func (s *Sender) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that ended the sender, or nil if it is still running
// or was stopped normally.
func (s *Sender) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (s *Sender) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		if err := s.drain(); err != nil {
			s.err = err
			return
		}

		select {
		case <-s.stop:
			return
		case <-s.queue.Wake():
		case <-ticker.C:
		}
	}
}

// drain sends everything queued. With a ShouldSend predicate, each message
// is compared against the one directly behind it and dropped while the
// predicate rejects it; a message with nothing behind it is always sent.
func (s *Sender) drain() error {
	for {
		cur, ok := s.queue.pop()
		if !ok {
			return nil
		}

		if s.opts.ShouldSend != nil {
			for {
				next, ok := s.queue.peek()
				if !ok || s.opts.ShouldSend(cur.Envelope, next.Envelope) {
					break
				}
				s.dropped(cur)
				cur, _ = s.queue.pop()
			}
		}

		if err := s.write(cur); err != nil {
			return err
		}
	}
}

func (s *Sender) write(m Message) error {
	data, err := protocol.Encode(m.Envelope)
	if err != nil {
		s.logger.Warn("dropping unencodable message", "name", m.Envelope.Name, "error", err)
		s.dropped(m)
		return nil
	}

	if err := s.writer.WriteMessage(data); err != nil {
		return fmt.Errorf("%w: %w", ErrTransportWrite, err)
	}

	if s.opts.OnSent != nil {
		s.opts.OnSent(m.Envelope, len(data))
	}
	return nil
}

func (s *Sender) dropped(m Message) {
	s.logger.Debug("message dropped", "name", m.Envelope.Name, "queued_for", time.Since(m.EnqueuedAt))
	if s.opts.OnDropped != nil {
		s.opts.OnDropped(m.Envelope)
	}
}
