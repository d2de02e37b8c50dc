package session

import (
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/wscomms-dev/wscomms/pkg/outbound"
	"github.com/wscomms-dev/wscomms/pkg/protocol"
)

// Config holds configuration for a session and its transport.
type Config struct {
	// ID identifies the session in logs. Generated when empty.
	ID string

	// Transport

	// ReadTimeout is how long the transport waits for any frame, including
	// pongs, before giving up. Zero disables the deadline.
	// Default: 60 seconds.
	ReadTimeout time.Duration

	// WriteTimeout bounds each write.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// HeartbeatInterval is the time between pings. Zero disables pings.
	// Default: 30 seconds.
	HeartbeatInterval time.Duration

	// MaxMessageSize is the largest inbound message accepted.
	// Default: 1MB.
	MaxMessageSize int64

	// Outbound

	// ShouldSend is the coalescing predicate for this session's queue.
	// Default: nil (send everything).
	ShouldSend outbound.ShouldSend

	// PollInterval is the sender's idle re-check interval.
	// Default: 100ms.
	PollInterval time.Duration

	// Inbound

	// RateLimit caps inbound messages per second. Excess messages are
	// dropped. Zero disables limiting.
	RateLimit rate.Limit

	// RateBurst is the limiter's burst size.
	// Default: 1 when RateLimit is set.
	RateBurst int

	// Console echo

	// Echo prints each inbound message to EchoOutput.
	Echo bool

	// EchoWidth truncates echoed lines. Default: 120.
	EchoWidth int

	// EchoOutput receives echoed lines. Default: os.Stdout.
	EchoOutput io.Writer

	// Hooks

	// OnReceived is called for every decoded inbound envelope.
	OnReceived func(env *protocol.Envelope)

	// OnSent is called after each outbound write, on the sender goroutine.
	// It must not call Session.Close, which waits for that goroutine.
	OnSent func(env *protocol.Envelope, size int)

	// OnDropped is called for each outbound message dropped by coalescing,
	// on the sender goroutine. It must not call Session.Close.
	OnDropped func(env *protocol.Envelope)

	// Logger is the parent logger. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		MaxMessageSize:    1 << 20,
		PollInterval:      outbound.DefaultPollInterval,
		EchoWidth:         120,
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// WithEcho returns a copy with console echo enabled.
func (c *Config) WithEcho(w io.Writer) *Config {
	clone := c.Clone()
	clone.Echo = true
	clone.EchoOutput = w
	return clone
}

// WithShouldSend returns a copy using the given coalescing predicate.
func (c *Config) WithShouldSend(fn outbound.ShouldSend) *Config {
	clone := c.Clone()
	clone.ShouldSend = fn
	return clone
}

// WithRateLimit returns a copy limiting inbound messages.
func (c *Config) WithRateLimit(limit rate.Limit, burst int) *Config {
	clone := c.Clone()
	clone.RateLimit = limit
	clone.RateBurst = burst
	return clone
}

// withDefaults fills zero fields from DefaultConfig. Timeouts and the
// heartbeat are left alone so zero can disable them.
func (c *Config) withDefaults() *Config {
	if c == nil {
		return DefaultConfig()
	}
	clone := c.Clone()
	d := DefaultConfig()
	if clone.MaxMessageSize <= 0 {
		clone.MaxMessageSize = d.MaxMessageSize
	}
	if clone.PollInterval <= 0 {
		clone.PollInterval = d.PollInterval
	}
	if clone.EchoWidth <= 0 {
		clone.EchoWidth = d.EchoWidth
	}
	if clone.RateLimit > 0 && clone.RateBurst <= 0 {
		clone.RateBurst = 1
	}
	if clone.Logger == nil {
		clone.Logger = slog.Default()
	}
	return clone
}
