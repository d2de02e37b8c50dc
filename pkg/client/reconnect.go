package client

import (
	"context"
	"time"

	"github.com/wscomms-dev/wscomms/pkg/dispatch"
)

// Reconnect keeps a connection to url alive until ctx is done. onConnect
// runs after every successful dial and may be nil. After a failed dial or a
// lost connection it waits ReconnectDelay, doubling up to MaxReconnectDelay
// when that is set. It returns ctx.Err().
func Reconnect(ctx context.Context, url string, provider dispatch.Provider, cfg *Config, onConnect func(*Client)) error {
	cfg = cfg.withDefaults()
	logger := cfg.Logger.With("component", "client", "url", url)

	delay := cfg.ReconnectDelay
	for {
		c, err := Dial(ctx, url, provider, cfg)
		if err == nil {
			delay = cfg.ReconnectDelay
			if onConnect != nil {
				onConnect(c)
			}
			select {
			case <-ctx.Done():
				c.Close()
				return ctx.Err()
			case <-c.Done():
				logger.Info("connection lost, reconnecting", "delay", delay, "error", c.Err())
			}
		} else {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("dial failed, retrying", "delay", delay, "error", err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err != nil {
			delay = nextDelay(delay, cfg.MaxReconnectDelay)
		}
	}
}

func nextDelay(cur, max time.Duration) time.Duration {
	if max <= 0 {
		return cur
	}
	next := cur * 2
	if next > max {
		return max
	}
	return next
}
