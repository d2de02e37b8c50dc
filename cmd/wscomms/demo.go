package main

import (
	"context"
	"errors"
	"time"

	"github.com/wscomms-dev/wscomms/pkg/dispatch"
	"github.com/wscomms-dev/wscomms/pkg/protocol"
)

var errDivideByZero = errors.New("divide by zero")

// calculator is the demo provider mounted at /calc.
type calculator struct{}

func (calculator) RegisterCommands(t *dispatch.Table) error {
	ops := map[string]dispatch.Operation{
		"Add": dispatch.Func2(func(_ context.Context, a, b float64) (float64, error) {
			return a + b, nil
		}),
		"Subtract": dispatch.Func2(func(_ context.Context, a, b float64) (float64, error) {
			return a - b, nil
		}),
		"Multiply": dispatch.Func2(func(_ context.Context, a, b float64) (float64, error) {
			return a * b, nil
		}),
		"Divide": dispatch.Func2(func(_ context.Context, a, b float64) (float64, error) {
			if b == 0 {
				return 0, errDivideByZero
			}
			return a / b, nil
		}),
		"Sum": dispatch.Func1(func(_ context.Context, values []float64) (float64, error) {
			var total float64
			for _, v := range values {
				total += v
			}
			return total, nil
		}),
		"Echo": dispatch.Func1(func(_ context.Context, s string) (string, error) {
			return s, nil
		}),
		"Whoami": dispatch.Func0(func(ctx context.Context) (string, error) {
			if caller, ok := dispatch.CallerFrom(ctx); ok {
				return caller.ID(), nil
			}
			return "", nil
		}),
		// Ping answers with a Pong notification on the same connection.
		"Ping": dispatch.Action1(func(ctx context.Context, payload protocol.Value) error {
			if caller, ok := dispatch.CallerFrom(ctx); ok {
				return caller.Notify("Pong", payload)
			}
			return nil
		}),
	}
	for name, op := range ops {
		if err := t.Register(name, op); err != nil {
			return err
		}
	}
	return nil
}

// clock is the demo provider mounted at /clock. The host also broadcasts
// Tick on that route.
type clock struct {
	now func() time.Time
}

func (c clock) RegisterCommands(t *dispatch.Table) error {
	return t.Register("Now", dispatch.Func0(func(context.Context) (string, error) {
		return c.now().UTC().Format(time.RFC3339Nano), nil
	}))
}

// tickName is the broadcast command on /clock.
const tickName = "Tick"

// coalesceTicks drops a queued tick when a newer one is right behind it.
func coalesceTicks(cur, next *protocol.Envelope) bool {
	return !(cur.Name == tickName && next.Name == tickName)
}
