package middleware

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/wscomms-dev/wscomms/pkg/dispatch"
)

// ErrRateLimited is returned when a command exceeds the table's rate.
var ErrRateLimited = errors.New("middleware: rate limit exceeded")

// RateLimit rejects commands beyond r per second with the given burst. The
// limit is shared by every session using the table; rejected calls are
// answered with "__error".
func RateLimit(r float64, burst int) dispatch.Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next dispatch.Handler) dispatch.Handler {
		return func(ctx context.Context, call *dispatch.Call) (any, error) {
			if !limiter.Allow() {
				return nil, fmt.Errorf("%w: %s", ErrRateLimited, call.Name)
			}
			return next(ctx, call)
		}
	}
}
