package middleware

import (
	"context"
	"encoding/json"

	"golang.org/x/time/rate"

	"walletrpc/rpc"
)

// RateLimit throttles outgoing calls with a token bucket. Calls wait for
// a token rather than failing, so a burst of wallet commands queues
// instead of tripping the daemon's own limits; the wait still respects
// the caller's deadline.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next rpc.CallFunc) rpc.CallFunc {
		return func(ctx context.Context, method string, params []json.RawMessage) (json.RawMessage, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, err
			}
			return next(ctx, method, params)
		}
	}
}
