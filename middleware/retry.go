package middleware

import (
	"context"
	"encoding/json"
	"time"

	"walletrpc/rpc"
)

// Retry re-issues a failed call up to maxRetries times with exponential
// backoff, but only when retryable says the error is worth another
// attempt. The core never retries on its own; wrapping a connection with
// this middleware is the one place retry policy lives.
//
// Remote errors and ErrClosed are rarely retryable on a single
// connection — the daemon already answered, or the stream is gone — so
// the predicate is mandatory rather than defaulted.
func Retry(maxRetries int, baseDelay time.Duration, retryable func(error) bool) Middleware {
	return func(next rpc.CallFunc) rpc.CallFunc {
		return func(ctx context.Context, method string, params []json.RawMessage) (json.RawMessage, error) {
			result, err := next(ctx, method, params)
			for attempt := 0; attempt < maxRetries && err != nil && retryable(err); attempt++ {
				select {
				case <-time.After(baseDelay * time.Duration(1<<attempt)):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				result, err = next(ctx, method, params)
			}
			return result, err
		}
	}
}
