package middleware

import (
	"context"
	"encoding/json"
	"time"

	"walletrpc/rpc"
)

// Timeout bounds every call with a deadline, unless the caller's context
// already carries a tighter one. On expiry the call returns the context
// error and the request is abandoned locally; the protocol has no cancel
// message, so nothing more goes on the wire.
func Timeout(d time.Duration) Middleware {
	return func(next rpc.CallFunc) rpc.CallFunc {
		return func(ctx context.Context, method string, params []json.RawMessage) (json.RawMessage, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, method, params)
		}
	}
}
