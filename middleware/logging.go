package middleware

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"walletrpc/rpc"
)

// Logging records every call with its method, duration, and outcome.
func Logging(log *zap.Logger) Middleware {
	return func(next rpc.CallFunc) rpc.CallFunc {
		return func(ctx context.Context, method string, params []json.RawMessage) (json.RawMessage, error) {
			start := time.Now()
			result, err := next(ctx, method, params)
			if err != nil {
				log.Warn("call failed",
					zap.String("method", method),
					zap.Duration("duration", time.Since(start)),
					zap.Error(err))
				return result, err
			}
			log.Debug("call",
				zap.String("method", method),
				zap.Duration("duration", time.Since(start)))
			return result, err
		}
	}
}
