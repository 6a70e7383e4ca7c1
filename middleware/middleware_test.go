package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"walletrpc/rpc"
)

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next rpc.CallFunc) rpc.CallFunc {
			return func(ctx context.Context, method string, params []json.RawMessage) (json.RawMessage, error) {
				order = append(order, name+" in")
				result, err := next(ctx, method, params)
				order = append(order, name+" out")
				return result, err
			}
		}
	}

	chained := Chain(tag("A"), tag("B"))(func(context.Context, string, []json.RawMessage) (json.RawMessage, error) {
		order = append(order, "call")
		return nil, nil
	})
	_, err := chained(context.Background(), "noop", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"A in", "B in", "call", "B out", "A out"}, order)
}

func TestTimeoutExpires(t *testing.T) {
	slow := func(ctx context.Context, _ string, _ []json.RawMessage) (json.RawMessage, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	wrapped := Timeout(20 * time.Millisecond)(slow)
	_, err := wrapped(context.Background(), "getbalance", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	permanent := errors.New("bad params")
	attempts := 0
	failing := func(context.Context, string, []json.RawMessage) (json.RawMessage, error) {
		attempts++
		return nil, permanent
	}

	wrapped := Retry(3, time.Millisecond, func(err error) bool { return false })(failing)
	_, err := wrapped(context.Background(), "transfer", nil)
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)
}

func TestRetryEventuallySucceeds(t *testing.T) {
	transient := errors.New("daemon busy")
	attempts := 0
	flaky := func(context.Context, string, []json.RawMessage) (json.RawMessage, error) {
		attempts++
		if attempts < 3 {
			return nil, transient
		}
		return json.RawMessage(`true`), nil
	}

	wrapped := Retry(5, time.Millisecond, func(err error) bool { return errors.Is(err, transient) })(flaky)
	result, err := wrapped(context.Background(), "transfer", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `true`, string(result))
	assert.Equal(t, 3, attempts)
}

func TestRetryHonorsContext(t *testing.T) {
	transient := errors.New("daemon busy")
	failing := func(context.Context, string, []json.RawMessage) (json.RawMessage, error) {
		return nil, transient
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	wrapped := Retry(100, 50*time.Millisecond, func(error) bool { return true })(failing)
	_, err := wrapped(ctx, "transfer", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimitRespectsDeadline(t *testing.T) {
	calls := 0
	count := func(context.Context, string, []json.RawMessage) (json.RawMessage, error) {
		calls++
		return nil, nil
	}

	// Burst of one: the first call passes, the second has to wait a full
	// second and the context gives up first.
	wrapped := RateLimit(1, 1)(count)
	_, err := wrapped(context.Background(), "getbalance", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = wrapped(ctx, "getbalance", nil)
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestLoggingPassesThrough(t *testing.T) {
	wrapped := Logging(zaptest.NewLogger(t))(func(context.Context, string, []json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`42`), nil
	})
	result, err := wrapped(context.Background(), "getbalance", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `42`, string(result))
}
