package rpc_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"walletrpc/rpc"
	"walletrpc/wire"
)

// pipeConn returns a Conn and the scripted far end of its stream.
func pipeConn(t *testing.T, opts ...rpc.Option) (*rpc.Conn, *wire.Framer, net.Conn) {
	t.Helper()
	clientEnd, serverEnd := net.Pipe()
	opts = append([]rpc.Option{rpc.WithLogger(zaptest.NewLogger(t))}, opts...)
	conn := rpc.NewConn(clientEnd, opts...)
	t.Cleanup(func() {
		conn.Close()
		serverEnd.Close()
	})
	return conn, wire.NewFramer(serverEnd), serverEnd
}

// serveEcho answers every request with its first param (or null).
func serveEcho(f *wire.Framer) {
	for {
		msg, err := f.Read()
		if err != nil {
			return
		}
		var result json.RawMessage
		if len(msg.Params) > 0 {
			result = msg.Params[0]
		}
		if err := f.WriteResult(msg.ID, result); err != nil {
			return
		}
	}
}

func TestCallReturnsResult(t *testing.T) {
	conn, remote, _ := pipeConn(t)
	go func() {
		msg, err := remote.Read()
		if err != nil {
			return
		}
		remote.WriteResult(msg.ID, json.RawMessage(`500`))
	}()

	var balance int
	require.NoError(t, conn.Call(context.Background(), "getbalance", &balance, 0))
	assert.Equal(t, 500, balance)
}

func TestCallReturnsRemoteError(t *testing.T) {
	conn, remote, _ := pipeConn(t)
	go func() {
		msg, err := remote.Read()
		if err != nil {
			return
		}
		remote.WriteError(msg.ID, wire.Errorf(1, "insufficient funds"))
	}()

	err := conn.Call(context.Background(), "transfer", nil, 10, "XTSabc")
	var werr *wire.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, int64(1), werr.Code)
	assert.Equal(t, "insufficient funds", werr.Message)
}

func TestResponsesCorrelateByIDNotArrival(t *testing.T) {
	conn, remote, _ := pipeConn(t)

	// Hold both requests, then answer them in reverse order.
	go func() {
		first, err := remote.Read()
		if err != nil {
			return
		}
		second, err := remote.Read()
		if err != nil {
			return
		}
		remote.WriteResult(second.ID, second.Params[0])
		remote.WriteResult(first.ID, first.Params[0])
	}()

	var wg sync.WaitGroup
	for _, want := range []int{33, 44} {
		want := want
		wg.Add(1)
		go func() {
			defer wg.Done()
			var got int
			if assert.NoError(t, conn.Call(context.Background(), "echo", &got, want)) {
				assert.Equal(t, want, got)
			}
		}()
	}
	wg.Wait()
}

func TestConcurrentCallsGetDistinctIDs(t *testing.T) {
	conn, remote, _ := pipeConn(t)

	var idMu sync.Mutex
	seen := make(map[uint64]bool)
	go func() {
		for {
			msg, err := remote.Read()
			if err != nil {
				return
			}
			idMu.Lock()
			if seen[msg.ID] {
				idMu.Unlock()
				remote.WriteError(msg.ID, wire.Errorf(wire.CodeInvalidRequest, "duplicate id %d", msg.ID))
				continue
			}
			seen[msg.ID] = true
			idMu.Unlock()
			remote.WriteResult(msg.ID, msg.Params[0])
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			var got int
			if assert.NoError(t, conn.Call(context.Background(), "echo", &got, n)) {
				assert.Equal(t, n, got)
			}
		}(i)
	}
	wg.Wait()

	idMu.Lock()
	defer idMu.Unlock()
	assert.Len(t, seen, 50)
}

func TestCloseFailsPendingAndFutureCalls(t *testing.T) {
	conn, remote, _ := pipeConn(t)

	// Swallow the request and never answer it.
	go func() { remote.Read() }()

	errCh := make(chan error, 1)
	go func() {
		errCh <- conn.Call(context.Background(), "getbalance", nil, 0)
	}()
	time.Sleep(20 * time.Millisecond) // let the call get registered

	require.NoError(t, conn.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, rpc.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("pending call not resolved by Close")
	}

	select {
	case <-conn.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after Close")
	}

	// Fails fast, without touching the stream: nothing reads the far end
	// of the pipe anymore, so a write attempt would block.
	err := conn.Call(context.Background(), "getbalance", nil, 0)
	assert.ErrorIs(t, err, rpc.ErrClosed)
	assert.NoError(t, conn.Err(), "explicit close records no fault")
}

func TestRemoteDisconnectFailsPendingCall(t *testing.T) {
	conn, remote, serverEnd := pipeConn(t)

	go func() {
		if _, err := remote.Read(); err != nil {
			return
		}
		serverEnd.Close() // daemon dies with the call in flight
	}()

	err := conn.Call(context.Background(), "getbalance", nil, 0)
	assert.ErrorIs(t, err, rpc.ErrClosed)

	select {
	case <-conn.Done():
	case <-time.After(time.Second):
		t.Fatal("connection did not reach closed state")
	}
	assert.Error(t, conn.Err(), "transport fault recorded as cause")
}

func TestDeadlineAbandonsCall(t *testing.T) {
	conn, remote, _ := pipeConn(t)

	gotID := make(chan uint64, 1)
	go func() {
		msg, err := remote.Read()
		if err != nil {
			return
		}
		gotID <- msg.ID
		// Then serve normally so the connection stays usable.
		serveEcho(remote)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := conn.Call(ctx, "getbalance", nil, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// A late answer for the abandoned id must not disturb anything.
	id := <-gotID
	require.NoError(t, remoteWrite(remote, id))

	var got int
	require.NoError(t, conn.Call(context.Background(), "echo", &got, 7))
	assert.Equal(t, 7, got)
}

// remoteWrite sends a stale result frame for id.
func remoteWrite(f *wire.Framer, id uint64) error {
	return f.WriteResult(id, json.RawMessage(`123`))
}

func TestUnsolicitedResponseIsHarmless(t *testing.T) {
	conn, remote, _ := pipeConn(t)

	go func() {
		// An id nothing is waiting on, then normal service.
		remote.WriteResult(999, json.RawMessage(`true`))
		serveEcho(remote)
	}()

	var got int
	require.NoError(t, conn.Call(context.Background(), "echo", &got, 5))
	assert.Equal(t, 5, got)
}

func TestNotificationsReachHandler(t *testing.T) {
	notified := make(chan string, 1)
	_, remote, _ := pipeConn(t, rpc.WithNotificationHandler(func(method string, params []json.RawMessage) {
		notified <- method
	}))

	params, err := wire.EncodeParams(1042)
	require.NoError(t, err)
	require.NoError(t, remote.WriteNotification("block_applied", params))

	select {
	case method := <-notified:
		assert.Equal(t, "block_applied", method)
	case <-time.After(time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestEncodeErrorSurfacesBeforeWrite(t *testing.T) {
	conn, _, _ := pipeConn(t)
	err := conn.Call(context.Background(), "transfer", nil, func() {}) // funcs don't marshal
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encode transfer params")
}

func TestDecodeMismatchSurfaces(t *testing.T) {
	conn, remote, _ := pipeConn(t)
	go func() {
		msg, err := remote.Read()
		if err != nil {
			return
		}
		remote.WriteResult(msg.ID, json.RawMessage(`"not a number"`))
	}()

	var got int
	err := conn.Call(context.Background(), "getbalance", &got, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode getbalance result")
}

func TestCloseIsIdempotent(t *testing.T) {
	conn, _, _ := pipeConn(t)
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
}

func TestCloseResolvesManyPendingCalls(t *testing.T) {
	conn, remote, _ := pipeConn(t)
	go func() {
		for {
			if _, err := remote.Read(); err != nil {
				return
			}
		}
	}()

	const n = 20
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			errs <- conn.Call(context.Background(), "getbalance", nil, 0)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, conn.Close())

	for i := 0; i < n; i++ {
		select {
		case err := <-errs:
			assert.ErrorIs(t, err, rpc.ErrClosed)
		case <-time.After(time.Second):
			t.Fatalf("call %d never resolved", i)
		}
	}
}

func TestMiddlewareWrapsCalls(t *testing.T) {
	var order []string
	mw := func(tag string) func(rpc.CallFunc) rpc.CallFunc {
		return func(next rpc.CallFunc) rpc.CallFunc {
			return func(ctx context.Context, method string, params []json.RawMessage) (json.RawMessage, error) {
				order = append(order, tag)
				return next(ctx, method, params)
			}
		}
	}

	conn, remote, _ := pipeConn(t, rpc.WithMiddleware(mw("outer"), mw("inner")))
	go serveEcho(remote)

	var got int
	require.NoError(t, conn.Call(context.Background(), "echo", &got, 1))
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestDialFailureIsReturned(t *testing.T) {
	// A listener that is immediately closed: connect must be refused.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = rpc.Dial(addr, rpc.WithDialTimeout(500*time.Millisecond))
	require.Error(t, err)
	assert.False(t, errors.Is(err, rpc.ErrClosed))
}
