// Package rpc turns one connected duplex stream into a request/response
// multiplexer with blocking call semantics.
//
// Conn lets any number of goroutines issue calls over a single TCP
// connection. Each call gets a unique correlation id, and a background
// goroutine (dispatchLoop) continuously reads responses and routes them
// to the right caller via per-call channels.
//
//	goroutine-1 ──Call(id=1)──┐
//	goroutine-2 ──Call(id=2)──┼──→ single TCP conn ──→ walletd
//	goroutine-3 ──Call(id=3)──┘
//
//	dispatchLoop:  ←── response(id=2) → pending[2] chan ← goroutine-2 wakes up
//
// Responses may arrive in any order; correlation is by id alone, never by
// arrival order. There is no automatic reconnect: once a Conn tears down,
// every outstanding and future call fails with ErrClosed and the caller
// must dial a fresh Conn.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"walletrpc/wire"
)

// CallFunc is the untyped call primitive: one request on the wire, one
// decoded result or error back. Middleware wraps values of this type.
type CallFunc func(ctx context.Context, method string, params []json.RawMessage) (json.RawMessage, error)

// NotificationHandler receives out-of-band frames the daemon pushes
// without a matching request.
type NotificationHandler func(method string, params []json.RawMessage)

// outcome is the terminal resolution of one pending call. Exactly one
// outcome is ever delivered per call.
type outcome struct {
	result json.RawMessage
	err    error
}

// Conn is a live session with the daemon. It exclusively owns the
// underlying stream and closes it exactly once, whichever path triggers
// teardown first.
type Conn struct {
	sock   net.Conn
	framer *wire.Framer
	log    *zap.Logger
	notify NotificationHandler
	invoke CallFunc // roundTrip wrapped in the configured middleware

	writeMu sync.Mutex // serializes frame writes; requests hit the wire in Call order

	mu      sync.Mutex
	seq     uint64                  // last issued correlation id; never reused
	pending map[uint64]chan outcome // outstanding calls by id
	closed  bool
	cause   error // non-nil when teardown came from a transport fault

	closeOnce sync.Once
	done      chan struct{}
}

// Dial opens a TCP connection to addr and starts the dispatch loop.
// Connect failures are returned as-is and never retried here; retry
// policy belongs to the caller.
func Dial(addr string, opts ...Option) (*Conn, error) {
	o := applyOptions(opts)
	sock, err := net.DialTimeout("tcp", addr, o.dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return newConn(sock, o), nil
}

// NewConn wraps an already-connected stream (a net.Pipe end, a TLS
// session, ...) the same way Dial would.
func NewConn(sock net.Conn, opts ...Option) *Conn {
	return newConn(sock, applyOptions(opts))
}

func newConn(sock net.Conn, o options) *Conn {
	c := &Conn{
		sock:    sock,
		framer:  wire.NewFramer(sock),
		log:     o.logger,
		notify:  o.notify,
		pending: make(map[uint64]chan outcome),
		done:    make(chan struct{}),
	}
	c.invoke = c.roundTrip
	// Onion order: the first middleware given sees the call first.
	for i := len(o.middlewares) - 1; i >= 0; i-- {
		c.invoke = o.middlewares[i](c.invoke)
	}
	go c.dispatchLoop()
	return c
}

// Call invokes a remote method and blocks until it resolves. Typed
// arguments are encoded in order as the params list; the result payload
// is decoded into result unless result is nil.
//
// The error is one of: a remote *wire.Error (errors.As), a local
// encode/decode error, ErrClosed if the connection tore down while the
// call was outstanding, or ctx's error if the deadline expired first.
// On deadline expiry the request is abandoned locally — the protocol has
// no cancel message — and its pending entry is removed so a late
// response is treated as unsolicited.
func (c *Conn) Call(ctx context.Context, method string, result any, args ...any) error {
	params, err := wire.EncodeParams(args...)
	if err != nil {
		return fmt.Errorf("encode %s params: %w", method, err)
	}
	raw, err := c.invoke(ctx, method, params)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// Invoke runs the untyped call primitive through the configured
// middleware chain. Call is sugar over this.
func (c *Conn) Invoke(ctx context.Context, method string, params []json.RawMessage) (json.RawMessage, error) {
	return c.invoke(ctx, method, params)
}

// roundTrip registers a pending call, writes the request frame, and
// suspends until the dispatch loop (or teardown, or ctx) resolves it.
func (c *Conn) roundTrip(ctx context.Context, method string, params []json.RawMessage) (json.RawMessage, error) {
	// Buffered so neither the dispatch loop nor teardown ever blocks on
	// a caller that already gave up.
	ch := make(chan outcome, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("call %s: %w", method, ErrClosed)
	}
	c.seq++
	id := c.seq
	c.pending[id] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err := c.framer.WriteRequest(id, method, params)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		if c.isClosed() {
			return nil, fmt.Errorf("call %s: %w", method, ErrClosed)
		}
		return nil, fmt.Errorf("call %s: write: %w", method, err)
	}

	select {
	case out := <-ch:
		return out.result, out.err
	case <-ctx.Done():
		c.forget(id)
		return nil, fmt.Errorf("call %s: %w", method, ctx.Err())
	}
}

// dispatchLoop runs once per Conn for its whole lifetime, reading one
// frame at a time and routing it. It never suspends on anything but the
// next read, and only an unrecoverable stream fault stops it — in which
// case it triggers the same teardown path as Close so no caller hangs.
func (c *Conn) dispatchLoop() {
	for {
		msg, err := c.framer.Read()
		if err != nil {
			c.teardown(err)
			return
		}
		switch msg.Kind {
		case wire.KindResponse:
			c.resolve(msg)
		case wire.KindNotification:
			if c.notify != nil {
				c.notify(msg.Method, msg.Params)
			} else {
				c.log.Debug("dropping notification", zap.String("method", msg.Method))
			}
		default:
			// A request frame from the far end: the daemon must not send
			// these. Report and keep serving.
			c.log.Warn("unexpected request frame from remote",
				zap.Uint64("id", msg.ID), zap.String("method", msg.Method))
		}
	}
}

// resolve wakes the caller waiting on msg.ID. A response whose id
// matches nothing outstanding (already timed out, or never issued) is a
// protocol anomaly: reported, never fatal, and it cannot disturb any
// other call.
func (c *Conn) resolve(msg *wire.Message) {
	c.mu.Lock()
	ch, ok := c.pending[msg.ID]
	delete(c.pending, msg.ID)
	c.mu.Unlock()

	if !ok {
		c.log.Warn("response for unknown call", zap.Uint64("id", msg.ID))
		return
	}
	if msg.Err != nil {
		ch <- outcome{err: msg.Err}
		return
	}
	ch <- outcome{result: msg.Result}
}

// forget removes a pending entry without resolving it, after its caller
// stopped waiting. Ids are never reused, so a late response for a
// forgotten id can only ever be logged as unknown.
func (c *Conn) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// teardown is the single exit path for a Conn. The first trigger —
// explicit Close (cause == nil) or a fatal read/transport error — closes
// the socket and fails every still-pending call with ErrClosed; later
// triggers are no-ops.
func (c *Conn) teardown(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.cause = cause
		stalled := c.pending
		c.pending = nil
		c.mu.Unlock()

		c.sock.Close()
		for _, ch := range stalled {
			ch <- outcome{err: ErrClosed}
		}
		close(c.done)

		if cause != nil {
			c.log.Warn("connection lost", zap.Error(cause))
		}
	})
}

// Close tears the connection down. Idempotent: closing an already-closed
// Conn is a no-op. Every call still in flight fails with ErrClosed, and
// any later Call fails immediately without touching the stream.
func (c *Conn) Close() error {
	c.teardown(nil)
	return nil
}

// Done is closed once teardown has finished and all pending calls are
// resolved.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err reports why the connection tore down: nil while it is alive or
// after an explicit Close, the transport fault otherwise.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cause
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// RemoteAddr reports the daemon's address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.sock.RemoteAddr()
}
