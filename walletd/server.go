// Package walletd implements a wallet daemon speaking the same wire
// protocol the client dials. It exists for tests and local development:
// the handler registry serves scripted behaviors, and Simulator provides
// a complete in-memory wallet behind the real method set.
//
// Request pipeline:
//
//	Accept conn → handleConn (single goroutine reads frames)
//	  → for each request: go handleRequest (parallel processing)
//	    → handler lookup → handler(params) → write response under conn's write lock
package walletd

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"walletrpc/wire"
)

// Handler serves one method. It returns the result value to encode, or
// an error; a *wire.Error travels to the client verbatim, anything else
// is wrapped as an internal error.
type Handler func(ctx context.Context, params []json.RawMessage) (any, error)

// Server accepts connections and dispatches requests to registered
// handlers.
type Server struct {
	log      *zap.Logger
	listener net.Listener
	wg       sync.WaitGroup // in-flight requests, for graceful shutdown
	shutdown atomic.Bool

	mu       sync.Mutex
	handlers map[string]Handler
	conns    map[net.Conn]*connWriter
}

// connWriter pairs a connection's framer with the lock serializing
// writes to it. Request goroutines and notification broadcasts share it.
type connWriter struct {
	mu     sync.Mutex
	framer *wire.Framer
}

// NewServer returns a server with no handlers registered.
func NewServer(log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		log:      log,
		handlers: make(map[string]Handler),
		conns:    make(map[net.Conn]*connWriter),
	}
}

// Handle registers (or replaces) the handler for a method.
func (s *Server) Handle(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// ListenAndServe listens on addr and serves until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve accepts connections on listener until Shutdown. One goroutine
// reads each connection; each request runs in its own goroutine so a
// slow handler cannot stall the others on the same connection.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

// Addr reports the listen address, once Serve has begun.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	w := &connWriter{framer: wire.NewFramer(conn)}
	s.mu.Lock()
	s.conns[conn] = w
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	for {
		msg, err := w.framer.Read()
		if err != nil {
			return // client went away or stream corrupted
		}
		if msg.Kind != wire.KindRequest {
			s.log.Warn("ignoring non-request frame", zap.Uint64("id", msg.ID))
			continue
		}
		go s.handleRequest(w, msg)
	}
}

func (s *Server) handleRequest(w *connWriter, msg *wire.Message) {
	s.wg.Add(1)
	defer s.wg.Done()

	s.mu.Lock()
	h, ok := s.handlers[msg.Method]
	s.mu.Unlock()

	if !ok {
		s.writeError(w, msg.ID, wire.Errorf(wire.CodeMethodNotFound, "unknown method %q", msg.Method))
		return
	}

	result, err := h(context.Background(), msg.Params)
	if err != nil {
		werr, ok := err.(*wire.Error)
		if !ok {
			werr = wire.Errorf(wire.CodeInternalError, "%s", err.Error())
		}
		s.writeError(w, msg.ID, werr)
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		s.log.Error("encode result", zap.String("method", msg.Method), zap.Error(err))
		s.writeError(w, msg.ID, wire.Errorf(wire.CodeInternalError, "encode result: %s", err))
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.framer.WriteResult(msg.ID, payload); err != nil {
		s.log.Warn("write response", zap.Error(err))
	}
}

func (s *Server) writeError(w *connWriter, id uint64, werr *wire.Error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.framer.WriteError(id, werr); err != nil {
		s.log.Warn("write error response", zap.Error(err))
	}
}

// Notify pushes an out-of-band frame to every connected client.
func (s *Server) Notify(method string, args ...any) error {
	params, err := wire.EncodeParams(args...)
	if err != nil {
		return err
	}

	s.mu.Lock()
	writers := make([]*connWriter, 0, len(s.conns))
	for _, w := range s.conns {
		writers = append(writers, w)
	}
	s.mu.Unlock()

	for _, w := range writers {
		w.mu.Lock()
		err := w.framer.WriteNotification(method, params)
		w.mu.Unlock()
		if err != nil {
			s.log.Debug("notify failed", zap.String("method", method), zap.Error(err))
		}
	}
	return nil
}

// Shutdown stops accepting, closes open connections, and waits up to
// timeout for in-flight requests to drain.
func (s *Server) Shutdown(timeout time.Duration) error {
	// Flag first: the Accept error caused by closing the listener must
	// read as an intentional stop, not a failure.
	s.shutdown.Store(true)

	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for in-flight requests")
	}
}
