// Package middleware provides caller-side interceptors over the untyped
// call primitive. The connection core applies no policy of its own;
// anything beyond a plain round trip — logging, deadlines, rate
// limiting, retry — is wrapped around it explicitly by whoever owns the
// connection.
package middleware

import "walletrpc/rpc"

// Middleware wraps a CallFunc with extra behavior.
type Middleware func(next rpc.CallFunc) rpc.CallFunc

// Chain composes middlewares into one. Chain(A, B, C) yields the onion
// A(B(C(next))): A sees the call first and the result last.
func Chain(middlewares ...Middleware) Middleware {
	return func(next rpc.CallFunc) rpc.CallFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
