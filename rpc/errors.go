package rpc

import "errors"

// ErrClosed is the uniform failure every call observes when the
// connection tears down — by explicit Close or by transport fault —
// while the call is outstanding, and the immediate failure of any call
// issued after that. Conn.Err distinguishes the two cases.
var ErrClosed = errors.New("rpc: connection closed")
