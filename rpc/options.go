package rpc

import (
	"time"

	"go.uber.org/zap"
)

const defaultDialTimeout = 10 * time.Second

type options struct {
	logger      *zap.Logger
	dialTimeout time.Duration
	notify      NotificationHandler
	middlewares []func(CallFunc) CallFunc
}

// Option configures a Conn at creation time.
type Option func(*options)

func applyOptions(opts []Option) options {
	o := options{
		logger:      zap.NewNop(),
		dialTimeout: defaultDialTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger attaches a logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.logger = log }
}

// WithDialTimeout bounds how long Dial waits for the transport to open.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) { o.dialTimeout = d }
}

// WithNotificationHandler registers a handler for out-of-band frames.
// Without one, notifications are logged at debug level and dropped.
// The handler runs on the dispatch goroutine, so it must not block.
func WithNotificationHandler(h NotificationHandler) Option {
	return func(o *options) { o.notify = h }
}

// WithMiddleware wraps the call primitive. The first middleware given is
// outermost. The core applies no policy of its own — in particular no
// retry — so anything beyond a plain round trip is opt-in here.
func WithMiddleware(mws ...func(CallFunc) CallFunc) Option {
	return func(o *options) { o.middlewares = append(o.middlewares, mws...) }
}
