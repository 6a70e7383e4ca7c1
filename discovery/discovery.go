// Package discovery locates wallet daemon endpoints. Deployments running
// several daemons behind one logical service register each instance in
// etcd; clients discover the current set and pick one endpoint to dial.
// The connection itself never consults discovery — picking happens
// strictly before Dial, and a lost connection means discovering again.
package discovery

import "context"

// Endpoint is one dialable daemon instance.
type Endpoint struct {
	Addr    string `json:"addr"`
	Weight  int    `json:"weight,omitempty"`
	Version string `json:"version,omitempty"`
}

// Registry tracks which daemon instances currently serve a named
// service.
type Registry interface {
	// Register announces an instance with a TTL in seconds; the entry
	// expires on its own if the daemon stops renewing.
	Register(ctx context.Context, service string, ep Endpoint, ttl int64) error
	Deregister(ctx context.Context, service, addr string) error
	Discover(ctx context.Context, service string) ([]Endpoint, error)
	// Watch emits the full endpoint list after every membership change.
	Watch(ctx context.Context, service string) <-chan []Endpoint
}
