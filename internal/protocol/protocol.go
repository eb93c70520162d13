// Package protocol defines the uniform adapter capability set every
// wire-protocol implementation satisfies, and a Registry that selects a
// concrete implementation by protocol tag. This replaces a dynamic
// class-path template field with a finite discriminated sum over
// protocols; extensibility comes from registering a Factory at process
// start, never from runtime reflection.
package protocol

import (
	"context"

	"github.com/taxpoynt/connector-framework/internal/domain/connector"
)

// Adapter is the capability every protocol implementation provides.
type Adapter interface {
	// Open prepares the adapter for use: fetching a WSDL, running GraphQL
	// introspection, discovering OData $metadata, etc. Adapters for which
	// this is a no-op still implement it.
	Open(ctx context.Context, cfg *connector.Config) error

	// Authenticate applies credential material the auth manager produced
	// to the adapter's own session state (e.g. caching a CSRF token).
	Authenticate(ctx context.Context, headers map[string]string) error

	// Test performs a cheap connectivity check and returns the measured
	// latency in milliseconds.
	Test(ctx context.Context) (latencyMS int64, err error)

	// Execute sends one request and returns the decoded response.
	Execute(ctx context.Context, req *connector.Request) (*connector.Response, error)

	// Close releases adapter-held resources. Must be idempotent.
	Close(ctx context.Context) error
}

// Factory constructs a new, unopened Adapter for a given connector config.
type Factory func(cfg *connector.Config) Adapter

// Registry maps a connector.Protocol to the Factory that builds adapters
// for it.
type Registry struct {
	factories map[connector.Protocol]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[connector.Protocol]Factory)}
}

// Register associates a protocol tag with a Factory. Re-registering a
// protocol overwrites the previous factory.
func (r *Registry) Register(p connector.Protocol, f Factory) {
	r.factories[p] = f
}

// New builds an adapter for the given config's protocol. Returns false if
// no factory is registered for that protocol.
func (r *Registry) New(cfg *connector.Config) (Adapter, bool) {
	f, ok := r.factories[cfg.Protocol]
	if !ok {
		return nil, false
	}
	return f(cfg), true
}
