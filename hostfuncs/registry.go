package hostfuncs

import (
	"context"
	"fmt"
	"sort"
)

// Registration is one registered host function. Request and Response hold zero
// values of the typed payloads and drive schema generation; they are nil for
// raw byte handlers.
type Registration struct {
	Handler  ByteHandler
	Request  any
	Response any
}

// HandlerRegistry is an immutable collection of named host functions.
// Once created via NewRegistry, handlers cannot be added or removed.
// This ensures thread safety and lock-free lookups during execution.
type HandlerRegistry struct {
	handlers map[string]ByteHandler
	entries  map[string]Registration
	names    []string // sorted for consistent iteration
}

// registryBuilder accumulates configuration during registry construction.
type registryBuilder struct {
	entries    map[string]Registration
	middleware []Middleware
	errors     []error
}

// NewRegistry creates an immutable HandlerRegistry with the given options.
// Returns an error if any handler name is registered twice.
//
// Example usage:
//
//	registry, err := NewRegistry(
//	    WithMiddleware(LoggingMiddleware(logger), PanicRecoveryMiddleware()),
//	    WithBundle(HTTPBundle(client)),
//	    WithHandler("custom", customHandler),
//	)
func NewRegistry(opts ...RegistryOption) (*HandlerRegistry, error) {
	b := &registryBuilder{
		entries: make(map[string]Registration),
	}

	for _, opt := range opts {
		opt(b)
	}

	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}

	names := make([]string, 0, len(b.entries))
	for name := range b.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	// First middleware wraps outermost.
	wrapped := make(map[string]ByteHandler, len(b.entries))
	for name, entry := range b.entries {
		handler := entry.Handler
		for i := len(b.middleware) - 1; i >= 0; i-- {
			handler = b.middleware[i](handler)
		}
		wrapped[name] = handler
	}

	return &HandlerRegistry{
		handlers: wrapped,
		entries:  b.entries,
		names:    names,
	}, nil
}

// Invoke dispatches a host function call by name.
// Returns the JSON response bytes, or an ErrorResponse JSON if the handler is not found.
func (r *HandlerRegistry) Invoke(ctx context.Context, name string, payload []byte) ([]byte, error) {
	handler, ok := r.handlers[name]
	if !ok {
		return NewNotFoundError(name).ToJSON(), nil
	}
	return handler(HostContextFrom(ctx, name), payload)
}

// Has returns true if a handler with the given name is registered.
func (r *HandlerRegistry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Names returns a sorted list of all registered handler names.
func (r *HandlerRegistry) Names() []string {
	result := make([]string, len(r.names))
	copy(result, r.names)
	return result
}

// Lookup returns the registration of name.
func (r *HandlerRegistry) Lookup(name string) (Registration, bool) {
	entry, ok := r.entries[name]
	return entry, ok
}

func (b *registryBuilder) add(name string, entry Registration) error {
	if name == "" {
		return fmt.Errorf("handler name cannot be empty")
	}
	if entry.Handler == nil {
		return fmt.Errorf("handler %q is nil", name)
	}
	if _, exists := b.entries[name]; exists {
		return fmt.Errorf("duplicate handler name: %q", name)
	}
	b.entries[name] = entry
	return nil
}

// WithByteHandler registers a raw ByteHandler with the given name.
// Use WithHandler for type-safe registration with automatic JSON handling.
func WithByteHandler(name string, handler ByteHandler) RegistryOption {
	return func(b *registryBuilder) {
		if err := b.add(name, Registration{Handler: handler}); err != nil {
			b.errors = append(b.errors, err)
		}
	}
}

// WithHandler registers a typed host function with automatic JSON handling.
//
// Example usage:
//
//	WithHandler("custom_func", func(ctx context.Context, req MyRequest) (MyResponse, error) {
//	    return MyResponse{Result: req.Input}, nil
//	})
func WithHandler[Req any, Resp any](name string, fn HostFunc[Req, Resp]) RegistryOption {
	return func(b *registryBuilder) {
		if err := b.add(name, typedRegistration(fn)); err != nil {
			b.errors = append(b.errors, err)
		}
	}
}

// WithMiddleware adds middleware to the registry.
// Middleware executes in FIFO order (first added wraps first).
func WithMiddleware(mw ...Middleware) RegistryOption {
	return func(b *registryBuilder) {
		b.middleware = append(b.middleware, mw...)
	}
}

func typedRegistration[Req any, Resp any](fn HostFunc[Req, Resp]) Registration {
	var (
		req  Req
		resp Resp
	)
	return Registration{Handler: NewJSONHandler(fn), Request: req, Response: resp}
}
