package ports

import (
	"context"

	"github.com/reglet-dev/scriptnet/domain/entities"
)

// Invoker delivers a finished request to the host's scripting environment.
// The token is the value the script handed to Enqueue; the transport never
// looks inside it. Invoke is called exactly once per accepted request, on the
// goroutine that drains the transport.
//
// ctx is derived from the context the drain was started with. A callback that
// enqueues a follow-up request must pass ctx to the transport so the call is
// recognised as part of the drain.
type Invoker interface {
	Invoke(ctx context.Context, token any, resp entities.Response) error
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, token any, resp entities.Response) error

// Invoke calls f(ctx, token, resp).
func (f InvokerFunc) Invoke(ctx context.Context, token any, resp entities.Response) error {
	return f(ctx, token, resp)
}
