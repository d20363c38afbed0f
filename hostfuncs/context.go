package hostfuncs

import (
	"context"

	"github.com/google/uuid"
)

// HostContext is the context a handler runs under. It names the function
// being invoked, the plugin that invoked it and a per-call id used to
// correlate log lines.
type HostContext interface {
	context.Context

	FunctionName() string
	Caller() string
	CallID() string
}

type hostContext struct {
	context.Context
	funcName string
	caller   string
	callID   string
}

// NewHostContext starts a call of funcName. The caller is taken from
// WithCaller on ctx.
func NewHostContext(ctx context.Context, funcName string) HostContext {
	return &hostContext{
		Context:  ctx,
		funcName: funcName,
		caller:   CallerFrom(ctx),
		callID:   uuid.NewString(),
	}
}

func (c *hostContext) FunctionName() string { return c.funcName }
func (c *hostContext) Caller() string       { return c.caller }
func (c *hostContext) CallID() string       { return c.callID }

// HostContextFrom returns ctx itself when it already describes a call of
// funcName, and starts a new call otherwise.
func HostContextFrom(ctx context.Context, funcName string) HostContext {
	if hc, ok := ctx.(HostContext); ok && hc.FunctionName() == funcName {
		return hc
	}
	return NewHostContext(ctx, funcName)
}

type callerKey struct{}

// WithCaller records which plugin is calling. The caller becomes part of
// every callback token so the host can route the response back.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom returns the caller recorded by WithCaller, or "".
func CallerFrom(ctx context.Context) string {
	if hc, ok := ctx.(HostContext); ok {
		return hc.Caller()
	}
	caller, _ := ctx.Value(callerKey{}).(string)
	return caller
}
