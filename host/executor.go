package host

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/reglet-dev/scriptnet/domain/entities"
	"github.com/reglet-dev/scriptnet/domain/ports"
	"github.com/reglet-dev/scriptnet/hostfuncs"
	"github.com/reglet-dev/scriptnet/transport"
)

// CallbackExport is the guest function that receives HTTP responses.
const CallbackExport = "on_http_response"

// Executor manages WASM plugins and the transport they share. It is not safe
// for concurrent use: plugin calls, Tick and Close must come from one
// goroutine, the same one that drives the transport.
type Executor struct {
	runtime      wazero.Runtime
	registry     *hostfuncs.HandlerRegistry
	client       *transport.Client
	logger       *zap.Logger
	policy       *transport.AddressPolicy
	plugins      map[string]*PluginInstance
	clientOpts   []transport.Option
	registryOpts []hostfuncs.RegistryOption
}

// NewExecutor creates a new executor with the given options.
func NewExecutor(ctx context.Context, opts ...Option) (*Executor, error) {
	e := &Executor{
		logger:  zap.NewNop(),
		plugins: make(map[string]*PluginInstance),
	}
	for _, opt := range opts {
		opt(e)
	}

	clientOpts := append([]transport.Option{transport.WithLogger(e.logger)}, e.clientOpts...)
	e.client = transport.NewClient(ports.InvokerFunc(e.deliver), clientOpts...)

	registryOpts := append([]hostfuncs.RegistryOption{
		hostfuncs.WithMiddleware(
			hostfuncs.LoggingMiddleware(e.logger),
			hostfuncs.PanicRecoveryMiddleware(),
		),
		hostfuncs.WithBundle(hostfuncs.AllBundles(e.client, e.policy)),
	}, e.registryOpts...)
	reg, err := hostfuncs.NewRegistry(registryOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}
	e.registry = reg

	rt := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, rt)
	e.runtime = rt

	if err := e.registerHostFunctions(ctx); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to register host functions: %w", err)
	}

	return e, nil
}

// Client returns the transport shared by all plugins.
func (e *Executor) Client() *transport.Client {
	return e.client
}

// Registry returns the host function registry.
func (e *Executor) Registry() *hostfuncs.HandlerRegistry {
	return e.registry
}

// Close fails every in-flight request with "transport closed", delivers
// those callbacks, then releases the runtime.
func (e *Executor) Close(ctx context.Context) error {
	closeErr := e.client.Shutdown(ctx)
	return stdErrors.Join(closeErr, e.runtime.Close(ctx))
}

// PluginInstance represents an instantiated WASM plugin.
type PluginInstance struct {
	module api.Module
	name   string
}

// Name returns the name the plugin was loaded under.
func (p *PluginInstance) Name() string {
	return p.name
}

// LoadPlugin instantiates a WASM module under name. The name identifies the
// plugin in callback tokens and logs and must be unique.
func (e *Executor) LoadPlugin(ctx context.Context, name string, wasmBytes []byte) (*PluginInstance, error) {
	if _, exists := e.plugins[name]; exists {
		return nil, fmt.Errorf("plugin %q already loaded", name)
	}

	cfg := wazero.NewModuleConfig().WithName(name).WithStartFunctions()
	mod, err := e.runtime.InstantiateWithConfig(ctx, wasmBytes, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate module: %w", err)
	}

	if init := mod.ExportedFunction("_initialize"); init != nil {
		if _, err := init.Call(ctx); err != nil {
			_ = mod.Close(ctx)
			return nil, fmt.Errorf("failed to call _initialize: %w", err)
		}
	}

	p := &PluginInstance{module: mod, name: name}
	e.plugins[name] = p
	e.logger.Info("plugin loaded", zap.String("plugin", name))
	return p, nil
}

// Call invokes a no-argument export of a loaded plugin. Host functions the
// plugin calls run synchronously on this goroutine.
func (e *Executor) Call(ctx context.Context, p *PluginInstance, export string) error {
	_, err := p.callRaw(ctx, export, nil)
	return err
}

// Tick is one host loop iteration: it advances every transfer and delivers
// finished responses to the plugins' on_http_response exports.
func (e *Executor) Tick(ctx context.Context) error {
	return e.client.Tick(ctx)
}

// RunUntilIdle is the poll driver of the run command: it ticks every
// interval until no request is pending or ctx ends.
func (e *Executor) RunUntilIdle(ctx context.Context, interval time.Duration) error {
	return e.client.RunUntilIdle(ctx, interval)
}

// deliver is the transport invoker: it routes a response to the plugin
// named in the token. ctx carries the drain, so a plugin may issue
// http_request from inside its callback.
func (e *Executor) deliver(ctx context.Context, token any, resp entities.Response) error {
	tok, ok := token.(hostfuncs.CallbackToken)
	if !ok {
		return fmt.Errorf("unexpected callback token %T", token)
	}
	plugin, ok := e.plugins[tok.Caller]
	if !ok {
		return fmt.Errorf("callback %q for unknown plugin %q", tok.Callback, tok.Caller)
	}

	payload, err := json.Marshal(hostfuncs.NewHTTPCallback(tok, resp))
	if err != nil {
		return fmt.Errorf("failed to marshal callback: %w", err)
	}

	if _, err := plugin.callRaw(ctx, CallbackExport, payload); err != nil {
		return fmt.Errorf("plugin %q callback %q: %w", tok.Caller, tok.Callback, err)
	}
	return nil
}
