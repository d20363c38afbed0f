package host

import (
	"go.uber.org/zap"

	"github.com/reglet-dev/scriptnet/hostfuncs"
	"github.com/reglet-dev/scriptnet/transport"
)

// Option defines a functional option for configuring the Executor.
type Option func(*Executor)

// WithLogger sets the logger for host functions, plugin logs and the transport.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTransportOptions configures the Client the executor creates.
func WithTransportOptions(opts ...transport.Option) Option {
	return func(e *Executor) {
		e.clientOpts = append(e.clientOpts, opts...)
	}
}

// WithAddressPolicy sets the policy behind the ssrf_check host function.
func WithAddressPolicy(policy *transport.AddressPolicy) Option {
	return func(e *Executor) {
		e.policy = policy
	}
}

// WithHostFunctions registers extra host functions or middleware next to
// the built-in bundles.
func WithHostFunctions(opts ...hostfuncs.RegistryOption) Option {
	return func(e *Executor) {
		e.registryOpts = append(e.registryOpts, opts...)
	}
}
