package hostfuncs

import (
	"context"

	"github.com/reglet-dev/scriptnet/transport"
)

// HostFuncBundle is a pre-configured set of related host functions.
// Bundles allow registering multiple handlers at once for common use cases.
type HostFuncBundle interface {
	// Funcs returns the bundle's functions keyed by name.
	Funcs() map[string]Registration
}

type staticBundle struct {
	funcs map[string]Registration
}

func (b *staticBundle) Funcs() map[string]Registration {
	return b.funcs
}

// HTTPBundle returns the script HTTP functions: http_request, http_stats.
// The handlers call client directly, so they must run on the goroutine
// that drives it.
func HTTPBundle(client HTTPClient) HostFuncBundle {
	return &staticBundle{
		funcs: map[string]Registration{
			"http_request": typedRegistration(func(ctx context.Context, req HTTPRequest) (HTTPRequestResponse, error) {
				return PerformHTTPRequest(ctx, client, req)
			}),
			"http_stats": typedRegistration(func(_ context.Context, _ HTTPStatsRequest) (transport.Stats, error) {
				return client.Stats(), nil
			}),
		},
	}
}

// NetfilterBundle returns ssrf_check backed by policy. A nil policy uses the
// default rules.
func NetfilterBundle(policy *transport.AddressPolicy) HostFuncBundle {
	if policy == nil {
		policy = &transport.AddressPolicy{}
	}
	return &staticBundle{
		funcs: map[string]Registration{
			"ssrf_check": typedRegistration(func(ctx context.Context, req SSRFCheckRequest) (SSRFCheckResponse, error) {
				return CheckSSRF(ctx, policy, req)
			}),
		},
	}
}

type compositeBundle struct {
	bundles []HostFuncBundle
}

func (b *compositeBundle) Funcs() map[string]Registration {
	result := make(map[string]Registration)
	for _, bundle := range b.bundles {
		for name, entry := range bundle.Funcs() {
			result[name] = entry
		}
	}
	return result
}

// AllBundles returns every built-in host function:
// http_request, http_stats, ssrf_check.
func AllBundles(client HTTPClient, policy *transport.AddressPolicy) HostFuncBundle {
	return &compositeBundle{
		bundles: []HostFuncBundle{
			HTTPBundle(client),
			NetfilterBundle(policy),
		},
	}
}

// WithBundle registers all functions from a bundle.
func WithBundle(bundle HostFuncBundle) RegistryOption {
	return func(b *registryBuilder) {
		for name, entry := range bundle.Funcs() {
			if err := b.add(name, entry); err != nil {
				b.errors = append(b.errors, err)
			}
		}
	}
}
