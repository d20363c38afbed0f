// Package host runs WASM plugins that use the scriptnet HTTP transport.
//
// It abstracts the underlying WASM engine (wazero), manages plugin lifecycle,
// and handles the low-level ABI interactions (memory allocation, data
// packing/unpacking). Plugins import the host functions from the
// "scriptnet_host" module and receive responses through their exported
// on_http_response function, which the Executor calls from Tick.
package host
