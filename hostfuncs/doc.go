// Package hostfuncs exposes the HTTP transport to scripts as JSON host
// functions. Handlers are plain Go with no WASM runtime dependency; the host
// package binds them to wazero, and any other runtime can call a
// HandlerRegistry directly.
package hostfuncs
