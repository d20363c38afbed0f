// Package transport is the asynchronous HTTP layer behind a script host.
//
// A host creates one Client at startup and drives it from its own loop: every
// iteration calls Tick (Pump then Drain). Enqueue validates and admits a
// request synchronously; Pump advances every active transfer without
// blocking; Drain hands each finished request to the host Invoker exactly once
// and releases it.
//
// All Client methods must be called from the single goroutine that drives the
// host loop. Invoker callbacks run on that goroutine and may enqueue through
// EnqueueContext with the ctx they were invoked with. Any other call that
// overlaps a running Pump, Drain, Tick or Enqueue is a contract violation and
// panics with errors.ErrConcurrentUse.
package transport
