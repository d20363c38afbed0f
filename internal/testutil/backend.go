package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/reglet-dev/scriptnet/domain/entities"
	"github.com/reglet-dev/scriptnet/domain/ports"
)

// FakeBackend records started transfers and lets tests script their events.
type FakeBackend struct {
	// StartErr, when set, makes Start fail.
	StartErr error

	mu        sync.Mutex
	transfers []*FakeTransfer
}

// Start implements ports.Backend.
func (b *FakeBackend) Start(req ports.TransferRequest) (ports.Transfer, error) {
	if b.StartErr != nil {
		return nil, b.StartErr
	}
	t := &FakeTransfer{
		Request: req,
		events:  make(chan ports.TransferEvent, 1024),
	}
	b.mu.Lock()
	b.transfers = append(b.transfers, t)
	b.mu.Unlock()
	return t, nil
}

// Transfers returns every transfer started so far, in start order.
func (b *FakeBackend) Transfers() []*FakeTransfer {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*FakeTransfer, len(b.transfers))
	copy(out, b.transfers)
	return out
}

// Last returns the most recently started transfer, or nil.
func (b *FakeBackend) Last() *FakeTransfer {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.transfers) == 0 {
		return nil
	}
	return b.transfers[len(b.transfers)-1]
}

// FakeTransfer is a scripted ports.Transfer.
type FakeTransfer struct {
	Request ports.TransferRequest

	events  chan ports.TransferEvent
	aborted atomic.Bool
}

func (t *FakeTransfer) Events() <-chan ports.TransferEvent {
	return t.events
}

func (t *FakeTransfer) Abort() {
	t.aborted.Store(true)
}

// Aborted reports whether the engine aborted the transfer.
func (t *FakeTransfer) Aborted() bool {
	return t.aborted.Load()
}

// Connect publishes EventConnected.
func (t *FakeTransfer) Connect() *FakeTransfer {
	t.events <- ports.TransferEvent{Kind: ports.EventConnected}
	return t
}

// Status publishes EventStatus.
func (t *FakeTransfer) Status(code int) *FakeTransfer {
	t.events <- ports.TransferEvent{Kind: ports.EventStatus, Status: code}
	return t
}

// Chunk publishes EventChunk with p.
func (t *FakeTransfer) Chunk(p []byte) *FakeTransfer {
	t.events <- ports.TransferEvent{Kind: ports.EventChunk, Data: p}
	return t
}

// Done publishes EventDone.
func (t *FakeTransfer) Done() *FakeTransfer {
	t.events <- ports.TransferEvent{Kind: ports.EventDone}
	return t
}

// Fail publishes EventFailed.
func (t *FakeTransfer) Fail(err error) *FakeTransfer {
	t.events <- ports.TransferEvent{Kind: ports.EventFailed, Err: err}
	return t
}

// Respond publishes a complete successful exchange.
func (t *FakeTransfer) Respond(code int, body string) *FakeTransfer {
	t.Connect().Status(code)
	if body != "" {
		t.Chunk([]byte(body))
	}
	return t.Done()
}

// Close closes the event channel without a final event.
func (t *FakeTransfer) Close() {
	close(t.events)
}

// Delivery is one recorded invoker call.
type Delivery struct {
	Token    any
	Response entities.Response
}

// Recorder is a ports.Invoker that records every delivery.
type Recorder struct {
	// Hook, when set, runs after recording; its result is returned.
	Hook func(ctx context.Context, token any, resp entities.Response) error

	Deliveries []Delivery
}

// Invoke implements ports.Invoker.
func (r *Recorder) Invoke(ctx context.Context, token any, resp entities.Response) error {
	r.Deliveries = append(r.Deliveries, Delivery{Token: token, Response: resp})
	if r.Hook != nil {
		return r.Hook(ctx, token, resp)
	}
	return nil
}

// Tokens returns the delivered tokens in delivery order.
func (r *Recorder) Tokens() []any {
	out := make([]any, 0, len(r.Deliveries))
	for _, d := range r.Deliveries {
		out = append(out, d.Token)
	}
	return out
}
