package transport

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/reglet-dev/scriptnet/domain/entities"
	"github.com/reglet-dev/scriptnet/domain/errors"
	"github.com/reglet-dev/scriptnet/domain/ports"
)

// defaultEventBudget bounds how many events one transfer may consume per
// Pump so a fast transfer cannot starve the host loop.
const defaultEventBudget = 64

// EngineStats are the engine's lifetime counters.
type EngineStats struct {
	Allocated uint64
	Released  uint64
	Completed uint64
	Failed    uint64
}

// transfer is the engine-private state of one active descriptor.
type transfer struct {
	desc      *entities.RequestDescriptor
	handle    ports.Transfer
	acc       *ResponseAccumulator
	status    int
	connected bool
	done      bool
}

// Engine owns the active transfers. It is not safe for concurrent use; the
// Client serialises every call onto the driver goroutine.
type Engine struct {
	backend        ports.Backend
	clock          func() time.Time
	logger         *zap.Logger
	active         []*transfer
	finished       []*entities.RequestDescriptor
	stats          EngineStats
	capacity       int
	eventBudget    int
	connectTimeout time.Duration
	totalTimeout   time.Duration
}

// NewEngine creates an engine that starts transfers on backend.
// A nil clock uses time.Now and a nil logger discards output.
func NewEngine(backend ports.Backend, clock func() time.Time, logger *zap.Logger) *Engine {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		backend:        backend,
		clock:          clock,
		logger:         logger,
		capacity:       entities.MaxConcurrent,
		eventBudget:    defaultEventBudget,
		connectTimeout: entities.ConnectTimeout,
		totalTimeout:   entities.TotalTimeout,
	}
}

// Enqueue reserves a slot for desc and starts its transfer. At the ceiling
// it returns *errors.SlotsExhaustedError and desc is left untouched.
//
// A backend that fails to start still consumes the descriptor: it is moved
// straight to the finished set so its callback fires on the next drain.
func (e *Engine) Enqueue(desc *entities.RequestDescriptor) error {
	if len(e.active) >= e.capacity {
		return &errors.SlotsExhaustedError{Capacity: e.capacity}
	}

	t := &transfer{
		desc: desc,
		acc:  NewResponseAccumulator(entities.MaxResponseSize),
	}
	desc.State = entities.StateActive
	desc.StartedAt = e.clock()
	e.stats.Allocated++

	handle, err := e.backend.Start(ports.TransferRequest{
		ID:      desc.ID,
		URL:     desc.URL,
		Method:  desc.Method,
		Headers: desc.Headers,
		Body:    desc.Body,
	})
	if err != nil {
		e.fail(t, classifyTransportError(err))
		e.finish(t)
		return nil
	}
	t.handle = handle
	e.active = append(e.active, t)
	return nil
}

// Pump advances every active transfer without blocking and returns how many
// finished during this call.
func (e *Engine) Pump() int {
	if len(e.active) == 0 {
		return 0
	}

	now := e.clock()
	finished := 0
	kept := e.active[:0]
	for _, t := range e.active {
		e.advance(t, now)
		if t.done {
			e.finish(t)
			finished++
			continue
		}
		kept = append(kept, t)
	}
	for i := len(kept); i < len(e.active); i++ {
		e.active[i] = nil
	}
	e.active = kept
	return finished
}

// advance consumes the events t has ready, then enforces the deadlines.
func (e *Engine) advance(t *transfer, now time.Time) {
	events := t.handle.Events()
poll:
	for i := 0; i < e.eventBudget && !t.done; i++ {
		select {
		case ev, ok := <-events:
			if !ok {
				e.fail(t, &errors.TransportError{Err: fmt.Errorf("transfer ended without a result")})
				return
			}
			e.apply(t, ev)
		default:
			break poll
		}
	}
	if t.done {
		return
	}

	elapsed := now.Sub(t.desc.StartedAt)
	switch {
	case !t.connected && elapsed > e.connectTimeout:
		e.fail(t, &errors.TimeoutError{Phase: errors.PhaseConnect, Elapsed: elapsed})
	case elapsed > e.totalTimeout:
		e.fail(t, &errors.TimeoutError{Phase: errors.PhaseTotal, Elapsed: elapsed})
	}
}

func (e *Engine) apply(t *transfer, ev ports.TransferEvent) {
	switch ev.Kind {
	case ports.EventConnected:
		t.connected = true
	case ports.EventStatus:
		t.connected = true
		t.status = ev.Status
	case ports.EventChunk:
		if err := t.acc.Append(ev.Data); err != nil {
			e.fail(t, err)
		}
	case ports.EventDone:
		t.desc.State = entities.StateCompleted
		t.desc.Response = entities.ResponseRecord{StatusCode: t.status, Body: t.acc.Bytes()}
		t.done = true
		e.stats.Completed++
	case ports.EventFailed:
		err := ev.Err
		if err == nil {
			err = &errors.TransportError{Err: fmt.Errorf("transfer failed")}
		}
		e.fail(t, err)
	}
}

func (e *Engine) fail(t *transfer, err error) {
	t.desc.State = entities.StateFailed
	t.desc.Response = entities.ResponseRecord{Err: err}
	t.done = true
	e.stats.Failed++
}

// finish stops the backend transfer, drops the accumulator and queues the
// descriptor for delivery.
func (e *Engine) finish(t *transfer) {
	if t.handle != nil {
		t.handle.Abort()
	}
	bytes := t.acc.Len()
	t.acc.Release()
	e.finished = append(e.finished, t.desc)

	e.logger.Debug("transfer finished",
		zap.Uint64("id", t.desc.ID),
		zap.String("trace_id", t.desc.TraceID),
		zap.Stringer("state", t.desc.State),
		zap.Int("status", t.desc.Response.StatusCode),
		zap.Int("bytes", bytes),
		zap.Duration("duration", e.clock().Sub(t.desc.StartedAt)),
		zap.Error(t.desc.Response.Err),
	)
}

// AbortAll fails every active transfer with err.
func (e *Engine) AbortAll(err error) {
	for _, t := range e.active {
		e.fail(t, err)
		e.finish(t)
	}
	clear(e.active)
	e.active = e.active[:0]
}

// TakeFinished hands over every finished descriptor. The caller must pass
// each one to Release once it has been delivered.
func (e *Engine) TakeFinished() []*entities.RequestDescriptor {
	if len(e.finished) == 0 {
		return nil
	}
	out := e.finished
	e.finished = nil
	return out
}

// Release drops everything desc still references and counts the release.
func (e *Engine) Release(desc *entities.RequestDescriptor) {
	desc.Headers = nil
	desc.Body = nil
	desc.Response.Body = nil
	desc.CallbackToken = nil
	e.stats.Released++
}

// ActiveCount returns the number of transfers holding a slot.
func (e *Engine) ActiveCount() int {
	return len(e.active)
}

// FinishedCount returns the number of descriptors awaiting delivery.
func (e *Engine) FinishedCount() int {
	return len(e.finished)
}

// Capacity returns the concurrency ceiling.
func (e *Engine) Capacity() int {
	return e.capacity
}

// Stats returns a copy of the engine counters.
func (e *Engine) Stats() EngineStats {
	return e.stats
}
