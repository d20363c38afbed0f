package transport

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/reglet-dev/scriptnet/domain/entities"
	"github.com/reglet-dev/scriptnet/domain/errors"
	"github.com/reglet-dev/scriptnet/domain/ports"
)

// Dispatcher delivers finished descriptors to the host invoker.
type Dispatcher struct {
	engine       *Engine
	invoker      ports.Invoker
	logger       *zap.Logger
	delivered    uint64
	invokeErrors uint64
}

// NewDispatcher creates a dispatcher draining engine into invoker.
func NewDispatcher(engine *Engine, invoker ports.Invoker, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{engine: engine, invoker: invoker, logger: logger}
}

// Drain invokes the callback of every finished descriptor exactly once and
// releases it. Descriptors that finish while callbacks run (a callback may
// enqueue) are delivered in the same call. Invoker errors and recovered
// panics are joined into the returned error; none of them stop the drain.
// ctx is passed to every Invoke.
func (d *Dispatcher) Drain(ctx context.Context) error {
	var errs []error
	for {
		batch := d.engine.TakeFinished()
		if len(batch) == 0 {
			break
		}
		for _, desc := range batch {
			if err := d.deliver(ctx, desc); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return stdErrors.Join(errs...)
}

func (d *Dispatcher) deliver(ctx context.Context, desc *entities.RequestDescriptor) (err error) {
	defer d.engine.Release(desc)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback for request %d panicked: %v", desc.ID, r)
		}
		if err != nil {
			d.invokeErrors++
			d.logger.Error("callback failed",
				zap.Uint64("id", desc.ID),
				zap.String("trace_id", desc.TraceID),
				zap.Error(err),
			)
		}
	}()

	d.delivered++
	if invokeErr := d.invoker.Invoke(ctx, desc.CallbackToken, BuildResponse(desc)); invokeErr != nil {
		return fmt.Errorf("callback for request %d: %w", desc.ID, invokeErr)
	}
	return nil
}

// BuildResponse maps a finished descriptor to the value scripts receive.
func BuildResponse(desc *entities.RequestDescriptor) entities.Response {
	rec := desc.Response
	if rec.Err != nil {
		msg := rec.Err.Error()
		return entities.Response{Error: &msg, Detail: errors.ToErrorDetail(rec.Err)}
	}

	resp := entities.Response{Status: rec.StatusCode, Body: rec.Body}
	if resp.Body == nil {
		resp.Body = []byte{}
	}
	if rec.StatusCode >= 400 {
		msg := entities.HTTPErrorText(rec.StatusCode)
		resp.Error = &msg
		resp.Detail = entities.NewErrorDetail(entities.ErrorTypeHTTP, msg).
			WithCode(strconv.Itoa(rec.StatusCode)).
			WithDetails(map[string]any{"status": rec.StatusCode})
	}
	return resp
}

// Delivered returns the number of callbacks invoked.
func (d *Dispatcher) Delivered() uint64 {
	return d.delivered
}

// InvokeErrors returns the number of callbacks that failed or panicked.
func (d *Dispatcher) InvokeErrors() uint64 {
	return d.invokeErrors
}
