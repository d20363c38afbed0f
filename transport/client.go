package transport

import (
	"bytes"
	"context"
	stdErrors "errors"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reglet-dev/scriptnet/domain/entities"
	"github.com/reglet-dev/scriptnet/domain/errors"
	"github.com/reglet-dev/scriptnet/domain/ports"
)

// nextID is process-wide so ids stay unique across Clients.
var nextID atomic.Uint64

// Stats is a snapshot of a Client's counters.
type Stats struct {
	Accepted           uint64 `json:"accepted"`
	RejectedValidation uint64 `json:"rejected_validation"`
	RejectedRateLimit  uint64 `json:"rejected_rate_limit"`
	RejectedSlots      uint64 `json:"rejected_slots"`
	Completed          uint64 `json:"completed"`
	Failed             uint64 `json:"failed"`
	Delivered          uint64 `json:"delivered"`
	InvokeErrors       uint64 `json:"invoke_errors"`
	Allocated          uint64 `json:"allocated"`
	Released           uint64 `json:"released"`
	Active             int    `json:"active"`
	Capacity           int    `json:"capacity"`
}

// Outstanding returns the descriptors allocated but not yet released.
func (s Stats) Outstanding() uint64 {
	return s.Allocated - s.Released
}

// Client is the host-owned transport. Create one per host with NewClient
// and drive it with Tick from the host loop.
type Client struct {
	engine     *Engine
	dispatcher *Dispatcher
	limiter    *RateLimiter
	logger     *zap.Logger
	clock      func() time.Time
	driving    atomic.Bool
	scope      atomic.Pointer[drainScope]
	closed     bool

	accepted           uint64
	rejectedValidation uint64
	rejectedRateLimit  uint64
	rejectedSlots      uint64
}

// NewClient creates a Client that delivers every finished request to invoker.
func NewClient(invoker ports.Invoker, opts ...Option) *Client {
	cfg := defaultClientConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	backend := cfg.backend
	if backend == nil {
		backend = NewHTTPBackend(cfg.httpOptions...)
	}

	engine := NewEngine(backend, cfg.clock, cfg.logger)
	return &Client{
		engine:     engine,
		dispatcher: NewDispatcher(engine, invoker, cfg.logger),
		limiter:    NewRateLimiter(cfg.clock),
		logger:     cfg.logger,
		clock:      cfg.clock,
	}
}

func (c *Client) enter() {
	if !c.driving.CompareAndSwap(false, true) {
		panic(errors.ErrConcurrentUse)
	}
}

func (c *Client) exit() {
	c.driving.Store(false)
}

// drainScope identifies one Drain. Its address travels in the context handed
// to the invoker. It must not be zero-sized or two scopes could share an
// address.
type drainScope struct{ _ byte }

type drainScopeKey struct{}

// inDrain reports whether ctx belongs to the drain currently running.
func (c *Client) inDrain(ctx context.Context) bool {
	scope, ok := ctx.Value(drainScopeKey{}).(*drainScope)
	return ok && scope == c.scope.Load()
}

// Enqueue validates req, applies the rate limit and starts the transfer.
// On success the returned id identifies the request in logs and the token
// is handed back to the invoker exactly once. Rejections are synchronous:
// *errors.ValidationError, *errors.RateLimitError or
// *errors.SlotsExhaustedError, and no callback follows them.
//
// Enqueue is a driving call; use EnqueueContext from inside a callback.
func (c *Client) Enqueue(req entities.Request, token any) (uint64, error) {
	return c.EnqueueContext(context.Background(), req, token)
}

// EnqueueContext is Enqueue for callers that hold a context. An invoker
// callback passes the ctx it was invoked with, which lets it enqueue while
// the drain that called it is still running. Any other call made while the
// Client is being driven panics with errors.ErrConcurrentUse.
func (c *Client) EnqueueContext(ctx context.Context, req entities.Request, token any) (uint64, error) {
	if !c.inDrain(ctx) {
		c.enter()
		defer c.exit()
	}
	if c.closed {
		return 0, errors.ErrClosed
	}

	if err := Validate(req.URL, req.Method, req.Body, req.Headers); err != nil {
		c.rejectedValidation++
		c.logger.Info("request rejected", zap.String("reason", "validation"), zap.Error(err))
		return 0, err
	}

	// Checked before the limiter so a full table does not spend rate budget.
	if c.engine.ActiveCount() >= c.engine.Capacity() {
		c.rejectedSlots++
		err := &errors.SlotsExhaustedError{Capacity: c.engine.Capacity()}
		c.logger.Info("request rejected", zap.String("reason", "slots"), zap.Error(err))
		return 0, err
	}

	if err := c.limiter.CheckAndIncrement(); err != nil {
		c.rejectedRateLimit++
		c.logger.Info("request rejected", zap.String("reason", "rate_limit"), zap.Error(err))
		return 0, err
	}

	req.URL = EscapeTabs(req.URL)
	req.Headers = slices.Clone(req.Headers)
	req.Body = bytes.Clone(req.Body)
	desc := entities.NewRequestDescriptor(nextID.Add(1), req, token, c.clock())
	desc.TraceID = uuid.NewString()

	if err := c.engine.Enqueue(desc); err != nil {
		var slots *errors.SlotsExhaustedError
		if stdErrors.As(err, &slots) {
			c.rejectedSlots++
		}
		return 0, err
	}

	c.accepted++
	c.logger.Debug("request accepted",
		zap.Uint64("id", desc.ID),
		zap.String("trace_id", desc.TraceID),
		zap.String("method", desc.Method),
		zap.String("url", desc.URL),
	)
	return desc.ID, nil
}

// Pump advances every in-flight transfer without blocking.
func (c *Client) Pump() {
	c.enter()
	defer c.exit()
	c.engine.Pump()
}

// Drain delivers every finished request to the invoker. ctx is handed to
// each callback.
func (c *Client) Drain(ctx context.Context) error {
	c.enter()
	defer c.exit()
	return c.drain(ctx)
}

// Tick is one host loop iteration: Pump then Drain.
func (c *Client) Tick(ctx context.Context) error {
	c.enter()
	defer c.exit()
	c.engine.Pump()
	return c.drain(ctx)
}

func (c *Client) drain(ctx context.Context) error {
	scope := &drainScope{}
	c.scope.Store(scope)
	defer c.scope.Store(nil)
	return c.dispatcher.Drain(context.WithValue(ctx, drainScopeKey{}, scope))
}

// RunUntilIdle ticks every interval until no request is pending or ctx ends.
// Callback errors do not stop the loop; they are logged and joined into the
// result.
func (c *Client) RunUntilIdle(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var errs []error
	for {
		if err := c.Tick(ctx); err != nil {
			c.logger.Warn("callback delivery failed", zap.Error(err))
			errs = append(errs, err)
		}
		if c.Pending() == 0 {
			return stdErrors.Join(errs...)
		}
		select {
		case <-ctx.Done():
			return stdErrors.Join(append(errs, ctx.Err())...)
		case <-ticker.C:
		}
	}
}

// Shutdown aborts every in-flight transfer and delivers its callback with a
// "transport closed" error, passing ctx to each callback. Later Enqueue calls
// fail with errors.ErrClosed. Shutdown is idempotent.
func (c *Client) Shutdown(ctx context.Context) error {
	c.enter()
	defer c.exit()
	if c.closed {
		return nil
	}
	c.closed = true
	c.engine.AbortAll(&errors.TransportError{Kind: errors.Closed})
	return c.drain(ctx)
}

// Close is Shutdown with a background context.
func (c *Client) Close() error {
	return c.Shutdown(context.Background())
}

// ActiveCount returns the number of transfers holding a slot.
func (c *Client) ActiveCount() int {
	return c.engine.ActiveCount()
}

// Capacity returns the concurrency ceiling.
func (c *Client) Capacity() int {
	return c.engine.Capacity()
}

// Pending returns the accepted requests whose callback has not run yet.
func (c *Client) Pending() int {
	return c.engine.ActiveCount() + c.engine.FinishedCount()
}

// RateLimiter exposes the admission window for diagnostics.
func (c *Client) RateLimiter() *RateLimiter {
	return c.limiter
}

// Stats returns a snapshot of the counters.
func (c *Client) Stats() Stats {
	es := c.engine.Stats()
	return Stats{
		Accepted:           c.accepted,
		RejectedValidation: c.rejectedValidation,
		RejectedRateLimit:  c.rejectedRateLimit,
		RejectedSlots:      c.rejectedSlots,
		Completed:          es.Completed,
		Failed:             es.Failed,
		Delivered:          c.dispatcher.Delivered(),
		InvokeErrors:       c.dispatcher.InvokeErrors(),
		Allocated:          es.Allocated,
		Released:           es.Released,
		Active:             c.engine.ActiveCount(),
		Capacity:           c.engine.Capacity(),
	}
}
