package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/scriptnet/domain/entities"
)

func TestValidationError(t *testing.T) {
	err := &ValidationError{Field: "url", Kind: InvalidScheme, Detail: "file"}

	assert.Equal(t, "invalid request url: invalid_scheme (file)", err.Error())
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrRateLimited))

	wrapped := fmt.Errorf("enqueue: %w", err)
	var vErr *ValidationError
	require.True(t, errors.As(wrapped, &vErr))
	assert.Equal(t, InvalidScheme, vErr.Kind)
}

func TestValidationKind_String(t *testing.T) {
	assert.Equal(t, "url_too_long", URLTooLong.String())
	assert.Equal(t, "headers_total_too_large", HeadersTotalTooLarge.String())
	assert.Equal(t, "unknown", ValidationKind(99).String())
}

func TestRateLimitError(t *testing.T) {
	err := &RateLimitError{RetryAfter: 1500 * time.Millisecond}

	assert.Equal(t, 2, err.RetryAfterSeconds())
	assert.Equal(t, "rate limit exceeded, retry after 2s", err.Error())
	assert.True(t, errors.Is(err, ErrRateLimited))

	detail := err.ToErrorDetail()
	assert.Equal(t, "rate_limit", detail.Type)
	assert.Equal(t, 2, detail.Details["retry_after_s"])
}

func TestSlotsExhaustedError(t *testing.T) {
	err := &SlotsExhaustedError{Capacity: 10}

	assert.Equal(t, "all 10 transfer slots are in use", err.Error())
	assert.True(t, errors.Is(err, ErrSlotsExhausted))
	assert.Equal(t, 10, err.ToErrorDetail().Details["capacity"])
}

func TestTransportError(t *testing.T) {
	base := fmt.Errorf("lookup nowhere.invalid: no such host")
	err := &TransportError{Kind: DNSFailure, Err: base}

	assert.Equal(t, "dns lookup failed: lookup nowhere.invalid: no such host", err.Error())
	assert.True(t, errors.Is(err, base))
	assert.True(t, errors.Is(err, ErrTransport))
	assert.False(t, errors.Is(err, ErrClosed))

	closed := &TransportError{Kind: Closed}
	assert.Equal(t, "transport closed", closed.Error())
	assert.True(t, errors.Is(closed, ErrClosed))
}

func TestTimeoutError(t *testing.T) {
	total := &TimeoutError{Phase: PhaseTotal, Elapsed: time.Minute}
	connect := &TimeoutError{Phase: PhaseConnect, Elapsed: 10 * time.Second}

	assert.Equal(t, "request timed out", total.Error())
	assert.Equal(t, "connection timed out", connect.Error())
	assert.True(t, errors.Is(total, ErrTimeout))
	assert.True(t, connect.Timeout())
	assert.True(t, connect.ToErrorDetail().IsTimeout)
	assert.Equal(t, "connect", connect.ToErrorDetail().Code)
}

func TestResponseTooLargeError(t *testing.T) {
	err := &ResponseTooLargeError{Limit: 10, Attempted: 11}

	assert.Equal(t, "response too large", err.Error())
	assert.True(t, errors.Is(err, ErrResponseTooLarge))
	assert.Equal(t, "size", err.ToErrorDetail().Type)
}

func TestToErrorDetail(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, ToErrorDetail(nil))
	})

	t.Run("detailed error through wrap", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", &TransportError{Kind: ConnectionRefused, Err: errors.New("dial tcp")})
		detail := ToErrorDetail(err)
		require.NotNil(t, detail)
		assert.Equal(t, "network", detail.Type)
		assert.Equal(t, "connection_refused", detail.Code)
	})

	t.Run("existing detail", func(t *testing.T) {
		orig := entities.NewErrorDetail("size", "too big")
		assert.Same(t, orig, ToErrorDetail(orig))
	})

	t.Run("closed sentinel", func(t *testing.T) {
		detail := ToErrorDetail(fmt.Errorf("enqueue: %w", ErrClosed))
		assert.Equal(t, entities.ErrorTypeClosed, detail.Type)
		assert.Equal(t, "transport_closed", detail.Code)
	})

	t.Run("closed transfer", func(t *testing.T) {
		detail := ToErrorDetail(&TransportError{Kind: Closed})
		assert.Equal(t, entities.ErrorTypeClosed, detail.Type)
		assert.Equal(t, "closed: transport closed [transport_closed]", detail.Error())
	})

	t.Run("validation carries field", func(t *testing.T) {
		detail := ToErrorDetail(&ValidationError{Field: "headers", Kind: TooManyHeaders})
		assert.Equal(t, "too_many_headers", detail.Code)
		assert.Equal(t, map[string]any{"field": "headers"}, detail.Details)
	})

	t.Run("generic error", func(t *testing.T) {
		detail := ToErrorDetail(errors.New("boom"))
		assert.Equal(t, "internal", detail.Type)
		assert.Equal(t, "boom", detail.Message)
	})
}
