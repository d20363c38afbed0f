// Package errors provides the error taxonomy of the transport.
// All error types support errors.As and match their sentinel via errors.Is.
package errors

import (
	stdErrors "errors"
	"fmt"
	"math"
	"time"

	"github.com/reglet-dev/scriptnet/domain/entities"
)

// Sentinels matched by errors.Is on the concrete types below.
var (
	ErrValidation       = stdErrors.New("request validation failed")
	ErrRateLimited      = stdErrors.New("rate limit exceeded")
	ErrSlotsExhausted   = stdErrors.New("concurrency slots exhausted")
	ErrTransport        = stdErrors.New("transport failure")
	ErrTimeout          = stdErrors.New("transfer timed out")
	ErrResponseTooLarge = stdErrors.New("response too large")
	ErrClosed           = stdErrors.New("transport closed")
	ErrConcurrentUse    = stdErrors.New("transport driven from more than one goroutine")
)

// DetailedError is implemented by every error in this package.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// ToErrorDetail converts a Go error to the structured ErrorDetail.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	if stdErrors.Is(err, ErrClosed) {
		return entities.NewErrorDetail(entities.ErrorTypeClosed, err.Error()).WithCode("transport_closed")
	}
	return entities.NewErrorDetail(entities.ErrorTypeInternal, err.Error())
}

// ValidationKind names the rule a request broke.
type ValidationKind int

const (
	InvalidScheme ValidationKind = iota + 1
	URLTooLong
	EmbeddedControlChar
	BodyTooLarge
	TooManyHeaders
	HeaderTooLarge
	HeadersTotalTooLarge
	InvalidMethod
	MalformedURL
)

var validationKindNames = map[ValidationKind]string{
	InvalidScheme:        "invalid_scheme",
	URLTooLong:           "url_too_long",
	EmbeddedControlChar:  "embedded_control_char",
	BodyTooLarge:         "body_too_large",
	TooManyHeaders:       "too_many_headers",
	HeaderTooLarge:       "header_too_large",
	HeadersTotalTooLarge: "headers_total_too_large",
	InvalidMethod:        "invalid_method",
	MalformedURL:         "malformed_url",
}

// String returns the snake_case kind name.
func (k ValidationKind) String() string {
	if name, ok := validationKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ValidationError rejects a request before any descriptor exists.
type ValidationError struct {
	// Field is "url", "method", "body" or "headers".
	Field  string
	Detail string
	Kind   ValidationKind
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("invalid request %s: %s (%s)", e.Field, e.Kind, e.Detail)
	}
	return fmt.Sprintf("invalid request %s: %s", e.Field, e.Kind)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ToErrorDetail implements DetailedError.
func (e *ValidationError) ToErrorDetail() *entities.ErrorDetail {
	return entities.NewErrorDetail(entities.ErrorTypeValidation, e.Error()).
		WithCode(e.Kind.String()).
		WithDetails(map[string]any{"field": e.Field})
}

// RateLimitError rejects a request because the admission window is full.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %ds", e.RetryAfterSeconds())
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// RetryAfterSeconds returns RetryAfter rounded up to whole seconds.
func (e *RateLimitError) RetryAfterSeconds() int {
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

// ToErrorDetail implements DetailedError.
func (e *RateLimitError) ToErrorDetail() *entities.ErrorDetail {
	return entities.NewErrorDetail(entities.ErrorTypeRateLimit, e.Error()).
		WithCode("rate_limited").
		WithDetails(map[string]any{"retry_after_s": e.RetryAfterSeconds()})
}

// SlotsExhaustedError rejects a request when every concurrency slot is taken.
type SlotsExhaustedError struct {
	Capacity int
}

func (e *SlotsExhaustedError) Error() string {
	return fmt.Sprintf("all %d transfer slots are in use", e.Capacity)
}

func (e *SlotsExhaustedError) Is(target error) bool {
	return target == ErrSlotsExhausted
}

// ToErrorDetail implements DetailedError.
func (e *SlotsExhaustedError) ToErrorDetail() *entities.ErrorDetail {
	return entities.NewErrorDetail(entities.ErrorTypeCapacity, e.Error()).
		WithCode("slots_exhausted").
		WithDetails(map[string]any{"capacity": e.Capacity})
}

// TransportKind classifies a network failure.
type TransportKind int

const (
	TransportOther TransportKind = iota
	DNSFailure
	ConnectionRefused
	TLSFailure
	SSRFBlocked
	Closed
)

func (k TransportKind) String() string {
	switch k {
	case DNSFailure:
		return "dns_failure"
	case ConnectionRefused:
		return "connection_refused"
	case TLSFailure:
		return "tls_failure"
	case SSRFBlocked:
		return "ssrf_blocked"
	case Closed:
		return "closed"
	default:
		return "transport_error"
	}
}

// TransportError is an asynchronous network failure delivered through the
// callback's error text.
type TransportError struct {
	Err  error
	Kind TransportKind
}

func (e *TransportError) Error() string {
	switch e.Kind {
	case DNSFailure:
		return fmt.Sprintf("dns lookup failed: %v", e.Err)
	case ConnectionRefused:
		return fmt.Sprintf("connection refused: %v", e.Err)
	case TLSFailure:
		return fmt.Sprintf("tls handshake failed: %v", e.Err)
	case SSRFBlocked:
		return fmt.Sprintf("ssrf blocked: %v", e.Err)
	case Closed:
		return "transport closed"
	default:
		return fmt.Sprintf("transport error: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	if target == ErrClosed {
		return e.Kind == Closed
	}
	return target == ErrTransport
}

// ToErrorDetail implements DetailedError.
func (e *TransportError) ToErrorDetail() *entities.ErrorDetail {
	if e.Kind == Closed {
		return entities.NewErrorDetail(entities.ErrorTypeClosed, e.Error()).WithCode("transport_closed")
	}
	return entities.NewErrorDetail(entities.ErrorTypeNetwork, e.Error()).WithCode(e.Kind.String())
}

// TimeoutPhase says which deadline a transfer missed.
type TimeoutPhase int

const (
	// PhaseTotal is the deadline measured from Active entry.
	PhaseTotal TimeoutPhase = iota
	// PhaseConnect applies only until a connection is obtained.
	PhaseConnect
)

// TimeoutError is delivered when a transfer exceeds the connect or total deadline.
type TimeoutError struct {
	Elapsed time.Duration
	Phase   TimeoutPhase
}

func (e *TimeoutError) Error() string {
	if e.Phase == PhaseConnect {
		return "connection timed out"
	}
	return "request timed out"
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

func (e *TimeoutError) Timeout() bool {
	return true
}

// ToErrorDetail implements DetailedError.
func (e *TimeoutError) ToErrorDetail() *entities.ErrorDetail {
	code := "total"
	if e.Phase == PhaseConnect {
		code = "connect"
	}
	detail := entities.NewErrorDetail(entities.ErrorTypeTimeout, e.Error()).WithCode(code)
	detail.IsTimeout = true
	return detail
}

// ResponseTooLargeError aborts a transfer whose body would exceed the cap.
type ResponseTooLargeError struct {
	Limit     int
	Attempted int
}

func (e *ResponseTooLargeError) Error() string {
	return "response too large"
}

func (e *ResponseTooLargeError) Is(target error) bool {
	return target == ErrResponseTooLarge
}

// ToErrorDetail implements DetailedError.
func (e *ResponseTooLargeError) ToErrorDetail() *entities.ErrorDetail {
	return entities.NewErrorDetail(entities.ErrorTypeSize, e.Error()).
		WithCode("response_too_large").
		WithDetails(map[string]any{"limit": e.Limit, "attempted": e.Attempted})
}
