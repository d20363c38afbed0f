package hostfuncs

import (
	"encoding/json"
	stdErrors "errors"

	"github.com/reglet-dev/scriptnet/domain/entities"
	"github.com/reglet-dev/scriptnet/domain/errors"
)

// Error codes returned to scripts.
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeRateLimited    = "RATE_LIMITED"
	CodeSlotsExhausted = "SLOTS_EXHAUSTED"
	CodeClosed         = "TRANSPORT_CLOSED"
	CodeNotFound       = "NOT_FOUND"
	CodeInternal       = "INTERNAL_ERROR"
)

// ErrorResponse represents a structured error that can be returned as JSON to plugins.
// This ensures plugins receive consistent, parseable errors instead of causing WASM traps.
type ErrorResponse struct {
	// Error is a machine-readable error type identifier (e.g., "VALIDATION_ERROR", "RATE_LIMITED").
	Error string `json:"error"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Type is the error category, e.g. "validation" or "rate_limit".
	Type string `json:"type,omitempty"`

	// Kind narrows Error. Validation failures use one of invalid_scheme,
	// url_too_long, embedded_control_char, malformed_url, body_too_large,
	// too_many_headers, header_too_large, headers_total_too_large,
	// invalid_method or bad_request.
	Kind string `json:"kind,omitempty"`

	// Details holds extra context such as the offending field.
	Details map[string]any `json:"details,omitempty"`

	// Code is a numeric error code (e.g., 400, 429).
	Code int `json:"code"`

	// RetryAfterSeconds is set for RATE_LIMITED.
	RetryAfterSeconds int `json:"retry_after_s,omitempty"`
}

// ToJSON serializes the ErrorResponse to JSON bytes.
// Returns nil if serialization fails (which should never happen for this simple type).
func (e ErrorResponse) ToJSON() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	return data
}

// NewValidationError creates an error response for bad input (e.g., malformed JSON).
func NewValidationError(message string) ErrorResponse {
	return ErrorResponse{
		Error:   CodeValidation,
		Message: message,
		Code:    400,
	}
}

// NewNotFoundError creates an error response for unknown handler names.
func NewNotFoundError(name string) ErrorResponse {
	return ErrorResponse{
		Error:   CodeNotFound,
		Message: "unknown host function: " + name,
		Code:    404,
	}
}

// NewInternalError creates an error response for unexpected failures.
func NewInternalError(message string) ErrorResponse {
	return ErrorResponse{
		Error:   CodeInternal,
		Message: message,
		Code:    500,
	}
}

// NewPanicError creates an error response for recovered panics.
func NewPanicError(panicValue any) ErrorResponse {
	var msg string
	if err, ok := panicValue.(error); ok {
		msg = err.Error()
	} else if s, ok := panicValue.(string); ok {
		msg = s
	} else {
		msg = "panic recovered"
	}
	return NewInternalError("panic: " + msg)
}

// FromError maps a transport admission error onto the script-facing shape
// through its ErrorDetail. Unknown errors become INTERNAL_ERROR.
func FromError(err error) ErrorResponse {
	detail := errors.ToErrorDetail(err)
	resp := ErrorResponse{
		Error:   CodeInternal,
		Message: err.Error(),
		Type:    detail.Type,
		Kind:    detail.Code,
		Details: detail.Details,
		Code:    500,
	}

	switch detail.Type {
	case entities.ErrorTypeValidation:
		resp.Error, resp.Code = CodeValidation, 400
	case entities.ErrorTypeRateLimit:
		resp.Error, resp.Code = CodeRateLimited, 429
		var rlErr *errors.RateLimitError
		if stdErrors.As(err, &rlErr) {
			resp.RetryAfterSeconds = rlErr.RetryAfterSeconds()
		}
	case entities.ErrorTypeCapacity:
		resp.Error, resp.Code = CodeSlotsExhausted, 503
	case entities.ErrorTypeClosed:
		resp.Error, resp.Code = CodeClosed, 503
	}
	return resp
}
