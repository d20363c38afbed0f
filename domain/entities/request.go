package entities

import (
	"time"
)

// Header is one request header. Headers are kept as an ordered slice so the
// wire order matches the order the script supplied.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Size returns the length of the header as a "Name: value" line.
func (h Header) Size() int {
	return len(h.Name) + len(": ") + len(h.Value)
}

// Request is what a script asks for. Body is optional; a nil Body sends no body.
type Request struct {
	URL     string
	Method  string
	Headers []Header
	Body    []byte
}

// RequestState is the lifecycle state of a RequestDescriptor.
type RequestState int

const (
	StateQueued RequestState = iota
	StateActive
	StateCompleted
	StateFailed
)

// String returns the lowercase state name.
func (s RequestState) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateActive:
		return "active"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ResponseRecord holds what the transport observed for a descriptor.
type ResponseRecord struct {
	// Err is the transport-level failure, nil for any HTTP response.
	Err error

	// Body is the accumulated response body.
	Body []byte

	// StatusCode is the HTTP status, 0 when no response arrived.
	StatusCode int
}

// RequestDescriptor is the full lifecycle record of one request.
//
// A descriptor is created by the client after validation and rate limiting
// pass, owned by the engine while in flight, and released by the dispatcher
// right after its callback has run.
type RequestDescriptor struct {
	CreatedAt time.Time
	StartedAt time.Time

	// CallbackToken is opaque to the transport and handed back to the host
	// invoker unchanged.
	CallbackToken any

	Response ResponseRecord

	URL     string
	Method  string
	TraceID string
	Headers []Header
	Body    []byte

	ID    uint64
	State RequestState
}

// NewRequestDescriptor builds a Queued descriptor for req.
func NewRequestDescriptor(id uint64, req Request, token any, now time.Time) *RequestDescriptor {
	method := req.Method
	if method == "" {
		method = "GET"
	}
	return &RequestDescriptor{
		ID:            id,
		URL:           req.URL,
		Method:        method,
		Headers:       req.Headers,
		Body:          req.Body,
		CallbackToken: token,
		CreatedAt:     now,
		State:         StateQueued,
	}
}
