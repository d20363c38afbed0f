package hostfuncs

import (
	"context"
	"net"

	"github.com/reglet-dev/scriptnet/domain/entities"
	"github.com/reglet-dev/scriptnet/transport"
)

// HTTPClient is the part of transport.Client the bindings need. The ctx of
// the host function call is passed through so a script may enqueue from
// inside its own callback.
type HTTPClient interface {
	EnqueueContext(ctx context.Context, req entities.Request, token any) (uint64, error)
	Stats() transport.Stats
}

// HTTPRequest is the payload of http_request.
type HTTPRequest struct {
	// URL is the absolute http or https URL.
	URL string `json:"url" jsonschema:"required,maxLength=2048"`

	// Method defaults to GET.
	Method string `json:"method,omitempty" jsonschema:"maxLength=16"`

	// Callback names the script function that receives the response.
	Callback string `json:"callback" jsonschema:"required"`

	// Headers are sent in order.
	Headers []entities.Header `json:"headers,omitempty" jsonschema:"maxItems=100"`

	// Body is base64 encoded in JSON.
	Body []byte `json:"body,omitempty"`
}

// HTTPRequestResponse acknowledges an accepted request.
type HTTPRequestResponse struct {
	ID uint64 `json:"id"`
}

// CallbackToken is the opaque token carried through the transport for a
// script request. The host uses Caller to find the plugin and Callback to
// find the function inside it.
type CallbackToken struct {
	Caller   string
	Callback string
}

// HTTPCallback is the JSON a script callback receives.
type HTTPCallback struct {
	Detail   *entities.ErrorDetail `json:"detail,omitempty"`
	Callback string                `json:"callback"`
	Error    *string               `json:"error,omitempty"`
	Body     []byte                `json:"body,omitempty"`
	Status   int                   `json:"status"`
}

// NewHTTPCallback builds the callback payload for token.
func NewHTTPCallback(token CallbackToken, resp entities.Response) HTTPCallback {
	return HTTPCallback{
		Callback: token.Callback,
		Status:   resp.Status,
		Body:     resp.Body,
		Error:    resp.Error,
		Detail:   resp.Detail,
	}
}

// HTTPStatsRequest is the (empty) payload of http_stats.
type HTTPStatsRequest struct{}

// PerformHTTPRequest enqueues req on client. Admission failures come back
// synchronously; everything after admission arrives through the callback.
func PerformHTTPRequest(ctx context.Context, client HTTPClient, req HTTPRequest) (HTTPRequestResponse, error) {
	if req.Callback == "" {
		return HTTPRequestResponse{}, badRequest("callback is required")
	}

	token := CallbackToken{Caller: CallerFrom(ctx), Callback: req.Callback}
	id, err := client.EnqueueContext(ctx, entities.Request{
		URL:     req.URL,
		Method:  req.Method,
		Headers: req.Headers,
		Body:    req.Body,
	}, token)
	if err != nil {
		return HTTPRequestResponse{}, err
	}
	return HTTPRequestResponse{ID: id}, nil
}

// SSRFCheckRequest is the request type for SSRF validation.
type SSRFCheckRequest struct {
	// Address is the target address to validate (host or host:port).
	Address string `json:"address" jsonschema:"required"`
}

// SSRFCheckResponse is the response type for SSRF validation.
type SSRFCheckResponse struct {
	// Reason explains why the address was blocked (if not allowed).
	Reason string `json:"reason,omitempty"`

	// ResolvedIP is the address a request would be pinned to.
	ResolvedIP string `json:"resolved_ip,omitempty"`

	// Allowed indicates whether the address is safe for outbound connections.
	Allowed bool `json:"allowed"`
}

// CheckSSRF reports whether policy would let a request reach req.Address.
func CheckSSRF(ctx context.Context, policy *transport.AddressPolicy, req SSRFCheckRequest) (SSRFCheckResponse, error) {
	host := req.Address
	if h, _, err := net.SplitHostPort(req.Address); err == nil {
		host = h
	}
	if host == "" {
		return SSRFCheckResponse{}, badRequest("address is required")
	}

	ip, err := policy.Resolve(ctx, host)
	if err != nil {
		return SSRFCheckResponse{Allowed: false, Reason: err.Error()}, nil
	}
	return SSRFCheckResponse{Allowed: true, ResolvedIP: ip.String()}, nil
}

// badRequestError is a malformed payload caught by the bindings themselves.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string {
	return e.msg
}

func (e *badRequestError) ToErrorDetail() *entities.ErrorDetail {
	return entities.NewErrorDetail(entities.ErrorTypeValidation, e.msg).WithCode("bad_request")
}

func badRequest(msg string) error {
	return &badRequestError{msg: msg}
}
