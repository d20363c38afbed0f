package entities

import "fmt"

// Response is what the host invoker receives for every accepted request.
//
// A transport failure has Status 0, a nil Body and Error set. An HTTP status
// of 400 or above carries both the body and a convenience Error string.
// Callers must branch on Error and Status; a callback never implies success.
type Response struct {
	// Detail is the structured form of Error and is set whenever Error is.
	Detail *ErrorDetail `json:"detail,omitempty"`
	Body   []byte       `json:"body,omitempty"`
	Error  *string      `json:"error,omitempty"`
	Status int          `json:"status"`
}

// OK reports whether the response is a 2xx or 3xx HTTP response.
func (r Response) OK() bool {
	return r.Error == nil && r.Status >= 200 && r.Status < 400
}

// ErrorText returns the error string or "" when there is none.
func (r Response) ErrorText() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

// HTTPErrorText is the convenience error attached to status >= 400.
func HTTPErrorText(status int) string {
	return fmt.Sprintf("HTTP error %d", status)
}
