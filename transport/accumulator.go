package transport

import (
	"bytes"

	"github.com/reglet-dev/scriptnet/domain/errors"
)

// ResponseAccumulator is a size-capped body buffer for one in-flight response.
// Unlike a truncating writer it refuses the append that would cross the cap,
// so a caller never sees a silently shortened body.
type ResponseAccumulator struct {
	buffer   bytes.Buffer
	limit    int
	released bool
}

// NewResponseAccumulator creates an accumulator holding at most limit bytes.
func NewResponseAccumulator(limit int) *ResponseAccumulator {
	return &ResponseAccumulator{limit: limit}
}

// Append adds p to the body. If the running total would exceed the limit the
// buffer is left unchanged and a *errors.ResponseTooLargeError is returned;
// the engine aborts the transfer on that error.
func (a *ResponseAccumulator) Append(p []byte) error {
	if a.released {
		return errors.ErrClosed
	}
	if total := a.buffer.Len() + len(p); total > a.limit {
		return &errors.ResponseTooLargeError{Limit: a.limit, Attempted: total}
	}
	_, err := a.buffer.Write(p)
	return err
}

// Bytes returns the accumulated body. The slice stays valid after Release.
func (a *ResponseAccumulator) Bytes() []byte {
	return a.buffer.Bytes()
}

// Len returns the number of accumulated bytes.
func (a *ResponseAccumulator) Len() int {
	return a.buffer.Len()
}

// Release drops the buffer. Further appends fail.
func (a *ResponseAccumulator) Release() {
	a.buffer = bytes.Buffer{}
	a.released = true
}
