package hostfuncs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/reglet-dev/scriptnet/domain/entities"
)

// MaxPayloadSize caps one host function payload: a maximal request body
// base64 encoded plus room for the URL and headers.
const MaxPayloadSize = entities.MaxRequestBody*4/3 + 64*1024

// HostFunc is a typed host function. A returned error is converted to an
// ErrorResponse with FromError, so scripts always receive JSON.
type HostFunc[Req any, Resp any] func(context.Context, Req) (Resp, error)

// ByteHandler takes and returns raw JSON. It is the shape the wasm bridge
// calls. A non-nil error means the reply itself could not be produced.
type ByteHandler func(context.Context, []byte) ([]byte, error)

// NewJSONHandler adapts fn to a ByteHandler. An empty payload decodes to the
// zero Req. Oversized payloads, malformed JSON and unknown fields are answered
// with a VALIDATION_ERROR before fn runs.
func NewJSONHandler[Req any, Resp any](fn HostFunc[Req, Resp]) ByteHandler {
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		var req Req
		if len(payload) > MaxPayloadSize {
			return NewValidationError(fmt.Sprintf("payload of %d bytes exceeds %d", len(payload), MaxPayloadSize)).ToJSON(), nil
		}
		if len(payload) > 0 {
			dec := json.NewDecoder(bytes.NewReader(payload))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				return NewValidationError(fmt.Sprintf("failed to unmarshal request: %v", err)).ToJSON(), nil
			}
		}

		resp, err := fn(ctx, req)
		if err != nil {
			return FromError(err).ToJSON(), nil
		}

		out, err := json.Marshal(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response: %w", err)
		}
		return out, nil
	}
}
