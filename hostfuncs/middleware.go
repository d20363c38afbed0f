package hostfuncs

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Middleware wraps a ByteHandler. The first middleware passed to
// WithMiddleware is the outermost layer.
type Middleware func(next ByteHandler) ByteHandler

// RegistryOption configures a HandlerRegistry.
type RegistryOption func(*registryBuilder)

// PanicRecoveryMiddleware turns a handler panic into an INTERNAL_ERROR reply
// so a broken handler cannot take the host down.
func PanicRecoveryMiddleware() Middleware {
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) (resp []byte, err error) {
			defer func() {
				if r := recover(); r != nil {
					resp = NewPanicError(r).ToJSON()
					err = nil
				}
			}()
			return next(ctx, payload)
		}
	}
}

// LoggingMiddleware logs each call. Successful calls log at debug, calls
// answered with an ErrorResponse at info and handler errors at warn.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			fields := []zap.Field{zap.String("caller", CallerFrom(ctx))}
			if hc, ok := ctx.(HostContext); ok {
				fields = append(fields,
					zap.String("function", hc.FunctionName()),
					zap.String("call_id", hc.CallID()),
				)
			}

			start := time.Now()
			resp, err := next(ctx, payload)
			fields = append(fields, zap.Duration("duration", time.Since(start)))

			switch rejected, isErr := decodeErrorReply(resp); {
			case err != nil:
				logger.Warn("host function failed", append(fields, zap.Error(err))...)
			case isErr:
				logger.Info("host function rejected", append(fields,
					zap.String("code", rejected.Error),
					zap.String("kind", rejected.Kind),
					zap.String("message", rejected.Message),
				)...)
			default:
				logger.Debug("host function completed", append(fields, zap.Int("response_bytes", len(resp)))...)
			}
			return resp, err
		}
	}
}

// decodeErrorReply reports whether resp is an ErrorResponse.
func decodeErrorReply(resp []byte) (ErrorResponse, bool) {
	if !bytes.Contains(resp, []byte(`"error"`)) {
		return ErrorResponse{}, false
	}
	var er ErrorResponse
	if err := json.Unmarshal(resp, &er); err != nil || er.Error == "" || er.Code == 0 {
		return ErrorResponse{}, false
	}
	return er, true
}
