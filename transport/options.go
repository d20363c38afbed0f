package transport

import (
	"time"

	"go.uber.org/zap"

	"github.com/reglet-dev/scriptnet/domain/ports"
)

// Option is a functional option for configuring a Client.
type Option func(*clientConfig)

type clientConfig struct {
	backend     ports.Backend
	clock       func() time.Time
	logger      *zap.Logger
	httpOptions []HTTPOption
}

func defaultClientConfig() clientConfig {
	return clientConfig{
		clock:  time.Now,
		logger: zap.NewNop(),
	}
}

// WithBackend replaces the net/http backend. HTTP options are ignored when a
// backend is supplied.
func WithBackend(b ports.Backend) Option {
	return func(c *clientConfig) {
		c.backend = b
	}
}

// WithClock sets the monotonic clock used for timeouts and rate limiting.
func WithClock(clock func() time.Time) Option {
	return func(c *clientConfig) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *clientConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPOptions configures the default net/http backend.
func WithHTTPOptions(opts ...HTTPOption) Option {
	return func(c *clientConfig) {
		c.httpOptions = append(c.httpOptions, opts...)
	}
}
