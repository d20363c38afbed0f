package entities

import "time"

// Fixed transport limits. These are compile-time constants; only the clock
// and the backend are injectable.
const (
	// MaxConcurrent is the number of transfers that may be Active at once.
	MaxConcurrent = 10

	// MaxResponseSize caps the accumulated body of one response (10MB).
	MaxResponseSize = 10 * 1024 * 1024

	// MaxRequestBody caps an outbound request body (5MB).
	MaxRequestBody = 5 * 1024 * 1024

	// MaxURLLen is the longest accepted URL in bytes.
	MaxURLLen = 2048

	// MaxHeaderCount is the maximum number of request headers.
	MaxHeaderCount = 100

	// MaxHeaderSize caps a single "Name: value" header line (1KB).
	MaxHeaderSize = 1024

	// MaxHeadersTotal caps the sum of all header lines (8KB).
	MaxHeadersTotal = 8 * 1024

	// MaxMethodLen bounds the request method token.
	MaxMethodLen = 16

	// RateLimitWindow is the length of the global fixed admission window.
	RateLimitWindow = 60 * time.Second

	// RateLimitMax is the number of admissions allowed per window.
	RateLimitMax = 100

	// ConnectTimeout applies while a transfer has not yet obtained a connection.
	ConnectTimeout = 10 * time.Second

	// TotalTimeout applies from the moment a transfer becomes Active.
	TotalTimeout = 60 * time.Second
)
