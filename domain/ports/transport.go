package ports

import "github.com/reglet-dev/scriptnet/domain/entities"

// EventKind identifies a TransferEvent.
type EventKind int

const (
	// EventConnected reports that a connection (including TLS) was obtained.
	EventConnected EventKind = iota + 1
	// EventStatus carries the response status line.
	EventStatus
	// EventChunk carries a slice of body bytes owned by the receiver.
	EventChunk
	// EventDone reports the end of the body.
	EventDone
	// EventFailed carries the error that ended the transfer.
	EventFailed
)

// TransferEvent is one unit of progress published by a Transfer.
type TransferEvent struct {
	Err    error
	Data   []byte
	Kind   EventKind
	Status int
}

// TransferRequest is the copy of a descriptor's request that a backend sees.
// Backends never hold the descriptor itself.
type TransferRequest struct {
	URL     string
	Method  string
	Headers []entities.Header
	Body    []byte
	ID      uint64
}

// Transfer is a backend handle for one in-flight request.
type Transfer interface {
	// Events returns the channel the engine polls without blocking.
	// It is closed after the final EventDone or EventFailed, or after Abort.
	Events() <-chan TransferEvent

	// Abort stops the transfer and releases its I/O resources.
	// It is idempotent and never blocks.
	Abort()
}

// Backend starts transfers. Start must not block on network I/O.
type Backend interface {
	Start(req TransferRequest) (Transfer, error)
}
