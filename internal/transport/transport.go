// Package transport wraps a raw message-oriented full-duplex socket into the
// framed text-message stream that internal/server and internal/client build
// the graphql-transport-ws protocol on top of. It knows nothing about the
// protocol itself -- only about sending and receiving text frames and
// reporting close.
package transport

import "context"

// CloseEvent describes how a Transport ended: the WebSocket close code and
// reason, and whether the close was a clean handshake or an abrupt drop.
type CloseEvent struct {
	Code     int
	Reason   string
	WasClean bool
}

// Transport is a message-oriented full-duplex stream of text frames.
type Transport interface {
	// Send writes one text frame. It may block if the transport applies
	// backpressure.
	Send(ctx context.Context, data []byte) error

	// Recv blocks until the next text frame arrives, the transport closes
	// (in which case it returns the sentinel error ErrClosed), or ctx is
	// done.
	Recv(ctx context.Context) ([]byte, error)

	// Close closes the transport with the given WebSocket close code and
	// reason. Safe to call more than once.
	Close(code int, reason string) error

	// Closed returns a channel that receives exactly one CloseEvent when
	// the transport has finished closing, however it was initiated.
	Closed() <-chan CloseEvent
}

// ErrClosed is returned by Recv once the transport has closed cleanly and no
// more frames will arrive.
var ErrClosed = closedError{}

type closedError struct{}

func (closedError) Error() string { return "transport closed" }
