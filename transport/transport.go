// Package transport defines the opaque, bidirectional frame channel the
// engine multiplexes RPC calls over (SPEC_FULL.md §4.1), plus an
// in-memory implementation used by the core's own tests and by
// same-process examples.
//
// Concrete, swappable implementations for real transports live in
// sibling packages (transport/tcp, transport/wstransport,
// transport/natstransport) so the core engine package never imports a
// specific medium.
package transport

import "errors"

// ErrClosed is returned by Send once the transport has been closed.
var ErrClosed = errors.New("transport: closed")

// Transport is the contract the engine consumes (§4.1). Implementations
// must preserve frame boundaries: each Send produces exactly one value
// read from Incoming on the peer.
type Transport interface {
	// Send enqueues a frame for transmission. It returns once the
	// transport has accepted the frame (not necessarily once the peer
	// has received it), or ErrClosed if the transport is shut down.
	Send(frame []byte) error

	// Incoming returns a channel of received frames. The channel is
	// closed when the peer closes the connection or the transport
	// fails; a nil frame is never sent.
	Incoming() <-chan []byte

	// Close is idempotent. It releases resources and causes Incoming's
	// channel to close if it hasn't already.
	Close() error
}
