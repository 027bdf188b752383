package transport

import "sync"

// InMemory is a Transport backed by a pair of Go channels, used in the
// core's own tests and any same-process pairing of endpoints. It plays
// the role the spec calls out explicitly: "the in-memory transport used
// for examples" (§5, stream-id allocation note).
//
// Two InMemory values created by NewInMemoryPair are cross-wired: frames
// sent on one arrive on the other's Incoming channel, in order. Each
// side is the sole writer to its own "out" channel, so it alone may
// close it — that close is what makes the peer's Incoming() channel
// close, satisfying the Transport contract.
type InMemory struct {
	out      chan []byte
	in       <-chan []byte
	closeOut sync.Once
}

// NewInMemoryPair builds two cross-wired InMemory transports: sends on
// a arrive on b's Incoming, and vice versa.
func NewInMemoryPair(bufferSize int) (a, b *InMemory) {
	ab := make(chan []byte, bufferSize)
	ba := make(chan []byte, bufferSize)
	a = &InMemory{out: ab, in: ba}
	b = &InMemory{out: ba, in: ab}
	return a, b
}

func (t *InMemory) Send(frame []byte) (err error) {
	defer func() {
		// A send racing Close may hit a closed channel; surface it as
		// ErrClosed rather than letting the panic escape.
		if r := recover(); r != nil {
			err = ErrClosed
		}
	}()
	t.out <- frame
	return nil
}

func (t *InMemory) Incoming() <-chan []byte {
	return t.in
}

// Close is idempotent: closing the underlying channel more than once
// would panic, so the actual close is guarded by sync.Once.
//
// Close closes only this side's out channel, which is the peer's
// Incoming. This side's own Incoming stays open until the peer closes
// too.
func (t *InMemory) Close() error {
	t.closeOut.Do(func() {
		close(t.out)
	})
	return nil
}
