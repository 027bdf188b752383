package stream

import (
	"context"
	"sync"

	"corerpc/contract"
	"corerpc/rpcstatus"
)

// Sender is how a LogicalStream emits envelopes without depending on
// the engine or the wire codec; the engine supplies the concrete
// implementation (encode + transport.Send) when it builds a stream.
type Sender interface {
	SendBegin() error
	SendMessage(payload []byte) error
	SendHalfClose() error
	SendStatus(st *rpcstatus.Error) error
	SendCancel() error
}

// LogicalStream is the common runtime object backing all four call
// patterns (§3 Data Model, "LogicalStream"). The pattern-specific
// wrappers in this package (Unary, ServerStream, ClientStream,
// BidiStream) embed it and add cardinality enforcement.
type LogicalStream struct {
	ID        uint64
	Contract  *contract.MethodContract
	Direction Direction
	sender    Sender

	mu    sync.Mutex
	state State

	inbound chan []byte // decoded MESSAGE payloads, in arrival order

	ctx    context.Context
	cancel context.CancelCauseFunc

	statusOnce sync.Once
	status     *rpcstatus.Error
	done       chan struct{}
}

func newLogicalStream(id uint64, mc *contract.MethodContract, dir Direction, sender Sender, parent context.Context) LogicalStream {
	ctx, cancel := context.WithCancelCause(parent)
	return LogicalStream{
		ID:        id,
		Contract:  mc,
		Direction: dir,
		sender:    sender,
		state:     Idle,
		inbound:   make(chan []byte, 16),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Context is cancelled when the stream resolves, with Cause() set to
// the reason (a *rpcstatus.Error wrapped as the cancellation cause, or
// context.DeadlineExceeded if the parent's deadline fired first).
func (s *LogicalStream) Context() context.Context { return s.ctx }

// State returns the stream's current position, synchronized against
// concurrent transitions.
func (s *LogicalStream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *LogicalStream) setState(next State) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
}

// Done returns a channel closed when the stream first resolves: a
// terminal STATUS sent or received, a CANCEL, an elapsed deadline, or
// a local abort.
//
// Together with Err, this satisfies contract.HandlerContext, so a
// *LogicalStream (embedded in every pattern wrapper) can be passed to
// a Handler directly.
func (s *LogicalStream) Done() <-chan struct{} { return s.done }

// Err reports why the stream resolved, once Done is closed; nil
// beforehand.
func (s *LogicalStream) Err() error {
	return context.Cause(s.ctx)
}

// Status returns the resolved terminal status, or nil if the stream
// hasn't reached CLOSED yet.
func (s *LogicalStream) Status() *rpcstatus.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// resolve transitions to CLOSED and records the terminal status,
// exactly once; later calls are no-ops, implementing the tie-break
// rule that the first observed terminal event wins (§4.4 tie-breaks).
//
// closeInbound runs here too, not just on HALF_CLOSE: any terminal
// resolution (STATUS, CANCEL, or a locally-detected protocol
// violation) must stop accepting further inbound messages and let a
// Recv loop drain whatever is already buffered without racing a
// consumer's select against Done() (§8 invariant 4 and scenario 5).
// closeInbound tolerates the double call this produces when HALF_CLOSE
// already closed it.
func (s *LogicalStream) resolve(st *rpcstatus.Error) {
	s.statusOnce.Do(func() {
		s.mu.Lock()
		s.state = Closed
		s.status = st
		s.mu.Unlock()
		s.cancel(st)
		s.closeInbound()
		close(s.done)
	})
}

// deliverMessage pushes a decoded payload onto the inbound queue for
// the handler (or the call-site consumer) to read. It is a protocol
// violation to call this once the remote direction has half-closed or
// the stream is already closed; callers must check state first. The
// recover guards the remaining race: resolve (now run from goroutines
// other than dispatch, e.g. a handler's Finish or a deadline firing)
// can close inbound between that state check and this send.
func (s *LogicalStream) deliverMessage(payload []byte) {
	defer func() { recover() }()
	select {
	case s.inbound <- payload:
	case <-s.ctx.Done():
	}
}

// Inbound exposes the decoded MESSAGE payload queue to handlers and
// call-site readers.
func (s *LogicalStream) Inbound() <-chan []byte { return s.inbound }

// Sender exposes the envelope sender backing this stream, for call
// builders that need to emit additional MESSAGEs beyond what the
// pattern wrapper's own helpers cover (e.g. client-streaming's N
// outbound requests).
func (s *LogicalStream) Sender() Sender { return s.sender }

// closeInbound is called once no more MESSAGE envelopes will arrive on
// the remote direction (HALF_CLOSE observed, or the stream resolved).
func (s *LogicalStream) closeInbound() {
	defer func() { recover() }()
	close(s.inbound)
}

// Cancel sends CANCEL to the peer and resolves the stream locally with
// STATUS(CANCELLED), per §5's cancellation rules.
func (s *LogicalStream) Cancel() error {
	st := rpcstatus.Sentinel(rpcstatus.Cancelled)
	s.resolve(st)
	return s.sender.SendCancel()
}

// CancelDeadline sends CANCEL to the peer, the same wire signal as
// Cancel, but resolves the stream locally with STATUS(DEADLINE_EXCEEDED)
// instead of CANCELLED — for a caller whose own declared timeout
// elapsed, as distinct from an explicit outer cancellation (§5, §8
// scenario 6).
func (s *LogicalStream) CancelDeadline() error {
	st := rpcstatus.Sentinel(rpcstatus.DeadlineExceeded)
	s.resolve(st)
	return s.sender.SendCancel()
}

// AbortLocally resolves the stream with the given status without
// notifying the peer — used for transport failure (§4.4 edge cases:
// "no STATUS is sent").
func (s *LogicalStream) AbortLocally(st *rpcstatus.Error) {
	s.resolve(st)
}
