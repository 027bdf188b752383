package stream

import (
	"context"

	"corerpc/contract"
	"corerpc/rpcstatus"
)

// BidiStream drives the N <-> M pattern (§4.4 "Bidirectional
// streaming"): either side may send MESSAGE at any time until it
// half-closes, with no cardinality constraint beyond ordering.
type BidiStream struct {
	LogicalStream

	localHalfClosed  bool
	remoteHalfClosed bool
}

func NewBidiStream(id uint64, mc *contract.MethodContract, dir Direction, sender Sender, parent context.Context) *BidiStream {
	b := &BidiStream{LogicalStream: newLogicalStream(id, mc, dir, sender, parent)}
	b.setState(Open)
	return b
}

// OnMessage handles an inbound MESSAGE. Arriving after the remote
// direction half-closed is a protocol violation.
func (b *BidiStream) OnMessage(payload []byte) error {
	if b.State() == Closed {
		return nil
	}
	if b.remoteHalfClosed {
		err := rpcstatus.New(rpcstatus.Internal, "bidirectional call received a message after remote half-close")
		b.failLocally(err)
		return err
	}
	b.deliverMessage(payload)
	return nil
}

// OnHalfClose records that the peer will send no more MESSAGEs. The
// stream itself only becomes CLOSED once a terminal STATUS is also
// observed (§4.4: "When both half-closes and STATUS are observed").
func (b *BidiStream) OnHalfClose() error {
	if b.State() == Closed {
		return nil
	}
	b.remoteHalfClosed = true
	b.closeInbound()
	b.setState(HalfClosedRemote)
	return nil
}

// Send emits one outbound MESSAGE. Valid until HalfClose is called.
func (b *BidiStream) Send(payload []byte) error {
	if b.localHalfClosed {
		return rpcstatus.New(rpcstatus.Internal, "bidirectional call attempted to send after local half-close")
	}
	return b.sender.SendMessage(payload)
}

// HalfClose declares this side done sending MESSAGEs.
func (b *BidiStream) HalfClose() error {
	b.localHalfClosed = true
	return b.sender.SendHalfClose()
}

func (b *BidiStream) OnStatus(st *rpcstatus.Error) {
	b.resolve(st)
}

func (b *BidiStream) OnCancel() {
	b.resolve(rpcstatus.Sentinel(rpcstatus.Cancelled))
}

// Finish sends a terminal STATUS; only the server-initiating side does
// this per §4.4 ("either may send STATUS (server-initiated termination
// only)").
func (b *BidiStream) Finish(st *rpcstatus.Error) error {
	b.resolve(st)
	return b.sender.SendStatus(st)
}

func (b *BidiStream) failLocally(st *rpcstatus.Error) {
	b.resolve(st)
	b.sender.SendStatus(st)
}
