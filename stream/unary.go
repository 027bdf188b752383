package stream

import (
	"context"

	"corerpc/contract"
	"corerpc/rpcstatus"
)

// Unary drives the 1 request -> 1 response pattern (§4.4 "Unary").
type Unary struct {
	LogicalStream

	reqSeen  bool
	respSent bool
}

// NewUnary constructs a unary LogicalStream. dir says whether this
// process originated the BEGIN (ClientSide) or is serving it
// (ServerSide).
func NewUnary(id uint64, mc *contract.MethodContract, dir Direction, sender Sender, parent context.Context) *Unary {
	u := &Unary{LogicalStream: newLogicalStream(id, mc, dir, sender, parent)}
	u.setState(Open)
	return u
}

// OnMessage handles an inbound MESSAGE envelope. A second MESSAGE
// before HALF_CLOSE is a protocol violation.
func (u *Unary) OnMessage(payload []byte) error {
	if u.State() == Closed {
		return nil
	}
	if u.reqSeen {
		err := rpcstatus.New(rpcstatus.InvalidArgument, "unary call received more than one request message")
		u.failLocally(err)
		return err
	}
	u.reqSeen = true
	u.deliverMessage(payload)
	return nil
}

// OnHalfClose handles the peer declaring it has no more MESSAGEs to
// send. For a unary call from the client, HALF_CLOSE without a prior
// MESSAGE is also a violation (§4.4: "no request before HALF_CLOSE").
func (u *Unary) OnHalfClose() error {
	if u.State() == Closed {
		return nil
	}
	if !u.reqSeen {
		err := rpcstatus.New(rpcstatus.InvalidArgument, "unary call half-closed before sending a request message")
		u.failLocally(err)
		return err
	}
	u.closeInbound()
	if u.Direction == ClientSide {
		u.setState(HalfClosedLocal)
	} else {
		u.setState(HalfClosedRemote)
	}
	return nil
}

// OnStatus handles a terminal STATUS from the peer (client side
// observing the server's resolution).
func (u *Unary) OnStatus(st *rpcstatus.Error) {
	u.resolve(st)
}

// OnCancel handles an inbound CANCEL, resolving the stream without
// sending a reply STATUS (the peer already knows it cancelled).
func (u *Unary) OnCancel() {
	u.resolve(rpcstatus.Sentinel(rpcstatus.Cancelled))
}

// Respond sends the single response message followed by STATUS(OK),
// as required of the server side on successful handler completion.
func (u *Unary) Respond(payload []byte) error {
	if u.respSent {
		return rpcstatus.New(rpcstatus.Internal, "unary handler attempted to send more than one response")
	}
	u.respSent = true
	if err := u.sender.SendMessage(payload); err != nil {
		return err
	}
	return u.Finish(rpcstatus.Sentinel(rpcstatus.OK))
}

// Finish sends a terminal STATUS and resolves the stream locally.
func (u *Unary) Finish(st *rpcstatus.Error) error {
	u.resolve(st)
	return u.sender.SendStatus(st)
}

// failLocally resolves the stream with st and notifies the peer, used
// when this side detects a protocol violation in the inbound stream.
func (u *Unary) failLocally(st *rpcstatus.Error) {
	u.resolve(st)
	u.sender.SendStatus(st)
}
