package stream

import (
	"context"

	"corerpc/contract"
	"corerpc/rpcstatus"
)

// ClientStream drives the N requests -> 1 response pattern (§4.4
// "Client streaming").
type ClientStream struct {
	LogicalStream

	halfClosed bool
	respSent   bool
}

func NewClientStream(id uint64, mc *contract.MethodContract, dir Direction, sender Sender, parent context.Context) *ClientStream {
	c := &ClientStream{LogicalStream: newLogicalStream(id, mc, dir, sender, parent)}
	c.setState(Open)
	return c
}

// OnMessage handles one of the N request messages. A MESSAGE arriving
// after HALF_CLOSE on that direction is a protocol violation that
// aborts the stream with INTERNAL (§4.4).
func (c *ClientStream) OnMessage(payload []byte) error {
	if c.State() == Closed {
		return nil
	}
	if c.halfClosed {
		err := rpcstatus.New(rpcstatus.Internal, "client-streaming call received a message after half-close")
		c.failLocally(err)
		return err
	}
	c.deliverMessage(payload)
	return nil
}

// OnHalfClose ends the request sequence normally; the handler's
// request-sequence read terminates and it produces its single
// response.
func (c *ClientStream) OnHalfClose() error {
	if c.State() == Closed {
		return nil
	}
	c.halfClosed = true
	c.closeInbound()
	if c.Direction == ClientSide {
		c.setState(HalfClosedLocal)
	} else {
		c.setState(HalfClosedRemote)
	}
	return nil
}

func (c *ClientStream) OnStatus(st *rpcstatus.Error) {
	c.resolve(st)
}

func (c *ClientStream) OnCancel() {
	c.resolve(rpcstatus.Sentinel(rpcstatus.Cancelled))
}

// Respond sends the single aggregate response followed by STATUS(OK).
func (c *ClientStream) Respond(payload []byte) error {
	if c.respSent {
		return rpcstatus.New(rpcstatus.Internal, "client-streaming handler attempted to send more than one response")
	}
	c.respSent = true
	if err := c.sender.SendMessage(payload); err != nil {
		return err
	}
	return c.Finish(rpcstatus.Sentinel(rpcstatus.OK))
}

func (c *ClientStream) Finish(st *rpcstatus.Error) error {
	c.resolve(st)
	return c.sender.SendStatus(st)
}

func (c *ClientStream) failLocally(st *rpcstatus.Error) {
	c.resolve(st)
	c.sender.SendStatus(st)
}
