package stream

import (
	"context"

	"corerpc/contract"
	"corerpc/rpcstatus"
)

// ServerStream drives the 1 request -> N responses pattern (§4.4
// "Server streaming").
type ServerStream struct {
	LogicalStream

	reqSeen bool
}

func NewServerStream(id uint64, mc *contract.MethodContract, dir Direction, sender Sender, parent context.Context) *ServerStream {
	s := &ServerStream{LogicalStream: newLogicalStream(id, mc, dir, sender, parent)}
	s.setState(Open)
	return s
}

func (s *ServerStream) OnMessage(payload []byte) error {
	if s.State() == Closed {
		return nil
	}
	if s.Direction == ServerSide {
		if s.reqSeen {
			err := rpcstatus.New(rpcstatus.InvalidArgument, "server-streaming call received more than one request message")
			s.failLocally(err)
			return err
		}
		s.reqSeen = true
	}
	s.deliverMessage(payload)
	return nil
}

func (s *ServerStream) OnHalfClose() error {
	if s.State() == Closed {
		return nil
	}
	if !s.reqSeen {
		err := rpcstatus.New(rpcstatus.InvalidArgument, "server-streaming call half-closed before sending a request message")
		s.failLocally(err)
		return err
	}
	s.closeInbound()
	if s.Direction == ClientSide {
		s.setState(HalfClosedLocal)
	} else {
		s.setState(HalfClosedRemote)
	}
	return nil
}

func (s *ServerStream) OnStatus(st *rpcstatus.Error) {
	s.resolve(st)
}

func (s *ServerStream) OnCancel() {
	s.resolve(rpcstatus.Sentinel(rpcstatus.Cancelled))
}

// Send emits one response MESSAGE. The server handler calls this
// repeatedly (pull-driven by its own production loop, per §4.4's
// backpressure requirement: a blocked sender backpressures the
// handler's loop, never the other way around).
func (s *ServerStream) Send(payload []byte) error {
	return s.sender.SendMessage(payload)
}

// Finish sends the terminal STATUS ending the response sequence.
func (s *ServerStream) Finish(st *rpcstatus.Error) error {
	s.resolve(st)
	return s.sender.SendStatus(st)
}

func (s *ServerStream) failLocally(st *rpcstatus.Error) {
	s.resolve(st)
	s.sender.SendStatus(st)
}
