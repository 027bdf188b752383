package endpoint

import (
	"context"

	"corerpc/contract"
	"corerpc/middleware"
	"corerpc/rpcstatus"
	"corerpc/stream"
)

// BidiStreamCall is the client-side handle for a bidirectional call
// (§4.4 "Bidirectional streaming"): either side may Send until it
// half-closes; Recv yields responses until the peer's STATUS.
type BidiStreamCall struct {
	call  middleware.Call
	chain middleware.Chain
	s     *stream.BidiStream
}

// Send encodes and emits one message.
func (c *BidiStreamCall) Send(payload []byte) error {
	encoded, err := c.chain.Request(c.call, payload)
	if err != nil {
		return err
	}
	return c.s.Send(encoded)
}

// CloseSend declares this side done sending.
func (c *BidiStreamCall) CloseSend() error {
	return c.s.HalfClose()
}

// Recv blocks for the next response message. ok is false once the
// peer has ended the exchange (err carries the terminal status, if
// not OK).
func (c *BidiStreamCall) Recv() (payload []byte, ok bool, err error) {
	raw, open := recvPriority(c.s.Inbound(), c.s.Done())
	if !open {
		return nil, false, c.terminalErr()
	}
	decoded, derr := c.chain.Response(c.call, raw)
	return decoded, true, derr
}

func (c *BidiStreamCall) terminalErr() error {
	if st := c.s.Status(); st != nil && st.Code != rpcstatus.OK {
		return st
	}
	return nil
}

// Cancel ends the call early (§5).
func (c *BidiStreamCall) Cancel() error {
	return c.s.Cancel()
}

// BidiStream opens a bidirectional-streaming call.
func (e *Endpoint) BidiStream(ctx context.Context, service, method string, md contract.Metadata) (*BidiStreamCall, error) {
	mc, found := e.localContract(service, method)
	if err := checkMethodType(mc, found, service, method, contract.BidiStreaming); err != nil {
		return nil, err
	}

	deadline, cancelDeadline := withDeadline(ctx, md)

	id, sender := e.eng.NewStream(service, method, md)
	if err := sender.SendBegin(); err != nil {
		cancelDeadline()
		return nil, err
	}
	s := stream.NewBidiStream(id, mc, stream.ClientSide, sender, deadline)
	e.eng.Register(id, s, s.OnMessage, s.OnStatus)
	go func() {
		defer cancelDeadline()
		watchDeadline(deadline, s.Done(), s.CancelDeadline, s.Cancel)
	}()

	return &BidiStreamCall{
		call:  middleware.Call{Service: service, Method: method, Metadata: md},
		chain: e.chain(),
		s:     s,
	}, nil
}
