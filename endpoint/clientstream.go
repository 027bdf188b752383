package endpoint

import (
	"context"

	"corerpc/contract"
	"corerpc/middleware"
	"corerpc/rpcstatus"
	"corerpc/stream"
)

// ClientStreamCall is the client-side handle for a client-streaming
// call (§4.4 "Client streaming"): N requests out, one response in.
type ClientStreamCall struct {
	call  middleware.Call
	chain middleware.Chain
	s     *stream.ClientStream
}

// Send encodes and emits one request message through the request
// middleware chain.
func (c *ClientStreamCall) Send(payload []byte) error {
	encoded, err := c.chain.Request(c.call, payload)
	if err != nil {
		return err
	}
	return c.s.Sender().SendMessage(encoded)
}

// CloseAndRecv half-closes the request sequence and awaits the single
// aggregate response.
func (c *ClientStreamCall) CloseAndRecv() ([]byte, error) {
	if err := c.s.Sender().SendHalfClose(); err != nil {
		return nil, err
	}
	resp, open := recvPriority(c.s.Inbound(), c.s.Done())
	if !open {
		if st := c.s.Status(); st != nil {
			return nil, st
		}
		return nil, rpcstatus.New(rpcstatus.Unknown, "client-streaming call resolved without a response or status")
	}
	<-c.s.Done()
	if st := c.s.Status(); st != nil && st.Code != rpcstatus.OK {
		return nil, st
	}
	return c.chain.Response(c.call, resp)
}

// ClientStream opens a client-streaming call, returning a handle to
// send 1..N requests before closing and awaiting the response.
func (e *Endpoint) ClientStream(ctx context.Context, service, method string, md contract.Metadata) (*ClientStreamCall, error) {
	mc, found := e.localContract(service, method)
	if err := checkMethodType(mc, found, service, method, contract.ClientStreaming); err != nil {
		return nil, err
	}

	deadline, cancelDeadline := withDeadline(ctx, md)

	id, sender := e.eng.NewStream(service, method, md)
	if err := sender.SendBegin(); err != nil {
		cancelDeadline()
		return nil, err
	}
	s := stream.NewClientStream(id, mc, stream.ClientSide, sender, deadline)
	e.eng.Register(id, s, s.OnMessage, s.OnStatus)
	go func() {
		defer cancelDeadline()
		watchDeadline(deadline, s.Done(), s.CancelDeadline, s.Cancel)
	}()

	return &ClientStreamCall{
		call:  middleware.Call{Service: service, Method: method, Metadata: md},
		chain: e.chain(),
		s:     s,
	}, nil
}
