package endpoint

import (
	"context"

	"corerpc/contract"
	"corerpc/middleware"
	"corerpc/rpcstatus"
	"corerpc/stream"
)

// ServerStreamCall is the client-side handle for a server-streaming
// call (§4.4 "Server streaming"): one request in, a lazy sequence of
// responses out.
type ServerStreamCall struct {
	call  middleware.Call
	chain middleware.Chain
	s     *stream.ServerStream
}

// Recv blocks for the next response message, returning it decoded
// through the response middleware chain. ok is false once the
// sequence has ended (err is nil on a clean end, the terminal status
// otherwise).
func (c *ServerStreamCall) Recv() (payload []byte, ok bool, err error) {
	raw, open := recvPriority(c.s.Inbound(), c.s.Done())
	if !open {
		return nil, false, c.terminalErr()
	}
	decoded, derr := c.chain.Response(c.call, raw)
	return decoded, true, derr
}

func (c *ServerStreamCall) terminalErr() error {
	if st := c.s.Status(); st != nil && st.Code != rpcstatus.OK {
		return st
	}
	return nil
}

// Cancel ends the call early (§5 client-initiated cancel).
func (c *ServerStreamCall) Cancel() error {
	return c.s.Cancel()
}

// ServerStream opens a server-streaming call: BEGIN + MESSAGE +
// HALF_CLOSE, then hands back a handle to receive 0..N responses.
func (e *Endpoint) ServerStream(ctx context.Context, service, method string, md contract.Metadata, request []byte) (*ServerStreamCall, error) {
	mc, found := e.localContract(service, method)
	if err := checkMethodType(mc, found, service, method, contract.ServerStreaming); err != nil {
		return nil, err
	}

	chain := e.chain()
	call := middleware.Call{Service: service, Method: method, Metadata: md}
	encoded, err := chain.Request(call, request)
	if err != nil {
		return nil, err
	}

	deadline, cancelDeadline := withDeadline(ctx, md)

	id, sender := e.eng.NewStream(service, method, md)
	if err := sender.SendBegin(); err != nil {
		cancelDeadline()
		return nil, err
	}
	s := stream.NewServerStream(id, mc, stream.ClientSide, sender, deadline)
	e.eng.Register(id, s, s.OnMessage, s.OnStatus)
	go func() {
		defer cancelDeadline()
		watchDeadline(deadline, s.Done(), s.CancelDeadline, s.Cancel)
	}()

	if err := sender.SendMessage(encoded); err != nil {
		s.AbortLocally(rpcstatus.FromError(err))
		return nil, err
	}
	if err := sender.SendHalfClose(); err != nil {
		s.AbortLocally(rpcstatus.FromError(err))
		return nil, err
	}

	return &ServerStreamCall{call: call, chain: chain, s: s}, nil
}
