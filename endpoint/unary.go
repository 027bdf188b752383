package endpoint

import (
	"context"
	"errors"
	"time"

	"corerpc/contract"
	"corerpc/middleware"
	"corerpc/rpcstatus"
	"corerpc/stream"
)

// withDeadline applies a method's declared TimeoutMS to ctx, emitting
// CANCEL on expiry exactly like the originator-side deadline rule in
// §5: "when a method's declared timeout elapses, the originator emits
// CANCEL; resolution identical to [client-initiated cancel]."
func withDeadline(ctx context.Context, md contract.Metadata) (context.Context, context.CancelFunc) {
	if md.TimeoutMS <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(md.TimeoutMS)*time.Millisecond)
}

// watchDeadline sends CANCEL on the stream if ctx is done before the
// stream resolves on its own, distinguishing why: onDeadline resolves
// locally as DEADLINE_EXCEEDED when ctx's own timeout elapsed,
// onCancel as CANCELLED for any other cancellation of ctx (§5, §8
// scenario 6).
func watchDeadline(ctx context.Context, done <-chan struct{}, onDeadline, onCancel func() error) {
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			onDeadline()
		} else {
			onCancel()
		}
	case <-done:
	}
}

// UnaryRequest performs a unary call (§4.4 "Unary", client side):
// BEGIN + MESSAGE + HALF_CLOSE, then awaits one MESSAGE and STATUS. A
// configured Cache short-circuits a cacheable method's repeat request,
// and a configured Retry resends a transient failure up to the
// method's RetryCount (or the Retry's own ceiling) with backoff
// between attempts (§10.3).
func (e *Endpoint) UnaryRequest(ctx context.Context, service, method string, md contract.Metadata, request []byte) ([]byte, error) {
	mc, found := e.localContract(service, method)
	if err := checkMethodType(mc, found, service, method, contract.Unary); err != nil {
		return nil, err
	}

	chain := e.chain()
	call := middleware.Call{Service: service, Method: method, Metadata: md}
	encoded, err := chain.Request(call, request)
	if err != nil {
		return nil, err
	}

	if c := e.getCache(); c != nil {
		if resp, ok := c.Lookup(call, encoded); ok {
			return resp, nil
		}
	}

	retry := e.getRetry()
	maxAttempts := md.RetryCount
	if maxAttempts == 0 && retry != nil {
		maxAttempts = retry.MaxRetries()
	}

	var resp []byte
	for attempt := 0; ; attempt++ {
		resp, err = e.sendUnary(ctx, mc, service, method, md, chain, call, encoded)
		if err == nil || retry == nil || attempt >= maxAttempts || !middleware.Retryable(err) {
			break
		}
		time.Sleep(retry.Backoff(attempt))
	}
	if err != nil {
		return nil, err
	}

	if c := e.getCache(); c != nil {
		c.Store(call, encoded, resp)
	}
	return resp, nil
}

// sendUnary drives a single BEGIN+MESSAGE+HALF_CLOSE attempt — the
// unit Retry repeats on a transient failure.
func (e *Endpoint) sendUnary(ctx context.Context, mc *contract.MethodContract, service, method string, md contract.Metadata, chain middleware.Chain, call middleware.Call, encoded []byte) ([]byte, error) {
	deadline, cancelDeadline := withDeadline(ctx, md)
	defer cancelDeadline()

	id, sender := e.eng.NewStream(service, method, md)
	if err := sender.SendBegin(); err != nil {
		return nil, err
	}
	u := stream.NewUnary(id, mc, stream.ClientSide, sender, deadline)
	e.eng.Register(id, u, u.OnMessage, u.OnStatus)

	go watchDeadline(deadline, u.Done(), u.CancelDeadline, u.Cancel)

	if err := sender.SendMessage(encoded); err != nil {
		return nil, err
	}
	if err := sender.SendHalfClose(); err != nil {
		return nil, err
	}

	resp, open := recvPriority(u.Inbound(), u.Done())
	if !open {
		if st := u.Status(); st != nil && st.Code != rpcstatus.OK {
			return nil, st
		}
		return nil, rpcstatus.New(rpcstatus.Unknown, "unary call resolved without a response or status")
	}
	<-u.Done()
	if st := u.Status(); st != nil && st.Code != rpcstatus.OK {
		return nil, st
	}
	return chain.Response(call, resp)
}
