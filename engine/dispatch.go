package engine

import (
	"context"

	"corerpc/contract"
	"corerpc/envelope"
	"corerpc/middleware"
	"corerpc/rpcstatus"
	"corerpc/stream"

	"go.uber.org/zap"
)

// readLoop is the engine's sole consumer of the transport's inbound
// frames; it decodes each into an Envelope and dispatches it (§4.5).
func (e *Engine) readLoop() {
	for frame := range e.tr.Incoming() {
		env, err := envelope.DecodeBytes(frame)
		if err != nil {
			e.logger.Warn("dropping undecodable frame", zap.Error(err))
			continue
		}
		if env.IsHeartbeat() {
			continue
		}
		e.dispatch(env)
	}
	// Incoming closed without an explicit Close(): a transport failure.
	// Every open stream resolves locally with UNAVAILABLE and no STATUS
	// is sent (§4.4 "Transport failure mid-stream").
	e.abortAllUnavailable()
	// Closing the engine closes Closed(), so waiters see the end of the
	// transport loop; Close is a no-op if it already ran.
	e.Close()
}

func (e *Engine) abortAllUnavailable() {
	e.mu.Lock()
	streams := make([]activeStream, 0, len(e.streams))
	for _, s := range e.streams {
		streams = append(streams, s)
	}
	e.mu.Unlock()

	st := rpcstatus.New(rpcstatus.Unavailable, "transport closed")
	for _, s := range streams {
		if a, ok := s.(interface{ AbortLocally(*rpcstatus.Error) }); ok {
			a.AbortLocally(st)
		}
	}
}

func (e *Engine) dispatch(env *envelope.Envelope) {
	switch env.Kind {
	case envelope.Begin:
		e.handleBegin(env)
	case envelope.Message:
		e.mu.Lock()
		sink := e.messageSinks[env.StreamID]
		e.mu.Unlock()
		if sink != nil {
			sink(env.Payload)
		}
	case envelope.HalfClose:
		e.mu.Lock()
		s := e.streams[env.StreamID]
		e.mu.Unlock()
		if s != nil {
			s.OnHalfClose()
		}
	case envelope.Cancel:
		e.mu.Lock()
		s := e.streams[env.StreamID]
		e.mu.Unlock()
		if s != nil {
			s.OnCancel()
		}
	case envelope.Status:
		e.mu.Lock()
		sink := e.statusSinks[env.StreamID]
		e.mu.Unlock()
		if sink != nil && env.StatusMsg != nil {
			sink(&rpcstatus.Error{Code: env.StatusMsg.Code, Message: env.StatusMsg.Message, Details: env.StatusMsg.Details})
		}
	default:
		e.logger.Warn("dropping envelope of unknown kind", zap.Uint8("kind", uint8(env.Kind)))
	}
}

// handleBegin services an inbound BEGIN: a registry miss resolves
// UNIMPLEMENTED without ever creating a LogicalStream (§4.4 edge
// cases); a hit spawns the handler over a pattern-appropriate stream
// wrapper.
func (e *Engine) handleBegin(env *envelope.Envelope) {
	sender := e.newInboundSender(env.StreamID)

	if e.registry == nil || env.Method == nil {
		sender.SendStatus(rpcstatus.New(rpcstatus.Unimplemented, "endpoint serves no inbound methods"))
		return
	}
	mc, err := e.registry.Lookup(env.Method.Service, env.Method.Method)
	if err != nil {
		sender.SendStatus(rpcstatus.New(rpcstatus.Unimplemented, "unknown method %s", env.Method.String()))
		return
	}

	if a := e.getAuth(); a != nil {
		call := middleware.Call{Service: env.Method.Service, Method: env.Method.Method, Metadata: mc.Metadata}
		if err := a.Check(call, env.Metadata); err != nil {
			sender.SendStatus(rpcstatus.FromError(err))
			return
		}
	}

	e.inFlight.Add(1)
	switch mc.Type {
	case contract.Unary:
		s := stream.NewUnary(env.StreamID, mc, stream.ServerSide, sender, context.Background())
		e.registerActive(env.StreamID, s, s.OnMessage, s.OnStatus)
		go func() { defer e.inFlight.Done(); e.runUnary(mc, s) }()
	case contract.ServerStreaming:
		s := stream.NewServerStream(env.StreamID, mc, stream.ServerSide, sender, context.Background())
		e.registerActive(env.StreamID, s, s.OnMessage, s.OnStatus)
		go func() { defer e.inFlight.Done(); e.runServerStream(mc, s) }()
	case contract.ClientStreaming:
		s := stream.NewClientStream(env.StreamID, mc, stream.ServerSide, sender, context.Background())
		e.registerActive(env.StreamID, s, s.OnMessage, s.OnStatus)
		go func() { defer e.inFlight.Done(); e.runClientStream(mc, s) }()
	case contract.BidiStreaming:
		s := stream.NewBidiStream(env.StreamID, mc, stream.ServerSide, sender, context.Background())
		e.registerActive(env.StreamID, s, s.OnMessage, s.OnStatus)
		go func() { defer e.inFlight.Done(); e.runBidiStream(mc, s) }()
	default:
		e.inFlight.Done()
	}
}

// singleResponder is the shared surface of Unary and ClientStream
// needed to drive a handler expected to send exactly one response.
type singleResponder interface {
	Respond(payload []byte) error
	Finish(st *rpcstatus.Error) error
}

// runSingleResponse drives a handler whose out channel must yield
// exactly one value (Unary, ClientStreaming): whichever happens
// first — a response value, or the handler returning — decides the
// outcome. Once a response value is taken, the call ends with OK and
// the handler's completion error is not consulted; the error decides
// the status only when out closes without a value or the handler
// returns first.
func runSingleResponse(mc *contract.MethodContract, s singleResponder, hctx contract.HandlerContext, in <-chan []byte) {
	out := make(chan []byte, 1)
	errCh := make(chan error, 1)
	go func() { errCh <- mc.Handler(hctx, in, out) }()

	select {
	case resp, ok := <-out:
		if ok {
			s.Respond(resp)
			return
		}
		// out was closed without a value: treat as an empty response,
		// resolved once the handler's error (if any) arrives.
		if err := <-errCh; err != nil {
			s.Finish(rpcstatus.FromError(err))
		} else {
			s.Finish(rpcstatus.Sentinel(rpcstatus.OK))
		}
	case err := <-errCh:
		if err != nil {
			s.Finish(rpcstatus.FromError(err))
		} else {
			s.Finish(rpcstatus.Sentinel(rpcstatus.OK))
		}
	}
}

func (e *Engine) runUnary(mc *contract.MethodContract, s *stream.Unary) {
	runSingleResponse(mc, s, s, s.Inbound())
}

func (e *Engine) runClientStream(mc *contract.MethodContract, s *stream.ClientStream) {
	runSingleResponse(mc, s, s, s.Inbound())
}

func (e *Engine) runServerStream(mc *contract.MethodContract, s *stream.ServerStream) {
	out := make(chan []byte, 16)
	errCh := make(chan error, 1)
	go func() { errCh <- mc.Handler(s, s.Inbound(), out) }()

	for {
		select {
		case resp, ok := <-out:
			if !ok {
				s.Finish(<-errOrOK(errCh))
				return
			}
			s.Send(resp)
		case <-s.Done():
			return
		}
	}
}

func (e *Engine) runBidiStream(mc *contract.MethodContract, s *stream.BidiStream) {
	out := make(chan []byte, 16)
	errCh := make(chan error, 1)
	go func() { errCh <- mc.Handler(s, s.Inbound(), out) }()

	for {
		select {
		case resp, ok := <-out:
			if !ok {
				s.Finish(<-errOrOK(errCh))
				return
			}
			s.Send(resp)
		case <-s.Done():
			return
		}
	}
}

// errOrOK turns a handler's completion error into a terminal status,
// mapping a nil error to STATUS(OK).
func errOrOK(errCh <-chan error) <-chan *rpcstatus.Error {
	ch := make(chan *rpcstatus.Error, 1)
	go func() {
		if err := <-errCh; err != nil {
			ch <- rpcstatus.FromError(err)
		} else {
			ch <- rpcstatus.Sentinel(rpcstatus.OK)
		}
	}()
	return ch
}
