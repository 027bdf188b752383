package endpoint

import (
	"context"
	"testing"
	"time"

	"corerpc/contract"
	"corerpc/engine"
	"corerpc/middleware"
	"corerpc/rpcstatus"
	"corerpc/transport"
)

func testService(t *testing.T) *contract.ServiceContract {
	t.Helper()
	svc, err := contract.Define("Calc", func(r *contract.Registrar) error {
		if err := r.AddMethod(contract.MethodContract{
			Method: "Double",
			Type:   contract.Unary,
			Handler: func(ctx contract.HandlerContext, in <-chan []byte, out chan<- []byte) error {
				req := <-in
				out <- append(req, req...)
				return nil
			},
		}); err != nil {
			return err
		}
		if err := r.AddMethod(contract.MethodContract{
			Method: "Count",
			Type:   contract.ServerStreaming,
			Handler: func(ctx contract.HandlerContext, in <-chan []byte, out chan<- []byte) error {
				<-in
				for i := 0; i < 3; i++ {
					out <- []byte{byte('a' + i)}
				}
				close(out)
				return nil
			},
		}); err != nil {
			return err
		}
		if err := r.AddMethod(contract.MethodContract{
			Method: "Sum",
			Type:   contract.ClientStreaming,
			Handler: func(ctx contract.HandlerContext, in <-chan []byte, out chan<- []byte) error {
				var total byte
				for req := range in {
					total += req[0]
				}
				out <- []byte{total}
				return nil
			},
		}); err != nil {
			return err
		}
		if err := r.AddMethod(contract.MethodContract{
			Method: "Mirror",
			Type:   contract.BidiStreaming,
			Handler: func(ctx contract.HandlerContext, in <-chan []byte, out chan<- []byte) error {
				for req := range in {
					out <- append([]byte("mirror:"), req...)
				}
				close(out)
				return nil
			},
		}); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Define failed: %v", err)
	}
	return svc
}

func newEndpointPair(t *testing.T) (server, client *Endpoint) {
	t.Helper()
	serverTr, clientTr := transport.NewInMemoryPair(4)
	server = New(serverTr, engine.OriginatorServer, nil)
	client = New(clientTr, engine.OriginatorClient, nil)
	if err := server.RegisterServiceContract(testService(t)); err != nil {
		t.Fatalf("RegisterServiceContract failed: %v", err)
	}
	t.Cleanup(func() {
		client.Close(0)
		server.Close(0)
	})
	return server, client
}

func TestUnaryRequestRoundTrip(t *testing.T) {
	_, client := newEndpointPair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := client.UnaryRequest(ctx, "Calc", "Double", contract.Metadata{}, []byte("x"))
	if err != nil {
		t.Fatalf("UnaryRequest failed: %v", err)
	}
	if string(resp) != "xx" {
		t.Errorf("resp = %q, want %q", resp, "xx")
	}
}

func TestUnaryRequestUnknownMethod(t *testing.T) {
	_, client := newEndpointPair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := client.UnaryRequest(ctx, "Calc", "Nope", contract.Metadata{}, []byte("x"))
	if err == nil {
		t.Fatalf("expected an error for an unknown method")
	}
	rpcErr, ok := err.(*rpcstatus.Error)
	if !ok {
		t.Fatalf("err = %T, want *rpcstatus.Error", err)
	}
	if rpcErr.Code != rpcstatus.Unimplemented {
		t.Errorf("code = %v, want UNIMPLEMENTED", rpcErr.Code)
	}
}

func TestServerStreamRoundTrip(t *testing.T) {
	_, client := newEndpointPair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	call, err := client.ServerStream(ctx, "Calc", "Count", contract.Metadata{}, []byte("go"))
	if err != nil {
		t.Fatalf("ServerStream failed: %v", err)
	}

	var got []byte
	for {
		payload, ok, err := call.Recv()
		if err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, payload...)
	}
	if string(got) != "abc" {
		t.Errorf("got = %q, want %q", got, "abc")
	}
}

func TestClientStreamRoundTrip(t *testing.T) {
	_, client := newEndpointPair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	call, err := client.ClientStream(ctx, "Calc", "Sum", contract.Metadata{})
	if err != nil {
		t.Fatalf("ClientStream failed: %v", err)
	}
	for _, b := range []byte{1, 2, 3} {
		if err := call.Send([]byte{b}); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}
	resp, err := call.CloseAndRecv()
	if err != nil {
		t.Fatalf("CloseAndRecv failed: %v", err)
	}
	if len(resp) != 1 || resp[0] != 6 {
		t.Errorf("resp = %v, want [6]", resp)
	}
}

func TestBidiStreamRoundTrip(t *testing.T) {
	_, client := newEndpointPair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	call, err := client.BidiStream(ctx, "Calc", "Mirror", contract.Metadata{})
	if err != nil {
		t.Fatalf("BidiStream failed: %v", err)
	}

	if err := call.Send([]byte("hi")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	payload, ok, err := call.Recv()
	if err != nil || !ok {
		t.Fatalf("Recv failed: ok=%v err=%v", ok, err)
	}
	if string(payload) != "mirror:hi" {
		t.Errorf("payload = %q, want %q", payload, "mirror:hi")
	}

	if err := call.CloseSend(); err != nil {
		t.Fatalf("CloseSend failed: %v", err)
	}
	if _, ok, err := call.Recv(); ok || err != nil {
		t.Errorf("expected a clean end, got ok=%v err=%v", ok, err)
	}
}

func TestUnaryRequestDeadlineExceeded(t *testing.T) {
	serverTr, clientTr := transport.NewInMemoryPair(4)
	server := New(serverTr, engine.OriginatorServer, nil)
	client := New(clientTr, engine.OriginatorClient, nil)
	defer client.Close(0)
	defer server.Close(0)

	svc, err := contract.Define("Slow", func(r *contract.Registrar) error {
		return r.AddMethod(contract.MethodContract{
			Method: "Wait",
			Type:   contract.Unary,
			Handler: func(ctx contract.HandlerContext, in <-chan []byte, out chan<- []byte) error {
				<-in
				<-ctx.Done()
				return ctx.Err()
			},
		})
	})
	if err != nil {
		t.Fatalf("Define failed: %v", err)
	}
	if err := server.RegisterServiceContract(svc); err != nil {
		t.Fatalf("RegisterServiceContract failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.UnaryRequest(ctx, "Slow", "Wait", contract.Metadata{}, []byte("x"))
	if err == nil {
		t.Fatalf("expected a deadline error")
	}
	rpcErr, ok := err.(*rpcstatus.Error)
	if !ok {
		t.Fatalf("err = %T, want *rpcstatus.Error", err)
	}
	if rpcErr.Code != rpcstatus.DeadlineExceeded {
		t.Errorf("code = %v, want DEADLINE_EXCEEDED", rpcErr.Code)
	}
}

// TestClientStreamZeroMessages covers a client-streaming call that
// half-closes without ever sending a message: BEGIN must go out as
// soon as the stream opens (not lazily from the first SendMessage),
// or the server never learns the call exists and CloseAndRecv hangs.
func TestClientStreamZeroMessages(t *testing.T) {
	_, client := newEndpointPair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	call, err := client.ClientStream(ctx, "Calc", "Sum", contract.Metadata{})
	if err != nil {
		t.Fatalf("ClientStream failed: %v", err)
	}
	resp, err := call.CloseAndRecv()
	if err != nil {
		t.Fatalf("CloseAndRecv failed: %v", err)
	}
	if len(resp) != 1 || resp[0] != 0 {
		t.Errorf("resp = %v, want [0]", resp)
	}
}

func TestUnaryRequestUsesCache(t *testing.T) {
	_, client := newEndpointPair(t)

	calls := 0
	svc, err := contract.Define("Cached", func(r *contract.Registrar) error {
		return r.AddMethod(contract.MethodContract{
			Method:   "Echo",
			Type:     contract.Unary,
			Metadata: contract.Metadata{Cacheable: true},
			Handler: func(ctx contract.HandlerContext, in <-chan []byte, out chan<- []byte) error {
				calls++
				out <- <-in
				return nil
			},
		})
	})
	if err != nil {
		t.Fatalf("Define failed: %v", err)
	}

	serverTr, clientTr := transport.NewInMemoryPair(4)
	server := New(serverTr, engine.OriginatorServer, nil)
	cachingClient := New(clientTr, engine.OriginatorClient, nil)
	cachingClient.SetCache(middleware.NewCache(time.Minute, time.Minute))
	if err := server.RegisterServiceContract(svc); err != nil {
		t.Fatalf("RegisterServiceContract failed: %v", err)
	}
	defer cachingClient.Close(0)
	defer server.Close(0)
	_ = client

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	md := contract.Metadata{Cacheable: true}
	for i := 0; i < 3; i++ {
		resp, err := cachingClient.UnaryRequest(ctx, "Cached", "Echo", md, []byte("x"))
		if err != nil {
			t.Fatalf("UnaryRequest failed: %v", err)
		}
		if string(resp) != "x" {
			t.Errorf("resp = %q, want %q", resp, "x")
		}
	}
	if calls != 1 {
		t.Errorf("handler invoked %d times, want 1 (cache should have short-circuited the rest)", calls)
	}
}

func TestUnaryRequestRejectsMissingAuth(t *testing.T) {
	svc, err := contract.Define("Secure", func(r *contract.Registrar) error {
		return r.AddMethod(contract.MethodContract{
			Method:   "Op",
			Type:     contract.Unary,
			Metadata: contract.Metadata{RequiresAuth: true},
			Handler: func(ctx contract.HandlerContext, in <-chan []byte, out chan<- []byte) error {
				out <- <-in
				return nil
			},
		})
	})
	if err != nil {
		t.Fatalf("Define failed: %v", err)
	}

	serverTr, clientTr := transport.NewInMemoryPair(4)
	server := New(serverTr, engine.OriginatorServer, nil)
	client := New(clientTr, engine.OriginatorClient, nil)
	server.SetAuth(middleware.NewAuth("token", func(token string) ([]string, error) {
		return nil, rpcstatus.New(rpcstatus.InvalidArgument, "unknown token %q", token)
	}))
	if err := server.RegisterServiceContract(svc); err != nil {
		t.Fatalf("RegisterServiceContract failed: %v", err)
	}
	defer client.Close(0)
	defer server.Close(0)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = client.UnaryRequest(ctx, "Secure", "Op", contract.Metadata{RequiresAuth: true}, []byte("x"))
	if err == nil {
		t.Fatalf("expected an auth error")
	}
	rpcErr, ok := err.(*rpcstatus.Error)
	if !ok {
		t.Fatalf("err = %T, want *rpcstatus.Error", err)
	}
	if rpcErr.Code != rpcstatus.InvalidArgument {
		t.Errorf("code = %v, want INVALID_ARGUMENT", rpcErr.Code)
	}
}

func TestUnaryRequestRetriesTransientFailure(t *testing.T) {
	attempts := 0
	svc, err := contract.Define("Flaky", func(r *contract.Registrar) error {
		return r.AddMethod(contract.MethodContract{
			Method:   "Op",
			Type:     contract.Unary,
			Metadata: contract.Metadata{RetryCount: 2},
			Handler: func(ctx contract.HandlerContext, in <-chan []byte, out chan<- []byte) error {
				<-in
				attempts++
				if attempts < 3 {
					return rpcstatus.New(rpcstatus.Unavailable, "not ready yet")
				}
				out <- []byte("ok")
				return nil
			},
		})
	})
	if err != nil {
		t.Fatalf("Define failed: %v", err)
	}

	serverTr, clientTr := transport.NewInMemoryPair(4)
	server := New(serverTr, engine.OriginatorServer, nil)
	client := New(clientTr, engine.OriginatorClient, nil)
	client.SetRetry(middleware.NewRetry(5, time.Millisecond))
	if err := server.RegisterServiceContract(svc); err != nil {
		t.Fatalf("RegisterServiceContract failed: %v", err)
	}
	defer client.Close(0)
	defer server.Close(0)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := client.UnaryRequest(ctx, "Flaky", "Op", contract.Metadata{RetryCount: 2}, []byte("x"))
	if err != nil {
		t.Fatalf("UnaryRequest failed: %v", err)
	}
	if string(resp) != "ok" {
		t.Errorf("resp = %q, want %q", resp, "ok")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}
