package engine

import (
	"context"
	"testing"
	"time"

	"corerpc/contract"
	"corerpc/rpcstatus"
	"corerpc/stream"
	"corerpc/transport"
)

func echoService(t *testing.T) *contract.ServiceContract {
	t.Helper()
	svc, err := contract.Define("Echo", func(r *contract.Registrar) error {
		return r.AddMethod(contract.MethodContract{
			Method: "Say",
			Type:   contract.Unary,
			Handler: func(ctx contract.HandlerContext, in <-chan []byte, out chan<- []byte) error {
				req := <-in
				out <- append([]byte("echo:"), req...)
				return nil
			},
		})
	})
	if err != nil {
		t.Fatalf("Define failed: %v", err)
	}
	return svc
}

func TestEngineUnaryRoundTrip(t *testing.T) {
	serverTr, clientTr := transport.NewInMemoryPair(4)
	defer serverTr.Close()
	defer clientTr.Close()

	registry := contract.NewRegistry()
	if err := registry.RegisterService(echoService(t)); err != nil {
		t.Fatalf("RegisterService failed: %v", err)
	}

	serverEngine := New(serverTr, registry, OriginatorServer, nil)
	defer serverEngine.Close()
	clientEngine := New(clientTr, nil, OriginatorClient, nil)
	defer clientEngine.Close()

	id, sender := clientEngine.NewStream("Echo", "Say", contract.Metadata{})
	call := stream.NewUnary(id, nil, stream.ClientSide, sender, context.Background())
	clientEngine.Register(id, call, call.OnMessage, call.OnStatus)

	if err := sender.SendMessage([]byte("hi")); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if err := sender.SendHalfClose(); err != nil {
		t.Fatalf("SendHalfClose failed: %v", err)
	}

	select {
	case resp := <-call.Inbound():
		if string(resp) != "echo:hi" {
			t.Errorf("response = %q, want %q", resp, "echo:hi")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for response")
	}

	select {
	case <-call.Done():
		if call.Status().Code != rpcstatus.OK {
			t.Errorf("final status = %v, want OK", call.Status())
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for terminal status")
	}
}

func TestEngineUnimplementedMethod(t *testing.T) {
	serverTr, clientTr := transport.NewInMemoryPair(4)
	defer serverTr.Close()
	defer clientTr.Close()

	serverEngine := New(serverTr, contract.NewRegistry(), OriginatorServer, nil)
	defer serverEngine.Close()
	clientEngine := New(clientTr, nil, OriginatorClient, nil)
	defer clientEngine.Close()

	id, sender := clientEngine.NewStream("Nope", "Missing", contract.Metadata{})
	call := stream.NewUnary(id, nil, stream.ClientSide, sender, context.Background())
	clientEngine.Register(id, call, call.OnMessage, call.OnStatus)

	if err := sender.SendMessage([]byte("hi")); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	sender.SendHalfClose()

	select {
	case <-call.Done():
		if call.Status().Code != rpcstatus.Unimplemented {
			t.Errorf("status = %v, want UNIMPLEMENTED", call.Status())
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for terminal status")
	}
}
