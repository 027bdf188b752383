package tcp

import (
	"net"
	"testing"
	"time"
)

func listenPair(t *testing.T) (*Transport, *Transport) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer ln.Close()

	acceptCh := make(chan net.Conn, 1)
	errCh := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			errCh <- err
			return
		}
		acceptCh <- conn
	}()

	clientConn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	var serverConn net.Conn
	select {
	case serverConn = <-acceptCh:
	case err := <-errCh:
		t.Fatalf("Accept failed: %v", err)
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for Accept")
	}

	return New(clientConn, nil), New(serverConn, nil)
}

func TestTCPTransportRoundTrip(t *testing.T) {
	client, server := listenPair(t)
	defer client.Close()
	defer server.Close()

	if err := client.Send([]byte("hello")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case got := <-server.Incoming():
		if string(got) != "hello" {
			t.Errorf("got %q, want %q", got, "hello")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for frame")
	}
}

func TestTCPTransportPreservesFrameBoundaries(t *testing.T) {
	client, server := listenPair(t)
	defer client.Close()
	defer server.Close()

	frames := [][]byte{[]byte("a"), []byte(""), []byte("a longer frame body")}
	for _, f := range frames {
		if err := client.Send(f); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}

	for _, want := range frames {
		select {
		case got := <-server.Incoming():
			if string(got) != string(want) {
				t.Errorf("got %q, want %q", got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for frame %q", want)
		}
	}
}

func TestTCPTransportCloseEndsIncoming(t *testing.T) {
	client, server := listenPair(t)
	defer server.Close()

	client.Close()

	select {
	case _, ok := <-server.Incoming():
		if ok {
			t.Fatalf("expected server Incoming to observe peer close")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for Incoming to close")
	}
}
