package wstransport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func serverPair(t *testing.T) (client *Transport, server *Transport, cleanup func()) {
	t.Helper()
	serverCh := make(chan *Transport, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		tr, err := Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade failed: %v", err)
			return
		}
		serverCh <- tr
	})
	ts := httptest.NewServer(mux)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	clientTr, err := Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	select {
	case server = <-serverCh:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for server-side upgrade")
	}

	return clientTr, server, ts.Close
}

func TestWSTransportRoundTrip(t *testing.T) {
	client, server, cleanup := serverPair(t)
	defer cleanup()
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

func TestWSTransportCloseEndsIncoming(t *testing.T) {
	client, server, cleanup := serverPair(t)
	defer cleanup()
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
