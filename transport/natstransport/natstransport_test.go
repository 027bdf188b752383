package natstransport

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

// requireNATS connects to a locally running NATS server, skipping the
// test if one isn't reachable — these are integration tests, not unit
// tests, mirroring the teacher's own reliance on a live broker.
func requireNATS(t *testing.T) *nats.Conn {
	t.Helper()
	nc, err := nats.Connect(nats.DefaultURL, nats.Timeout(2*time.Second))
	if err != nil {
		t.Skipf("no local NATS server reachable: %v", err)
	}
	t.Cleanup(nc.Close)
	return nc
}

func TestNATSTransportRoundTrip(t *testing.T) {
	nc := requireNATS(t)

	a, err := New(nc, "corerpc.test.a-to-b", "corerpc.test.b-to-a", nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.Close()

	b, err := New(nc, "corerpc.test.b-to-a", "corerpc.test.a-to-b", nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer b.Close()

	if err := a.Send([]byte("hello")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case got := <-b.Incoming():
		if string(got) != "hello" {
			t.Errorf("got %q, want %q", got, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for frame")
	}
}

func TestNATSTransportCloseStopsDelivery(t *testing.T) {
	nc := requireNATS(t)

	a, err := New(nc, "corerpc.test2.a-to-b", "corerpc.test2.b-to-a", nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	b, err := New(nc, "corerpc.test2.b-to-a", "corerpc.test2.a-to-b", nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer b.Close()

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := a.Send([]byte("too late")); err != nil {
		t.Fatalf("Send after peer close should still succeed at the transport level: %v", err)
	}
	select {
	case frame, ok := <-b.Incoming():
		if ok {
			t.Fatalf("closed transport delivered frame %q", frame)
		}
	case <-time.After(500 * time.Millisecond):
	}
}
