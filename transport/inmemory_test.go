package transport

import (
	"testing"
	"time"
)

func TestInMemoryPairDeliversInOrder(t *testing.T) {
	a, b := NewInMemoryPair(4)
	defer a.Close()
	defer b.Close()

	if err := a.Send([]byte("one")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if err := a.Send([]byte("two")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	for _, want := range []string{"one", "two"} {
		select {
		case got := <-b.Incoming():
			if string(got) != want {
				t.Errorf("got %q, want %q", got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestInMemoryCloseClosesPeerIncoming(t *testing.T) {
	a, b := NewInMemoryPair(1)
	defer b.Close()

	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case _, ok := <-b.Incoming():
		if ok {
			t.Fatalf("expected peer Incoming channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for peer Incoming to close")
	}
}

func TestInMemorySendAfterCloseFails(t *testing.T) {
	a, b := NewInMemoryPair(1)
	defer b.Close()

	a.Close()
	if err := a.Send([]byte("too late")); err != ErrClosed {
		t.Fatalf("Send after Close = %v, want ErrClosed", err)
	}
}

func TestInMemoryCloseIsIdempotent(t *testing.T) {
	a, b := NewInMemoryPair(1)
	defer b.Close()

	if err := a.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}
}
