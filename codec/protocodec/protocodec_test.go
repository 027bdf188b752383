package protocodec

import (
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestOfRoundTrip(t *testing.T) {
	c := NewOf(func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} })

	in := wrapperspb.String("hello protobuf")
	data, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	out, err := c.Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !proto.Equal(in, out) {
		t.Errorf("Decode(Encode(in)) = %v, want %v", out, in)
	}
}

func TestOfDecodeInvalidData(t *testing.T) {
	c := NewOf(func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} })
	if _, err := c.Decode([]byte{0xff, 0xff, 0xff}); err == nil {
		t.Fatalf("expected an error decoding invalid protobuf bytes")
	}
}

func TestOfName(t *testing.T) {
	c := NewOf(func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} })
	if c.Name() != "protobuf" {
		t.Errorf("Name() = %q, want %q", c.Name(), "protobuf")
	}
}
