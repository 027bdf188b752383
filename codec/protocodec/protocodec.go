// Package protocodec adapts google.golang.org/protobuf as a codec.Codec,
// grounded on zjzhang-cn-nats-grpc/pkg/rpc/server.go's use of
// proto.Marshal/proto.Unmarshal to move RPC payloads over the wire.
//
// Unlike JSON, a protobuf message is self-describing about its own
// shape, so Decode needs a constructor for a fresh T rather than
// relying on T's zero value — hence NewOf takes a factory function.
package protocodec

import "google.golang.org/protobuf/proto"

// Of is a codec.Codec implementation for any protobuf message type T.
type Of[T proto.Message] struct {
	newMessage func() T
}

// NewOf builds a protobuf codec for T. newMessage must return a fresh,
// empty T (e.g. func() *pb.AddRequest { return &pb.AddRequest{} }).
func NewOf[T proto.Message](newMessage func() T) *Of[T] {
	return &Of[T]{newMessage: newMessage}
}

func (c *Of[T]) Encode(v T) ([]byte, error) {
	return proto.Marshal(v)
}

func (c *Of[T]) Decode(data []byte) (T, error) {
	v := c.newMessage()
	if err := proto.Unmarshal(data, v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

func (c *Of[T]) Name() string {
	return "protobuf"
}
