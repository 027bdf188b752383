// Package codec provides the pluggable serialization layer for RPC
// message payloads (SPEC_FULL.md §3, §4.2).
//
// Unlike the teacher's any-typed Codec tied to one concrete
// message.RPCMessage, this Codec is generic over the application
// message type T: the envelope's payload is opaque bytes (§4.1), and a
// codec is selected per MethodContract rather than per wire frame.
package codec

// Codec serializes and deserializes values of type T. Implementations
// include JSON and Bytes (this package), protocodec.Of (protobuf), and any
// user-supplied format — the core never assumes a particular shape for
// the bytes it carries.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
	Name() string
}
