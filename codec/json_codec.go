package codec

import "encoding/json"

// JSON is a generic JSON codec for any message type T.
// Pros: human-readable, cross-language, easy to debug.
// Cons: slower than a binary format, larger payload (field names repeated).
type JSON[T any] struct{}

// NewJSON constructs a JSON codec for T. T is usually a pointer-to-struct
// so Decode can populate a fresh zero value via json.Unmarshal.
func NewJSON[T any]() *JSON[T] {
	return &JSON[T]{}
}

func (c *JSON[T]) Encode(v T) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSON[T]) Decode(data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}

func (c *JSON[T]) Name() string {
	return "json"
}
