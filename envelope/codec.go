package envelope

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"corerpc/rpcstatus"
)

// Frame format (SPEC_FULL.md §4.2, normative layout):
//
//	4 bytes  total length of everything after this field
//	1 byte   kind
//	8 bytes  stream id (big-endian)
//	...      kind-specific fields, each self-length-prefixed
//
// Strings and byte blobs are each prefixed with their own length so a
// decoder that doesn't understand a trailing field can still find the
// frame boundary and skip it, matching the teacher's protocol.go
// approach of a fixed header plus length-prefixed body, generalized to
// per-field prefixes since the body shape now varies by kind.
var (
	ErrTruncated     = errors.New("envelope: truncated frame")
	ErrUnknownKind   = errors.New("envelope: unknown kind byte")
	ErrFrameTooLarge = errors.New("envelope: frame exceeds maximum size")
)

// MaxFrameSize bounds a single decoded frame to guard against a corrupt
// or hostile length prefix requesting an enormous allocation.
const MaxFrameSize = 64 << 20 // 64 MiB

// Encode serializes env as a self-delimiting frame (length prefix
// included) and writes it to w in one call.
func Encode(w io.Writer, env *Envelope) error {
	body, err := encodeBody(env)
	if err != nil {
		return err
	}
	if len(body) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(body)))
	if _, err := w.Write(lenBuf); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// Decode reads exactly one frame from r and returns the Envelope it
// encodes. It returns io.EOF (or io.ErrUnexpectedEOF for a partial
// frame) when the stream ends cleanly between frames.
func Decode(r io.Reader) (*Envelope, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf)
	if n > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return decodeBody(body)
}

// EncodeBytes is the non-stream convenience form used by transports
// that hand back one already-delimited []byte per receive (e.g. a
// WebSocket message or a NATS message), which don't need the outer
// 4-byte length prefix since the transport already preserves frame
// boundaries.
func EncodeBytes(env *Envelope) ([]byte, error) {
	return encodeBody(env)
}

// DecodeBytes is the counterpart to EncodeBytes.
func DecodeBytes(b []byte) (*Envelope, error) {
	return decodeBody(b)
}

func encodeBody(env *Envelope) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(env.Kind))
	writeUint64(&buf, env.StreamID)

	switch env.Kind {
	case Begin:
		if env.Method == nil {
			return nil, fmt.Errorf("envelope: BEGIN requires a method key")
		}
		writeString16(&buf, env.Method.Service)
		writeString16(&buf, env.Method.Method)
		writeMetadata(&buf, env.Metadata)
	case Message:
		writeBytes32(&buf, env.Payload)
	case HalfClose, Cancel:
		// no body
	case Status:
		if env.StatusMsg == nil {
			return nil, fmt.Errorf("envelope: STATUS requires a status payload")
		}
		writeUint16(&buf, uint16(env.StatusMsg.Code))
		writeString32(&buf, env.StatusMsg.Message)
		writeBytes32(&buf, env.StatusMsg.Details)
		writeMetadata(&buf, env.Metadata)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, env.Kind)
	}
	return buf.Bytes(), nil
}

func decodeBody(body []byte) (*Envelope, error) {
	r := bytes.NewReader(body)
	kindByte, err := r.ReadByte()
	if err != nil {
		return nil, ErrTruncated
	}
	kind := Kind(kindByte)

	streamID, err := readUint64(r)
	if err != nil {
		return nil, ErrTruncated
	}

	env := &Envelope{StreamID: streamID, Kind: kind}

	switch kind {
	case Begin:
		service, err := readString16(r)
		if err != nil {
			return nil, ErrTruncated
		}
		method, err := readString16(r)
		if err != nil {
			return nil, ErrTruncated
		}
		env.Method = &MethodKey{Service: service, Method: method}
		md, err := readMetadata(r)
		if err != nil {
			return nil, ErrTruncated
		}
		env.Metadata = md
	case Message:
		payload, err := readBytes32(r)
		if err != nil {
			return nil, ErrTruncated
		}
		env.Payload = payload
	case HalfClose, Cancel:
		// no body
	case Status:
		code, err := readUint16(r)
		if err != nil {
			return nil, ErrTruncated
		}
		msg, err := readString32(r)
		if err != nil {
			return nil, ErrTruncated
		}
		details, err := readBytes32(r)
		if err != nil {
			return nil, ErrTruncated
		}
		md, err := readMetadata(r)
		if err != nil {
			return nil, ErrTruncated
		}
		env.StatusMsg = &StatusPayload{Code: rpcstatus.Code(code), Message: msg, Details: details}
		env.Metadata = md
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}
	return env, nil
}

// --- primitive field helpers: each value is self-length-prefixed so an
// unknown trailing field can be skipped by a forward-compatible reader
// that knows the overall frame length (see Decode's outer length prefix).

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeString16(buf *bytes.Buffer, s string) {
	writeUint16(buf, uint16(len(s)))
	buf.WriteString(s)
}

func writeString32(buf *bytes.Buffer, s string) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(len(s)))
	buf.Write(b[:])
	buf.WriteString(s)
}

func writeBytes32(buf *bytes.Buffer, p []byte) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(len(p)))
	buf.Write(b[:])
	buf.Write(p)
}

func writeMetadata(buf *bytes.Buffer, md []KV) {
	writeUint16(buf, uint16(len(md)))
	for _, kv := range md {
		writeString16(buf, kv.Key)
		writeString32(buf, kv.Value)
	}
}

func readUint16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func readString16(r *bytes.Reader) (string, error) {
	n, err := readUint16(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readString32(r *bytes.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func readBytes32(r *bytes.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func readMetadata(r *bytes.Reader) ([]KV, error) {
	n, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	md := make([]KV, 0, n)
	for i := uint16(0); i < n; i++ {
		key, err := readString16(r)
		if err != nil {
			return nil, err
		}
		val, err := readString32(r)
		if err != nil {
			return nil, err
		}
		md = append(md, KV{Key: key, Value: val})
	}
	return md, nil
}
