// Package tcp is a concrete Transport implementation over a plain TCP
// net.Conn, grounded on the teacher's protocol.go (length-prefixed
// framing) and transport/client_transport.go (single-writer mutex,
// dedicated read goroutine feeding a channel).
//
// Unlike the teacher's protocol.Header (which also carries a codec
// type and message type, since it framed one fixed RPCMessage shape),
// this transport's frames are opaque: the envelope package already
// self-describes kind and stream id once decoded, so the wire framing
// here only needs a length prefix to preserve frame boundaries over a
// byte stream.
package tcp

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"corerpc/transport"
	"go.uber.org/zap"
)

// MaxFrameSize bounds a single frame's length prefix to guard against a
// corrupt value requesting an enormous allocation.
const MaxFrameSize = 64 << 20

var _ transport.Transport = (*Transport)(nil)

// Transport adapts a net.Conn to transport.Transport.
type Transport struct {
	conn     net.Conn
	writeMu  sync.Mutex
	incoming chan []byte
	closeMu  sync.Mutex
	closed   bool
	logger   *zap.Logger
}

// New wraps conn, starting a background goroutine that reads
// length-prefixed frames and feeds Incoming(). logger may be nil (a
// no-op logger is substituted).
func New(conn net.Conn, logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Transport{
		conn:     conn,
		incoming: make(chan []byte, 64),
		logger:   logger.With(zap.String("transport", "tcp"), zap.String("remote", conn.RemoteAddr().String())),
	}
	go t.readLoop()
	return t
}

// Dial opens a TCP connection to addr and wraps it.
func Dial(network, addr string, logger *zap.Logger) (*Transport, error) {
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, err
	}
	return New(conn, logger), nil
}

func (t *Transport) Send(frame []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if len(frame) > MaxFrameSize {
		return fmt.Errorf("tcp transport: frame of %d bytes exceeds max %d", len(frame), MaxFrameSize)
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(frame)))
	if _, err := t.conn.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("tcp transport: write length prefix: %w", err)
	}
	if _, err := t.conn.Write(frame); err != nil {
		return fmt.Errorf("tcp transport: write frame body: %w", err)
	}
	return nil
}

func (t *Transport) Incoming() <-chan []byte {
	return t.incoming
}

func (t *Transport) Close() error {
	t.closeMu.Lock()
	if t.closed {
		t.closeMu.Unlock()
		return nil
	}
	t.closed = true
	t.closeMu.Unlock()
	return t.conn.Close()
}

// readLoop is the sole reader of the connection: TCP is a byte stream,
// so reads must be sequential to parse frame boundaries correctly,
// exactly as the teacher's recvLoop/handleConn note.
func (t *Transport) readLoop() {
	defer close(t.incoming)
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(t.conn, lenBuf[:]); err != nil {
			if !t.closed {
				t.logger.Debug("read loop ending", zap.Error(err))
			}
			return
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		if n > MaxFrameSize {
			t.logger.Warn("oversized frame length, closing connection", zap.Uint32("length", n))
			return
		}
		frame := make([]byte, n)
		if _, err := io.ReadFull(t.conn, frame); err != nil {
			t.logger.Debug("read loop ending mid-frame", zap.Error(err))
			return
		}
		t.incoming <- frame
	}
}
