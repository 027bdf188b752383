// Package natstransport implements transport.Transport over a pair of
// NATS subjects, grounded on zjzhang-cn-nats-grpc/pkg/rpc/server.go's
// subject-per-stream design: that teacher binds a reply subject per
// logical call and exchanges protobuf-framed Request/Response messages
// published to it. This transport generalizes that to an opaque
// frame: each side publishes to the peer's subject and subscribes to
// its own, so (like WebSocket) one NATS message carries exactly one
// envelope frame — no length-prefix framing is needed.
package natstransport

import (
	"sync"

	"corerpc/transport"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

var _ transport.Transport = (*Transport)(nil)

// Transport adapts a NATS send/receive subject pair to
// transport.Transport.
type Transport struct {
	nc          *nats.Conn
	sendSubject string
	sub         *nats.Subscription
	incoming    chan []byte
	closeMu     sync.Mutex
	closed      bool
	logger      *zap.Logger
}

// New subscribes to recvSubject and returns a Transport that publishes
// outbound frames to sendSubject on the given connection. logger may
// be nil.
//
// The caller owns nc and may share one connection across many
// Transport pairs, each on its own subject pair — mirroring the
// teacher's per-stream reply-subject scheme, just without the
// grpc.ServiceDesc machinery.
func New(nc *nats.Conn, sendSubject, recvSubject string, logger *zap.Logger) (*Transport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Transport{
		nc:          nc,
		sendSubject: sendSubject,
		incoming:    make(chan []byte, 64),
		logger:      logger.With(zap.String("transport", "nats"), zap.String("send_subject", sendSubject), zap.String("recv_subject", recvSubject)),
	}

	sub, err := nc.Subscribe(recvSubject, func(msg *nats.Msg) {
		t.closeMu.Lock()
		closed := t.closed
		t.closeMu.Unlock()
		if closed {
			return
		}
		t.incoming <- msg.Data
	})
	if err != nil {
		return nil, err
	}
	t.sub = sub
	return t, nil
}

func (t *Transport) Send(frame []byte) error {
	t.closeMu.Lock()
	closed := t.closed
	t.closeMu.Unlock()
	if closed {
		return transport.ErrClosed
	}
	return t.nc.Publish(t.sendSubject, frame)
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

	err := t.sub.Unsubscribe()
	close(t.incoming)
	return err
}
