// Package wstransport implements transport.Transport over a WebSocket
// connection (github.com/gorilla/websocket), grounded on the same
// single-writer-mutex/dedicated-reader-goroutine shape as
// transport/tcp, adapted because WebSocket already preserves message
// boundaries — no length prefix is needed, each envelope maps to
// exactly one binary WS message.
package wstransport

import (
	"net/http"
	"sync"

	"corerpc/transport"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var _ transport.Transport = (*Transport)(nil)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Transport adapts a *websocket.Conn to transport.Transport.
type Transport struct {
	conn     *websocket.Conn
	writeMu  sync.Mutex
	incoming chan []byte
	closeMu  sync.Mutex
	closed   bool
	logger   *zap.Logger
}

// New wraps an already-established websocket.Conn, starting the read
// loop that feeds Incoming(). logger may be nil.
func New(conn *websocket.Conn, logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Transport{
		conn:     conn,
		incoming: make(chan []byte, 64),
		logger:   logger.With(zap.String("transport", "websocket"), zap.String("remote", conn.RemoteAddr().String())),
	}
	go t.readLoop()
	return t
}

// Dial connects to a ws:// or wss:// URL and wraps the resulting
// connection.
func Dial(url string, logger *zap.Logger) (*Transport, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return New(conn, logger), nil
}

// Upgrade upgrades an inbound HTTP request to a WebSocket connection
// and wraps it, for use in an http.HandlerFunc serving the engine's
// listen address.
func Upgrade(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (*Transport, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return New(conn, logger), nil
}

func (t *Transport) Send(frame []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteMessage(websocket.BinaryMessage, frame)
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

func (t *Transport) readLoop() {
	defer close(t.incoming)
	for {
		kind, data, err := t.conn.ReadMessage()
		if err != nil {
			if !t.closed {
				t.logger.Debug("read loop ending", zap.Error(err))
			}
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		t.incoming <- data
	}
}
