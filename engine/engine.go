// Package engine is the per-connection multiplexer: it owns a single
// transport.Transport, allocates stream ids, decodes/encodes envelopes,
// and drives each active stream.LogicalStream's state machine from the
// inbound frame sequence (SPEC_FULL.md §4.5).
//
// This supersedes the teacher's split client.Client/server.Server
// pair: because either peer may originate a stream (§4.6), one Engine
// serves both roles over one Transport.
package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"corerpc/contract"
	"corerpc/envelope"
	"corerpc/middleware"
	"corerpc/rpcstatus"
	"corerpc/stream"
	"corerpc/transport"

	"go.uber.org/zap"
)

// Originator fixes stream-id parity for ids this process allocates,
// resolving SPEC_FULL.md §9's open question: even ids are
// client-originated, odd ids are server-originated, decided once per
// Engine rather than negotiated per call.
type Originator uint8

const (
	OriginatorClient Originator = iota
	OriginatorServer
)

// activeStream is the subset of the four LogicalStream wrappers the
// engine needs to drive dispatch generically.
type activeStream interface {
	OnHalfClose() error
	OnCancel()
	Done() <-chan struct{}
}

// Engine multiplexes logical streams over one Transport.
type Engine struct {
	tr         transport.Transport
	registry   *contract.Registry // nil: this process never serves inbound BEGINs
	originator Originator
	logger     *zap.Logger

	nextID uint64 // atomic; incremented by 2, offset by originator parity

	mu      sync.Mutex
	streams map[uint64]activeStream
	// onMessage/onStatus receive raw frames routed to an existing
	// stream; stored per id alongside activeStream so the engine need
	// not type-switch on every message.
	messageSinks map[uint64]func([]byte)
	statusSinks  map[uint64]func(*rpcstatus.Error)

	inFlight sync.WaitGroup // server-side handler goroutines, for graceful drain

	authMu sync.Mutex
	auth   *middleware.Auth

	closeOnce sync.Once
	closed    chan struct{}
}

// New builds an Engine over tr. registry may be nil for a process that
// only ever originates calls. logger may be nil.
func New(tr transport.Transport, registry *contract.Registry, originator Originator, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	start := uint64(2)
	if originator == OriginatorServer {
		start = 1
	}
	e := &Engine{
		tr:           tr,
		registry:     registry,
		originator:   originator,
		logger:       logger.With(zap.String("component", "engine")),
		nextID:       start,
		streams:      make(map[uint64]activeStream),
		messageSinks: make(map[uint64]func([]byte)),
		statusSinks:  make(map[uint64]func(*rpcstatus.Error)),
		closed:       make(chan struct{}),
	}
	go e.readLoop()
	return e
}

// allocateID returns the next stream id for a call this process
// originates, maintaining even/odd parity by originator.
func (e *Engine) allocateID() uint64 {
	return atomic.AddUint64(&e.nextID, 2) - 2
}

func (e *Engine) registerActive(id uint64, s activeStream, onMessage func([]byte), onStatus func(*rpcstatus.Error)) {
	e.mu.Lock()
	e.streams[id] = s
	e.messageSinks[id] = onMessage
	e.statusSinks[id] = onStatus
	e.mu.Unlock()

	go func() {
		<-s.Done()
		e.mu.Lock()
		delete(e.streams, id)
		delete(e.messageSinks, id)
		delete(e.statusSinks, id)
		e.mu.Unlock()
	}()
}

// envelopeSender adapts one stream id's envelope traffic to
// stream.Sender.
type envelopeSender struct {
	e        *Engine
	id       uint64
	method   *envelope.MethodKey // set only on the BEGIN-sending side
	metadata []envelope.KV       // attached to the BEGIN this side sends, if any
	sentHead bool
	mu       sync.Mutex
}

// metadataToKV flattens a call's Extra settings onto the outbound
// BEGIN's metadata KV pairs, the channel Auth and other call-scoped
// middleware read settings like a bearer token through (§10.3).
func metadataToKV(md contract.Metadata) []envelope.KV {
	if len(md.Extra) == 0 {
		return nil
	}
	kvs := make([]envelope.KV, 0, len(md.Extra))
	for k, v := range md.Extra {
		kvs = append(kvs, envelope.KV{Key: k, Value: v})
	}
	return kvs
}

func (s *envelopeSender) sendRaw(env *envelope.Envelope) error {
	frame, err := envelope.EncodeBytes(env)
	if err != nil {
		return fmt.Errorf("engine: encode envelope: %w", err)
	}
	return s.e.tr.Send(frame)
}

func (s *envelopeSender) SendMessage(payload []byte) error {
	s.mu.Lock()
	env := s.beginIfNeeded()
	s.mu.Unlock()
	if env != nil {
		if err := s.sendRaw(env); err != nil {
			return err
		}
	}
	return s.sendRaw(&envelope.Envelope{StreamID: s.id, Kind: envelope.Message, Payload: payload})
}

func (s *envelopeSender) SendHalfClose() error {
	return s.sendRaw(&envelope.Envelope{StreamID: s.id, Kind: envelope.HalfClose})
}

func (s *envelopeSender) SendStatus(st *rpcstatus.Error) error {
	return s.sendRaw(&envelope.Envelope{StreamID: s.id, Kind: envelope.Status, StatusMsg: &envelope.StatusPayload{
		Code:    st.Code,
		Message: st.Message,
		Details: st.Details,
	}})
}

func (s *envelopeSender) SendCancel() error {
	return s.sendRaw(&envelope.Envelope{StreamID: s.id, Kind: envelope.Cancel})
}

// beginIfNeeded returns a BEGIN envelope to send before the first
// MESSAGE, only on the call-originating side (method != nil); must be
// called with s.mu held.
func (s *envelopeSender) beginIfNeeded() *envelope.Envelope {
	if s.sentHead || s.method == nil {
		return nil
	}
	s.sentHead = true
	return &envelope.Envelope{StreamID: s.id, Kind: envelope.Begin, Method: s.method, Metadata: s.metadata}
}

// SendBegin is called by call builders before the first message to
// force BEGIN out even for a pattern (client/bidi streaming) whose
// first application action might not be SendMessage.
func (s *envelopeSender) SendBegin() error {
	s.mu.Lock()
	env := s.beginIfNeeded()
	s.mu.Unlock()
	if env == nil {
		return nil
	}
	return s.sendRaw(env)
}

// newOutboundSender builds a Sender for a call this process originates.
func (e *Engine) newOutboundSender(id uint64, service, method string, metadata []envelope.KV) *envelopeSender {
	return &envelopeSender{e: e, id: id, method: &envelope.MethodKey{Service: service, Method: method}, metadata: metadata}
}

// newInboundSender builds a Sender for a call the peer originated
// (the BEGIN has already arrived, so no BEGIN needs sending back).
func (e *Engine) newInboundSender(id uint64) *envelopeSender {
	return &envelopeSender{e: e, id: id, sentHead: true}
}

// Registry exposes the method registry this engine serves inbound
// BEGINs against (nil for a pure-client engine).
func (e *Engine) Registry() *contract.Registry { return e.registry }

// Transport exposes the underlying transport, mainly for diagnostics.
func (e *Engine) Transport() transport.Transport { return e.tr }

// NewStream allocates a fresh outbound stream id and Sender for a call
// this process originates against (service, method). md's Extra
// settings ride along on the BEGIN this sender eventually emits.
func (e *Engine) NewStream(service, method string, md contract.Metadata) (id uint64, sender stream.Sender) {
	id = e.allocateID()
	return id, e.newOutboundSender(id, service, method, metadataToKV(md))
}

// SetAuth installs the enforcer handleBegin checks every inbound BEGIN
// against before spawning its handler (§10.3). Pass nil to disable it.
func (e *Engine) SetAuth(a *middleware.Auth) {
	e.authMu.Lock()
	defer e.authMu.Unlock()
	e.auth = a
}

func (e *Engine) getAuth() *middleware.Auth {
	e.authMu.Lock()
	defer e.authMu.Unlock()
	return e.auth
}

// Register tracks a LogicalStream-like value so the dispatch loop can
// route subsequent frames to it, and wires automatic cleanup once it
// resolves.
func (e *Engine) Register(id uint64, s activeStream, onMessage func([]byte), onStatus func(*rpcstatus.Error)) {
	e.registerActive(id, s, onMessage, onStatus)
}

// Closed reports whether the engine's transport loop has ended.
func (e *Engine) Closed() <-chan struct{} { return e.closed }

// Drain waits up to timeout for every in-flight server-side handler
// to finish, for a graceful shutdown that lets active calls complete
// instead of aborting them outright (§10.3). Returns false if the
// timeout elapsed first.
func (e *Engine) Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		e.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Close tears the engine down: every open stream is cancelled locally
// (STATUS(CANCELLED), no STATUS sent to a peer that may already be
// gone), then the transport is closed. The UNAVAILABLE resolution
// belongs to abortAllUnavailable, for the distinct case of the
// transport failing out from under still-open streams.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.mu.Lock()
		streams := make([]activeStream, 0, len(e.streams))
		for _, s := range e.streams {
			streams = append(streams, s)
		}
		e.mu.Unlock()

		for _, s := range streams {
			s.OnCancel()
		}
		err = e.tr.Close()
		close(e.closed)
	})
	return err
}
