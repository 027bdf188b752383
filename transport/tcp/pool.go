package tcp

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Pool manages a set of reusable Transports to a single address, adapted
// from the teacher's ConnPool: a buffered channel as a FIFO free-list,
// lazily grown up to maxConns. Unlike the teacher's pool, Get/Put hand
// out a *Transport (borrowed exclusively — one in-flight call at a
// time per connection) rather than a raw net.Conn.
type Pool struct {
	mu       sync.Mutex
	free     chan *Transport
	addr     string
	network  string
	maxConns int
	curConns int
	logger   *zap.Logger
}

// NewPool creates a pool dialing addr over network (e.g. "tcp"), capped
// at maxConns concurrently open connections. Connections are opened
// lazily on first Get.
func NewPool(network, addr string, maxConns int, logger *zap.Logger) *Pool {
	return &Pool{
		free:     make(chan *Transport, maxConns),
		addr:     addr,
		network:  network,
		maxConns: maxConns,
		logger:   logger,
	}
}

// Get borrows a Transport from the pool, dialing a new one if the pool
// hasn't reached maxConns, or blocking for a return if it has.
func (p *Pool) Get() (*Transport, error) {
	select {
	case t := <-p.free:
		return t, nil
	default:
		p.mu.Lock()
		if p.curConns < p.maxConns {
			p.curConns++
			p.mu.Unlock()
			t, err := Dial(p.network, p.addr, p.logger)
			if err != nil {
				p.mu.Lock()
				p.curConns--
				p.mu.Unlock()
				return nil, fmt.Errorf("tcp pool: dial %s: %w", p.addr, err)
			}
			return t, nil
		}
		p.mu.Unlock()
		return <-p.free, nil
	}
}

// Put returns a borrowed Transport to the pool. Pass healthy=false if
// the caller observed an error on it so it's discarded instead of
// reused.
func (p *Pool) Put(t *Transport, healthy bool) {
	if !healthy {
		t.Close()
		p.mu.Lock()
		p.curConns--
		p.mu.Unlock()
		return
	}
	p.free <- t
}

// Close shuts the pool down, closing every idle connection.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	close(p.free)
	for t := range p.free {
		t.Close()
		p.curConns--
	}
	return nil
}
