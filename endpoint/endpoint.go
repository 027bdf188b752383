// Package endpoint is the facade an application talks to, merging the
// teacher's split Server/Client pair into one symmetric type
// (SPEC_FULL.md §4.6): the same *Endpoint exposes call builders for
// streams it originates and serves inbound BEGINs for streams the
// peer originates, over one engine.Engine.
package endpoint

import (
	"fmt"
	"sync"
	"time"

	"corerpc/contract"
	"corerpc/engine"
	"corerpc/middleware"
	"corerpc/transport"

	"go.uber.org/zap"
)

// Endpoint owns one engine (and therefore one transport, registry, and
// set of live streams) plus the middleware chain applied to every call
// this process originates.
type Endpoint struct {
	eng      *engine.Engine
	registry *contract.Registry
	logger   *zap.Logger

	mu          sync.Mutex
	middlewares middleware.Chain
	cache       *middleware.Cache
	retry       *middleware.Retry
	closed      bool
}

// New builds an Endpoint over tr. logger may be nil.
func New(tr transport.Transport, originator engine.Originator, logger *zap.Logger) *Endpoint {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := contract.NewRegistry()
	return &Endpoint{
		eng:      engine.New(tr, registry, originator, logger),
		registry: registry,
		logger:   logger.With(zap.String("component", "endpoint")),
	}
}

// RegisterServiceContract installs a service's methods into the
// registry this endpoint serves inbound BEGINs against. Duplicate
// registration is an error (§4.6), not idempotent.
func (e *Endpoint) RegisterServiceContract(svc *contract.ServiceContract) error {
	return e.registry.RegisterService(svc)
}

// AddMiddleware appends m to the interceptor chain that this endpoint's
// call builders apply to the calls it originates. Inbound calls served
// from the registry do not pass through the chain. Takes effect on
// calls built after this returns (§4.6).
func (e *Endpoint) AddMiddleware(m middleware.Middleware) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.middlewares = append(e.middlewares, m)
}

// chain returns a snapshot of the middleware chain for one call.
func (e *Endpoint) chain() middleware.Chain {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := make(middleware.Chain, len(e.middlewares))
	copy(c, e.middlewares)
	return c
}

// SetCache installs a response cache consulted by UnaryRequest for
// methods whose Metadata marks them Cacheable (§10.3). Pass nil to
// disable it.
func (e *Endpoint) SetCache(c *middleware.Cache) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = c
}

func (e *Endpoint) getCache() *middleware.Cache {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cache
}

// SetRetry installs a retry policy UnaryRequest consults after a
// transient failure, up to the method's RetryCount or the policy's
// own ceiling (§10.3). Pass nil to disable it.
func (e *Endpoint) SetRetry(r *middleware.Retry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.retry = r
}

func (e *Endpoint) getRetry() *middleware.Retry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.retry
}

// SetAuth installs an auth enforcer the engine checks against every
// inbound BEGIN before spawning its handler (§10.3). Pass nil to
// disable it. Unlike Cache/Retry this must live on the engine, not the
// endpoint: it runs server-side in dispatch, not in a client call
// builder.
func (e *Endpoint) SetAuth(a *middleware.Auth) {
	e.eng.SetAuth(a)
}

// localContract looks up a method this endpoint has a ServiceContract
// for, used to validate the builder kind against the registered
// MethodType (§4.6 METHOD_TYPE_MISMATCH). A pure client calling a
// method it has no local contract for (the common case) skips this
// check — it has no way to know the remote type ahead of the call.
func (e *Endpoint) localContract(service, method string) (*contract.MethodContract, bool) {
	mc, err := e.registry.Lookup(service, method)
	return mc, err == nil
}

// checkMethodType validates, when a local contract is known, that it
// matches the expected call-builder kind.
func checkMethodType(mc *contract.MethodContract, found bool, service, method string, want contract.MethodType) error {
	if !found {
		return nil
	}
	if mc.Type != want {
		return fmt.Errorf("endpoint: %s.%s is declared %s, not %s: METHOD_TYPE_MISMATCH", service, method, mc.Type, want)
	}
	return nil
}

// Done reports when the underlying transport has closed, whether
// because the peer disconnected or because Close was called.
func (e *Endpoint) Done() <-chan struct{} {
	return e.eng.Closed()
}

// Close transitions the endpoint to inactive: every open LogicalStream
// is cancelled locally with STATUS(CANCELLED), then the transport is
// closed (§4.6). If drainTimeout is positive, Close first waits up to
// that long for in-flight server-side handlers to finish on their own
// (graceful drain, §10.3) before cancelling whatever remains.
func (e *Endpoint) Close(drainTimeout time.Duration) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	if drainTimeout > 0 {
		if !e.eng.Drain(drainTimeout) {
			e.logger.Warn("drain timeout elapsed with handlers still in flight")
		}
	}
	return e.eng.Close()
}
