package contract

import (
	"sync"

	"corerpc/rpcstatus"
)

// Registry holds every registered ServiceContract, keyed by service
// name, and resolves (service, method) lookups for inbound BEGIN
// envelopes (§4.3).
//
// Registration happens before the endpoint begins serving; after that,
// lookups are read-only. The RWMutex is cheap insurance for callers who
// register services after Serve has already started (dynamic
// registration, §4.3's "If dynamic registration is supported").
type Registry struct {
	mu       sync.RWMutex
	services map[string]*ServiceContract
}

// NewRegistry constructs an empty method registry.
func NewRegistry() *Registry {
	return &Registry{services: make(map[string]*ServiceContract)}
}

// RegisterService adds a fully-built ServiceContract. Fails with a
// DUPLICATE_SERVICE-flavored error if the service name is already
// registered.
func (r *Registry) RegisterService(svc *ServiceContract) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.services[svc.name]; exists {
		return rpcstatus.New(rpcstatus.InvalidArgument, "duplicate service %q", svc.name)
	}
	r.services[svc.name] = svc
	return nil
}

// Lookup resolves (service, method) to a MethodContract, or returns a
// status error carrying rpcstatus.Unimplemented per §4.4's "If BEGIN
// references an unregistered method" rule.
func (r *Registry) Lookup(service, method string) (*MethodContract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	svc, ok := r.services[service]
	if !ok {
		return nil, rpcstatus.New(rpcstatus.Unimplemented, "unknown service %q", service)
	}
	m, ok := svc.Lookup(method)
	if !ok {
		return nil, rpcstatus.New(rpcstatus.Unimplemented, "unknown method %q on service %q", method, service)
	}
	return m, nil
}

// Services returns every registered ServiceContract, in no particular
// order. Used by diagnostics and the example CLI to print what's
// available.
func (r *Registry) Services() []*ServiceContract {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ServiceContract, 0, len(r.services))
	for _, svc := range r.services {
		out = append(out, svc)
	}
	return out
}
