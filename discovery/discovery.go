// Package discovery is optional wiring outside the RPC core: a service
// registry (who is listening where) and load balancers (which one to
// call), consumed only by cmd/corerpcd. Nothing in engine, endpoint,
// or contract depends on this package (§1 Non-goals — discovery is
// explicitly not part of the core runtime).
package discovery

// Instance is a single running instance of a registered service.
type Instance struct {
	Addr    string // dial address, e.g. "127.0.0.1:8080"
	Weight  int    // relative traffic share for WeightedRandom
	Version string // for canary/staged rollouts
}

// Registry registers, deregisters, and discovers service instances.
type Registry interface {
	// Register adds an instance under a TTL-based lease; the entry is
	// removed automatically if the lease isn't renewed (caller crash).
	Register(serviceName string, instance Instance, ttlSeconds int64) error

	// Deregister removes an instance immediately.
	Deregister(serviceName, addr string) error

	// Discover returns the currently known instances for a service.
	Discover(serviceName string) ([]Instance, error)

	// Watch emits an updated instance list each time the service's
	// membership changes.
	Watch(serviceName string) <-chan []Instance
}
