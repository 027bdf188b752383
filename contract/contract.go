// Package contract defines MethodContract and ServiceContract, the
// immutable-after-setup descriptions of callable RPC operations
// (SPEC_FULL.md §3, §4.3).
//
// The teacher (server/service.go) builds its method table by reflecting
// over an arbitrary receiver's exported methods at registration time.
// Design Notes §9 ("Contract setup via inheritance") calls that pattern
// out for replacement: instead of a base-type + reflection scan, a
// ServiceContract is built explicitly by a registrar callback, so a
// method's request/response types are visible at the call site instead
// of being recovered through reflect.Type.
package contract

import "corerpc/rpcstatus"

// MethodType is one of the four call patterns (§4.4).
type MethodType uint8

const (
	Unary MethodType = iota
	ServerStreaming
	ClientStreaming
	BidiStreaming
)

func (t MethodType) String() string {
	switch t {
	case Unary:
		return "unary"
	case ServerStreaming:
		return "server-streaming"
	case ClientStreaming:
		return "client-streaming"
	case BidiStreaming:
		return "bidi-streaming"
	default:
		return "unknown"
	}
}

// Metadata is the declarative, per-method configuration table described
// in SPEC_FULL.md §6.4. Unknown keys are preserved in Extra so
// middleware can read framework-specific settings the core doesn't
// interpret.
type Metadata struct {
	TimeoutMS      int64
	RequiresAuth   bool
	Permissions    []string
	Cacheable      bool
	CacheTimeoutMS int64
	RetryCount     int
	Deprecated     bool
	Since          string
	Extra          map[string]string
}

// Handler is the uniform shape every method handler has, regardless of
// call pattern: a function from an inbound message sequence to an
// outbound message sequence (Design Notes §9, "Bidirectional stream
// wrapper over a generator"). Cardinality constraints (exactly one
// request, exactly one response, etc.) are enforced by the stream state
// machine that drives the handler, not by the handler's own type.
//
// ctx is cancelled when the stream is cancelled or its deadline elapses;
// a well-behaved handler checks ctx.Err() at each suspension point.
// in yields decoded requests and is closed when the peer half-closes.
// out is the channel the handler must send responses to, and must
// close when it is done producing (or send exactly one error-free value
// for Unary/ClientStreaming before returning).
type Handler func(ctx HandlerContext, in <-chan []byte, out chan<- []byte) error

// HandlerContext is the subset of context.Context a handler needs,
// named distinctly so contract does not import the stream package
// (which in turn depends on contract) — avoiding an import cycle while
// keeping the handler signature expressive.
type HandlerContext interface {
	Done() <-chan struct{}
	Err() error
}

// CodecInfo is the non-generic sliver of a codec.Codec[T] a
// MethodContract can hold without the registry itself becoming
// generic over every method's request/response types (§3): just
// enough for introspection and logging. The codec.Typed constructor
// that builds a method's Handler accepts the full generic
// codec.Codec[T] but returns only the Handler; it does not set these
// fields, so they stay nil unless the registration site assigns them.
type CodecInfo interface {
	Name() string
}

// MethodContract immutably describes one callable operation.
type MethodContract struct {
	Service       string
	Method        string
	Type          MethodType
	Handler       Handler
	Metadata      Metadata
	RequestCodec  CodecInfo // nil unless set at registration
	ResponseCodec CodecInfo
}

// Key returns the (service, method) identity tuple as it appears on
// BEGIN envelopes.
func (m *MethodContract) Key() string {
	return m.Service + "." + m.Method
}

// ServiceContract aggregates method contracts under a service name. It
// is mutable while build runs, then frozen.
type ServiceContract struct {
	name    string
	methods map[string]*MethodContract
	frozen  bool
}

// Registrar is the callback-visible handle a ServiceContract's build
// function uses to add methods. It is intentionally narrower than
// *ServiceContract (no freeze/lookup) so user code can't accidentally
// reach past setup-time operations.
type Registrar struct {
	svc *ServiceContract
}

// AddMethod registers one method on the service under construction.
// Returns an error (rather than panicking) on a duplicate method name,
// matching the registry-level DUPLICATE_METHOD error in §4.3.
func (r *Registrar) AddMethod(m MethodContract) error {
	if _, exists := r.svc.methods[m.Method]; exists {
		return rpcstatus.New(rpcstatus.InvalidArgument, "duplicate method %q in service %q", m.Method, r.svc.name)
	}
	m.Service = r.svc.name
	r.svc.methods[m.Method] = &m
	return nil
}

// Define builds a ServiceContract: build is invoked exactly once, with
// a Registrar the caller uses to add methods (replacing the teacher's
// reflection-scanned base-class setup()).
func Define(serviceName string, build func(r *Registrar) error) (*ServiceContract, error) {
	svc := &ServiceContract{name: serviceName, methods: make(map[string]*MethodContract)}
	if err := build(&Registrar{svc: svc}); err != nil {
		return nil, err
	}
	svc.frozen = true
	return svc, nil
}

// Name returns the service name.
func (s *ServiceContract) Name() string {
	return s.name
}

// Lookup finds a method by name within this service.
func (s *ServiceContract) Lookup(method string) (*MethodContract, bool) {
	m, ok := s.methods[method]
	return m, ok
}

// Methods returns all method contracts, in no particular order.
func (s *ServiceContract) Methods() []*MethodContract {
	out := make([]*MethodContract, 0, len(s.methods))
	for _, m := range s.methods {
		out = append(out, m)
	}
	return out
}
