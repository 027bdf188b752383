// Package middleware implements the onion-model interceptor chain
// described in SPEC_FULL.md §3 ("Middleware") and §4.5: each
// middleware wraps the application-visible request/response exchange
// with cross-cutting concerns (logging, rate limiting, retry, caching,
// auth) without the handler itself knowing they're there. Call
// timeouts are handled in package endpoint, not here.
//
// This is a generalization of the teacher's middleware.go: the
// teacher's HandlerFunc operated on a fixed *message.RPCMessage; here
// ProcessRequest/ProcessResponse operate on the opaque payload bytes
// the call builder already has in hand (Codec encode/decode is the
// call builder's concern — middleware sees what the wire sees).
//
// Onion model execution order, unchanged from the teacher:
//
//	Chain(A, B, C)
//	Request:  A.ProcessRequest -> B.ProcessRequest -> C.ProcessRequest
//	Response: C.ProcessResponse -> B.ProcessResponse -> A.ProcessResponse
package middleware

import "corerpc/contract"

// Call identifies the RPC a middleware is intercepting, plus its
// declarative metadata (so e.g. a cache middleware can read
// Cacheable/CacheTimeoutMS without the endpoint threading it through
// separately).
type Call struct {
	Service  string
	Method   string
	Metadata contract.Metadata
}

// Middleware is a stateless interceptor. Either hook may short-circuit
// by returning an error; ProcessRequest returning an error means the
// call never reaches the peer, and it resolves with that error
// instead. The chain runs only on calls an endpoint originates.
type Middleware interface {
	ProcessRequest(call Call, payload []byte) ([]byte, error)
	ProcessResponse(call Call, payload []byte) ([]byte, error)
}

// Chain composes middlewares into the order they run in: registration
// order is outer-wrapping order (§3), so Chain[0] sees the request
// first and the response last.
type Chain []Middleware

// Request runs every middleware's ProcessRequest in registration
// order, short-circuiting on the first error.
func (c Chain) Request(call Call, payload []byte) ([]byte, error) {
	var err error
	for _, m := range c {
		payload, err = m.ProcessRequest(call, payload)
		if err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// Response runs every middleware's ProcessResponse in reverse
// registration order (the innermost-wrapping middleware sees the
// response first), short-circuiting on the first error.
func (c Chain) Response(call Call, payload []byte) ([]byte, error) {
	var err error
	for i := len(c) - 1; i >= 0; i-- {
		payload, err = c[i].ProcessResponse(call, payload)
		if err != nil {
			return nil, err
		}
	}
	return payload, nil
}
