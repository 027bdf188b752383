package codec

import (
	"corerpc/contract"
	"corerpc/rpcstatus"
)

// Typed builds a contract.Handler from a function operating on decoded
// request/response values instead of raw wire bytes, making
// serialization the registration site's responsibility (§3, §4.5,
// §6.3) rather than something each handler hand-rolls with its own
// encoding/json calls. The returned Handler still satisfies the
// uniform []byte-channel shape every call pattern drives; Typed is
// what crosses between that and a handler's own Req/Resp types.
//
// A request that fails to decode ends the call with INVALID_ARGUMENT
// without the handler ever running; a response that fails to encode
// ends it with INTERNAL after the handler has already produced it.
func Typed[Req, Resp any](reqCodec Codec[Req], respCodec Codec[Resp], fn func(ctx contract.HandlerContext, in <-chan Req, out chan<- Resp) error) contract.Handler {
	return func(ctx contract.HandlerContext, in <-chan []byte, out chan<- []byte) error {
		typedIn := make(chan Req)
		decodeErr := make(chan error, 1)
		go func() {
			defer close(typedIn)
			for raw := range in {
				v, err := reqCodec.Decode(raw)
				if err != nil {
					decodeErr <- rpcstatus.Wrap(rpcstatus.InvalidArgument, err, "decode request")
					return
				}
				select {
				case typedIn <- v:
				case <-ctx.Done():
					return
				}
			}
		}()

		typedOut := make(chan Resp)
		encodeErr := make(chan error, 1)
		go func() {
			defer close(out)
			for v := range typedOut {
				raw, err := respCodec.Encode(v)
				if err != nil {
					encodeErr <- rpcstatus.Wrap(rpcstatus.Internal, err, "encode response")
					return
				}
				select {
				case out <- raw:
				case <-ctx.Done():
					return
				}
			}
		}()

		err := fn(ctx, typedIn, typedOut)
		close(typedOut)
		if err != nil {
			return err
		}
		select {
		case err := <-decodeErr:
			return err
		case err := <-encodeErr:
			return err
		default:
			return nil
		}
	}
}
