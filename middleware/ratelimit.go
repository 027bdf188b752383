package middleware

import "golang.org/x/time/rate"

// RateLimit bounds request throughput with a token-bucket limiter
// (golang.org/x/time/rate), carried over unchanged in spirit from the
// teacher's RateLimitMiddleware: the limiter is built once, shared
// across every request, so the bucket's state persists between calls
// instead of resetting per request.
type RateLimit struct {
	limiter *rate.Limiter
}

// NewRateLimit creates a middleware admitting r requests/second with
// bursts up to burst.
func NewRateLimit(r float64, burst int) *RateLimit {
	return &RateLimit{limiter: rate.NewLimiter(rate.Limit(r), burst)}
}

func (l *RateLimit) ProcessRequest(call Call, payload []byte) ([]byte, error) {
	if !l.limiter.Allow() {
		return nil, errRateLimited(call)
	}
	return payload, nil
}

func (l *RateLimit) ProcessResponse(call Call, payload []byte) ([]byte, error) {
	return payload, nil
}
