package middleware

import (
	"errors"
	"time"

	"corerpc/rpcstatus"
)

// Retry decides whether a failed unary call is worth
// re-sending and how long to wait first, adapted from the teacher's
// RetryMiddleware. It does not implement the Middleware interface: a
// retry has no single request/response leg to hook (the whole call —
// BEGIN through STATUS — must be redone), so the call builder invokes
// it directly, reading the method's RetryCount metadata (§10.3) to
// decide the attempt ceiling.
type Retry struct {
	maxRetries int
	baseDelay  time.Duration
}

// NewRetry builds a Retry helper allowing up to maxRetries re-sends
// after the first attempt, with exponential backoff starting at
// baseDelay.
func NewRetry(maxRetries int, baseDelay time.Duration) *Retry {
	return &Retry{maxRetries: maxRetries, baseDelay: baseDelay}
}

// Retryable reports whether err is worth retrying (transient
// transport/availability failures), mirroring the teacher's
// substring check on "timeout"/"connection refused" but against the
// structured rpcstatus.Code instead of parsing message text.
func Retryable(err error) bool {
	var st *rpcstatus.Error
	if !errors.As(err, &st) {
		return false
	}
	switch st.Code {
	case rpcstatus.Unavailable, rpcstatus.DeadlineExceeded:
		return true
	default:
		return false
	}
}

// Backoff returns how long to wait before attempt (0-indexed) of
// maxRetries, following the teacher's doubling schedule.
func (r *Retry) Backoff(attempt int) time.Duration {
	return r.baseDelay * time.Duration(uint64(1)<<uint(attempt))
}

// MaxRetries reports the configured retry ceiling, read by the call
// builder alongside a method's RetryCount metadata.
func (r *Retry) MaxRetries() int { return r.maxRetries }
