package endpoint

// recvPriority drains a buffered inbound queue before honoring a
// terminal done signal. Dispatch always delivers every MESSAGE for a
// stream before the terminal STATUS resolves it, but a bare two-way
// select over both channels is decided by Go's uniform random pick
// once both happen to be ready at once — silently dropping a buffered
// message some fraction of the time. A non-blocking drain first closes
// that window: whatever is already sitting in the buffer wins,
// regardless of whether done has also fired (§8 invariant 4 and
// scenario 5).
func recvPriority(inbound <-chan []byte, done <-chan struct{}) (payload []byte, open bool) {
	select {
	case payload, open = <-inbound:
		return payload, open
	default:
	}
	select {
	case payload, open = <-inbound:
		return payload, open
	case <-done:
		return nil, false
	}
}
