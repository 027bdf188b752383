// Package promsink adapts diagnostics.Sink onto Prometheus metrics,
// the same service/method/status-keyed shape
// github.com/grpc-ecosystem/go-grpc-prometheus gives grpc-go itself
// (present alongside a go-grpc-prometheus-style stack in the pack's
// linkerd-linkerd2 go.mod).
package promsink

import (
	"corerpc/diagnostics"

	"github.com/prometheus/client_golang/prometheus"
)

// Sink counts stream lifecycle events and records terminal status
// codes, labeled by service and method.
type Sink struct {
	streamsStarted  *prometheus.CounterVec
	streamsFinished *prometheus.CounterVec
	cancellations   *prometheus.CounterVec
}

// New registers its collectors on reg (pass prometheus.DefaultRegisterer
// for the global registry, or a fresh *prometheus.Registry in tests).
func New(reg prometheus.Registerer) *Sink {
	s := &Sink{
		streamsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corerpc",
			Name:      "streams_started_total",
			Help:      "Streams for which a BEGIN envelope was observed.",
		}, []string{"service", "method"}),
		streamsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corerpc",
			Name:      "streams_finished_total",
			Help:      "Streams that resolved with a terminal STATUS, labeled by code.",
		}, []string{"service", "method", "code"}),
		cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corerpc",
			Name:      "stream_cancellations_total",
			Help:      "CANCEL envelopes observed, by service and method.",
		}, []string{"service", "method"}),
	}
	reg.MustRegister(s.streamsStarted, s.streamsFinished, s.cancellations)
	return s
}

// Publish implements diagnostics.Sink.
func (s *Sink) Publish(ev diagnostics.Event) {
	switch ev.Kind {
	case diagnostics.StreamBegin:
		s.streamsStarted.WithLabelValues(ev.Service, ev.Method).Inc()
	case diagnostics.StreamStatus:
		s.streamsFinished.WithLabelValues(ev.Service, ev.Method, ev.StatusCode).Inc()
	case diagnostics.StreamCancel:
		s.cancellations.WithLabelValues(ev.Service, ev.Method).Inc()
	}
}
