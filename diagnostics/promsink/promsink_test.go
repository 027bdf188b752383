package promsink

import (
	"testing"

	"corerpc/diagnostics"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels prometheus.Labels) float64 {
	t.Helper()
	m, err := vec.GetMetricWith(labels)
	if err != nil {
		t.Fatalf("GetMetricWith failed: %v", err)
	}
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	return out.GetCounter().GetValue()
}

func TestSinkCountsByKind(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := New(reg)

	s.Publish(diagnostics.Event{Kind: diagnostics.StreamBegin, Service: "Calc", Method: "Add"})
	s.Publish(diagnostics.Event{Kind: diagnostics.StreamBegin, Service: "Calc", Method: "Add"})
	s.Publish(diagnostics.Event{Kind: diagnostics.StreamStatus, Service: "Calc", Method: "Add", StatusCode: "OK"})
	s.Publish(diagnostics.Event{Kind: diagnostics.StreamCancel, Service: "Calc", Method: "Add"})

	if got := counterValue(t, s.streamsStarted, prometheus.Labels{"service": "Calc", "method": "Add"}); got != 2 {
		t.Errorf("streamsStarted = %v, want 2", got)
	}
	if got := counterValue(t, s.streamsFinished, prometheus.Labels{"service": "Calc", "method": "Add", "code": "OK"}); got != 1 {
		t.Errorf("streamsFinished = %v, want 1", got)
	}
	if got := counterValue(t, s.cancellations, prometheus.Labels{"service": "Calc", "method": "Add"}); got != 1 {
		t.Errorf("cancellations = %v, want 1", got)
	}
}
