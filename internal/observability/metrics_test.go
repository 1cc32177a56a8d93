package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricsCountOutboundByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWith("concierge_test_outbound", reg)

	m.ObserveOutbound("response.create", nil)
	m.ObserveOutbound("response.create", nil)
	m.ObserveOutbound("response.create", errors.New("closed"))

	if got := counterValue(t, reg, "concierge_test_outbound_outbound_messages_total", "sent"); got != 2 {
		t.Fatalf("sent = %v, want 2", got)
	}
	if got := counterValue(t, reg, "concierge_test_outbound_outbound_messages_total", "dropped"); got != 1 {
		t.Fatalf("dropped = %v, want 1", got)
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, result string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "result" && label.GetValue() == result {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveInbound("response.done")
	m.ObserveConnect("ok", time.Second)
	m.ObserveToolCall("lookupInventory", "ok", time.Millisecond)
	m.SessionOpened()
	m.SessionClosed()
	if snap := m.LatencySnapshot(); len(snap.Stages) != 0 {
		t.Fatalf("len(Stages) = %d, want 0", len(snap.Stages))
	}
}

func TestLatencySnapshot(t *testing.T) {
	m := NewMetricsWith("concierge_test_latency", prometheus.NewRegistry())
	m.ObserveToolCall("lookupInventory", "ok", 500*time.Millisecond)
	m.ObserveToolCall("lookupInventory", "ok", 700*time.Millisecond)
	m.ObserveToolCall("lookupInventory", "ok", 900*time.Millisecond)
	m.ObserveToolCall("lookupInventory", "error", 5*time.Second)

	snap := m.LatencySnapshot()
	if len(snap.Stages) != 1 {
		t.Fatalf("len(Stages) = %d, want 1", len(snap.Stages))
	}
	s := snap.Stages[0]
	if s.Stage != "tool_call" {
		t.Fatalf("Stage = %q, want %q", s.Stage, "tool_call")
	}
	if s.Samples != 3 {
		t.Fatalf("Samples = %d, want 3", s.Samples)
	}
	if s.LastMS != 900 {
		t.Fatalf("LastMS = %.2f, want 900", s.LastMS)
	}
	if s.P50MS != 700 {
		t.Fatalf("P50MS = %.2f, want 700", s.P50MS)
	}
	if s.P95MS <= 700 || s.P95MS > 900 {
		t.Fatalf("P95MS = %.2f, want (700,900]", s.P95MS)
	}
	if s.TargetP95MS != 1000 {
		t.Fatalf("TargetP95MS = %.2f, want 1000", s.TargetP95MS)
	}
}

func TestLatencyWindowWraps(t *testing.T) {
	w := newLatencyWindow(2)
	w.Observe("connect", 100*time.Millisecond)
	w.Observe("connect", 200*time.Millisecond)
	w.Observe("connect", 300*time.Millisecond)

	snap := w.Snapshot()
	if snap.Stages[0].Samples != 2 {
		t.Fatalf("Samples = %d, want 2", snap.Stages[0].Samples)
	}
	if snap.Stages[0].AvgMS != 250 {
		t.Fatalf("AvgMS = %.2f, want 250", snap.Stages[0].AvgMS)
	}
}
