package signalmetrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	signalmetrics "github.com/dropvault/signalcore/internal/metrics"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := signalmetrics.NewCollector(reg)

	if c.Sessions == nil {
		t.Error("Sessions is nil")
	}
	if c.StateTransitions == nil {
		t.Error("StateTransitions is nil")
	}
	if c.RateLimited == nil {
		t.Error("RateLimited is nil")
	}
	if c.Blocked == nil {
		t.Error("Blocked is nil")
	}
	if c.ConcurrencyCapped == nil {
		t.Error("ConcurrencyCapped is nil")
	}
	if c.RelayCredentialsMinted == nil {
		t.Error("RelayCredentialsMinted is nil")
	}
	if c.DroppedRelays == nil {
		t.Error("DroppedRelays is nil")
	}
	if c.SecurityEvents == nil {
		t.Error("SecurityEvents is nil")
	}

	// Registration must not panic; gathering with no data yet is fine.
	if _, err := reg.Gather(); err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
}

func TestRegisterUnregisterSession(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := signalmetrics.NewCollector(reg)

	c.RegisterSession("waiting")
	if val := gaugeValue(t, c.Sessions, "waiting"); val != 1 {
		t.Errorf("after RegisterSession: sessions gauge = %v, want 1", val)
	}

	c.RegisterSession("active")
	if val := gaugeValue(t, c.Sessions, "active"); val != 1 {
		t.Errorf("active gauge = %v, want 1", val)
	}

	c.UnregisterSession("waiting")
	if val := gaugeValue(t, c.Sessions, "waiting"); val != 0 {
		t.Errorf("after UnregisterSession: waiting gauge = %v, want 0", val)
	}

	if val := gaugeValue(t, c.Sessions, "active"); val != 1 {
		t.Errorf("active gauge = %v, want 1 (should be unaffected)", val)
	}
}

func TestStateTransition(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := signalmetrics.NewCollector(reg)

	c.RecordStateTransition("WAITING", "ACTIVE")
	if val := counterValue(t, c.StateTransitions, "WAITING", "ACTIVE"); val != 1 {
		t.Errorf("StateTransitions(WAITING->ACTIVE) = %v, want 1", val)
	}

	c.RecordStateTransition("WAITING", "ACTIVE")
	if val := counterValue(t, c.StateTransitions, "WAITING", "ACTIVE"); val != 2 {
		t.Errorf("StateTransitions(WAITING->ACTIVE) = %v, want 2", val)
	}

	c.RecordStateTransition("ACTIVE", "COMPLETED")
	if val := counterValue(t, c.StateTransitions, "ACTIVE", "COMPLETED"); val != 1 {
		t.Errorf("StateTransitions(ACTIVE->COMPLETED) = %v, want 1", val)
	}
}

func TestRejectionCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := signalmetrics.NewCollector(reg)

	c.IncRateLimited("upload-init")
	c.IncRateLimited("upload-init")
	if val := counterValue(t, c.RateLimited, "upload-init"); val != 2 {
		t.Errorf("RateLimited(upload-init) = %v, want 2", val)
	}

	c.IncBlocked("hard-block")
	if val := counterValue(t, c.Blocked, "hard-block"); val != 1 {
		t.Errorf("Blocked(hard-block) = %v, want 1", val)
	}

	c.IncConcurrencyCapped("hourly")
	if val := counterValue(t, c.ConcurrencyCapped, "hourly"); val != 1 {
		t.Errorf("ConcurrencyCapped(hourly) = %v, want 1", val)
	}

	c.IncDroppedRelay("target-not-connected")
	if val := counterValue(t, c.DroppedRelays, "target-not-connected"); val != 1 {
		t.Errorf("DroppedRelays(target-not-connected) = %v, want 1", val)
	}
}

func TestRelayAndSecurityCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := signalmetrics.NewCollector(reg)

	c.IncRelayCredentialsMinted()
	c.IncRelayCredentialsMinted()
	if val := plainCounterValue(t, c.RelayCredentialsMinted); val != 2 {
		t.Errorf("RelayCredentialsMinted = %v, want 2", val)
	}

	c.IncSecurityEvent()
	if val := plainCounterValue(t, c.SecurityEvents); val != 1 {
		t.Errorf("SecurityEvents = %v, want 1", val)
	}
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

func gaugeValue(t *testing.T, vec *prometheus.GaugeVec, labels ...string) float64 {
	t.Helper()

	gauge, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := gauge.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()

	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetCounter().GetValue()
}

func plainCounterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()

	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetCounter().GetValue()
}
