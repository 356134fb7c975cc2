// Package signalmetrics holds the Prometheus Collector for the signaling
// core (§4, §11): session gauges, lifecycle counters, and the
// security/abuse counters the Abuse Guard and Limiter feed.
package signalmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "signalcore"
	subsystem = "session"
)

// Label names.
const (
	labelFromState = "from_state"
	labelToState   = "to_state"
	labelReason    = "reason"
	labelLimiter   = "limiter"
)

// -------------------------------------------------------------------------
// Collector — Prometheus Signaling Metrics
// -------------------------------------------------------------------------

// Collector holds all signaling-core Prometheus metrics.
//
//   - Sessions tracks how many repository rows currently exist, by status.
//   - StateTransitions counts FSM transitions for alerting on abnormal flows.
//   - RateLimited/ConcurrencyCapped count rejections by the Limiter and
//     the Concurrency Cap; Blocked counts Abuse Guard security events.
//   - RelayCredentialsMinted counts /api/ice-servers credential mints.
//   - DroppedRelays counts Message Router silent drops, by reason.
//   - SecurityEvents counts SECURITY-level audit entries.
type Collector struct {
	// Sessions tracks the number of currently live sessions, labeled by
	// status (waiting/active). Incremented on Create, decremented on
	// Delete; COMPLETED rows are deleted immediately under the
	// delete-on-complete policy, so there is no "completed" label value.
	Sessions *prometheus.GaugeVec

	// StateTransitions counts FSM transitions, labeled by old and new state.
	StateTransitions *prometheus.CounterVec

	// RateLimited counts Token-Bucket Limiter rejections, labeled by which
	// of the three named limiter instances rejected the request.
	RateLimited *prometheus.CounterVec

	// Blocked counts Abuse Guard security events: hard blocks and
	// suspicious-event threshold alerts.
	Blocked *prometheus.CounterVec

	// ConcurrencyCapped counts Concurrency Cap rejections.
	ConcurrencyCapped *prometheus.CounterVec

	// RelayCredentialsMinted counts successful TURN credential mints.
	RelayCredentialsMinted prometheus.Counter

	// DroppedRelays counts Message Router silent drops, labeled by reason.
	DroppedRelays *prometheus.CounterVec

	// SecurityEvents counts entries recorded at SECURITY level in the audit log.
	SecurityEvents prometheus.Counter
}

// NewCollector creates a Collector with all metrics registered against the
// provided prometheus.Registerer. If reg is nil, prometheus.DefaultRegisterer
// is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.Sessions,
		c.StateTransitions,
		c.RateLimited,
		c.Blocked,
		c.ConcurrencyCapped,
		c.RelayCredentialsMinted,
		c.DroppedRelays,
		c.SecurityEvents,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	transitionLabels := []string{labelFromState, labelToState}

	return &Collector{
		Sessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions",
			Help:      "Number of currently live signaling sessions.",
		}, []string{"status"}),

		StateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "state_transitions_total",
			Help:      "Total signaling FSM state transitions.",
		}, transitionLabels),

		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rate_limited_total",
			Help:      "Total requests rejected by a Token-Bucket Limiter instance.",
		}, []string{labelLimiter}),

		Blocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "abuse_guard_blocked_total",
			Help:      "Total Abuse Guard hard blocks and suspicious-event alerts.",
		}, []string{labelReason}),

		ConcurrencyCapped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "concurrency_capped_total",
			Help:      "Total session creations rejected by the Concurrency Cap.",
		}, []string{labelReason}),

		RelayCredentialsMinted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "relay_credentials_minted_total",
			Help:      "Total TURN relay credentials minted via /api/ice-servers.",
		}),

		DroppedRelays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "router_dropped_total",
			Help:      "Total Message Router relay attempts silently dropped, by reason.",
		}, []string{labelReason}),

		SecurityEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "security_events_total",
			Help:      "Total audit entries recorded at SECURITY level.",
		}),
	}
}

// -------------------------------------------------------------------------
// Session Lifecycle
// -------------------------------------------------------------------------

// RegisterSession increments the live-sessions gauge for status.
func (c *Collector) RegisterSession(status string) {
	c.Sessions.WithLabelValues(status).Inc()
}

// UnregisterSession decrements the live-sessions gauge for status.
func (c *Collector) UnregisterSession(status string) {
	c.Sessions.WithLabelValues(status).Dec()
}

// -------------------------------------------------------------------------
// State Transitions
// -------------------------------------------------------------------------

// RecordStateTransition increments the state transition counter with the
// old and new state labels (§4.J).
func (c *Collector) RecordStateTransition(from, to string) {
	c.StateTransitions.WithLabelValues(from, to).Inc()
}

// -------------------------------------------------------------------------
// Rejections
// -------------------------------------------------------------------------

// IncRateLimited increments the rejection counter for the named limiter
// instance ("connection", "upload-init", "join-room").
func (c *Collector) IncRateLimited(limiter string) {
	c.RateLimited.WithLabelValues(limiter).Inc()
}

// IncBlocked increments the Abuse Guard event counter for reason
// ("hard-block" or "suspicious-threshold").
func (c *Collector) IncBlocked(reason string) {
	c.Blocked.WithLabelValues(reason).Inc()
}

// IncConcurrencyCapped increments the Concurrency Cap rejection counter for
// reason ("concurrent" or "hourly").
func (c *Collector) IncConcurrencyCapped(reason string) {
	c.ConcurrencyCapped.WithLabelValues(reason).Inc()
}

// IncRelayCredentialsMinted increments the TURN credential mint counter.
func (c *Collector) IncRelayCredentialsMinted() {
	c.RelayCredentialsMinted.Inc()
}

// IncDroppedRelay increments the Message Router drop counter for reason.
func (c *Collector) IncDroppedRelay(reason string) {
	c.DroppedRelays.WithLabelValues(reason).Inc()
}

// IncSecurityEvent increments the SECURITY-level audit counter.
func (c *Collector) IncSecurityEvent() {
	c.SecurityEvents.Inc()
}
