package session

import (
	"context"
	"log/slog"
	"time"
)

// Sweep intervals and retention (§4.N).
const (
	mainSweepInterval  = 60 * time.Minute
	guardSweepInterval = 5 * time.Minute
	staleRowMaxAge     = 24 * time.Hour
)

// Sweeper runs the two periodic maintenance timers of §4.N: the main pass
// (hourly — stale repository rows, stale registrations) and the faster
// abuse-guard-only pass (every 5 minutes — expired blocks, idle trackers).
// It is built to be launched under an errgroup alongside the Boundary
// Adapter's servers, driven by its own ticking goroutine rather than ad hoc
// time.Sleep loops.
type Sweeper struct {
	engine *Engine
	log    *slog.Logger

	// auditEvict runs the Audit Log's 7-day retention eviction (§4.N step
	// 5) as part of the main pass. The session package doesn't import
	// internal/audit (see EngineConfig.OnAudit), so the caller supplies
	// this as a plain closure over its own *audit.Log.
	auditEvict func() int
}

// NewSweeper constructs a Sweeper bound to engine. auditEvict may be nil if
// the caller doesn't wire an Audit Log.
func NewSweeper(engine *Engine, logger *slog.Logger, auditEvict func() int) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{engine: engine, log: logger, auditEvict: auditEvict}
}

// Run blocks, driving both timers until ctx is cancelled. Intended to be
// launched as one goroutine in an errgroup.Group.
func (s *Sweeper) Run(ctx context.Context) error {
	main := time.NewTicker(mainSweepInterval)
	defer main.Stop()

	guard := time.NewTicker(guardSweepInterval)
	defer guard.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-main.C:
			rows, regs := s.engine.Sweep(staleRowMaxAge)
			var evictedAudit int
			if s.auditEvict != nil {
				evictedAudit = s.auditEvict()
			}
			s.log.Info("sweep complete",
				"rows_evicted", rows,
				"registrations_evicted", regs,
				"audit_entries_evicted", evictedAudit,
			)
		case <-guard.C:
			s.engine.AbuseGuard.Cleanup()
		}
	}
}
