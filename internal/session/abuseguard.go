package session

import (
	"sync"
	"time"
)

// Abuse Guard thresholds and durations (§4.E).
const (
	abuseWindow          = 60 * time.Second
	abuseSoftThreshold   = 10
	abuseHardThreshold   = 50
	abuseBlockDuration   = 15 * time.Minute
	suspiciousAlertLevel = 5
)

// abuseTrackerEntry is the per-IP tracker of §3 "Abuse tracker entry".
type abuseTrackerEntry struct {
	count            int
	windowStart      time.Time
	blocked          bool
	blockExpiry      time.Time
	suspiciousCount  int
}

// ConnectionDecision is the outcome of AbuseGuard.TrackConnection.
type ConnectionDecision struct {
	Allowed         bool
	Blocked         bool
	BlockRemaining  time.Duration
	SoftLimited     bool
}

// AbuseGuard implements the per-IP connection tracker and escalating
// auto-block of §4.E. Per-key state is guarded by a single mutex; the map
// is small relative to connection volume and the critical sections are O(1),
// so one lock over a keyed map of cheap-to-touch values is simpler than
// per-entry locking.
type AbuseGuard struct {
	clock func() time.Time

	mu       sync.Mutex
	trackers map[string]*abuseTrackerEntry

	onSecurityEvent func(ip string, detail string)
}

// NewAbuseGuard constructs an AbuseGuard. onSecurityEvent, if non-nil, is
// invoked (outside the lock) whenever a hard-block or suspicious-alert
// event fires, so the caller can record it to the Audit Log (O).
func NewAbuseGuard(onSecurityEvent func(ip string, detail string)) *AbuseGuard {
	return &AbuseGuard{
		clock:           time.Now,
		trackers:        make(map[string]*abuseTrackerEntry),
		onSecurityEvent: onSecurityEvent,
	}
}

func (g *AbuseGuard) withClock(clock func() time.Time) *AbuseGuard {
	g.clock = clock
	return g
}

// TrackConnection applies the new-connection bookkeeping and threshold
// checks of §4.E.
func (g *AbuseGuard) TrackConnection(ip string) ConnectionDecision {
	now := g.clock()

	var (
		fireSecurityEvent bool
		decision          ConnectionDecision
	)

	func() {
		g.mu.Lock()
		defer g.mu.Unlock()

		e, ok := g.trackers[ip]
		if !ok {
			e = &abuseTrackerEntry{windowStart: now}
			g.trackers[ip] = e
		}

		if e.blocked {
			if now.Before(e.blockExpiry) {
				decision = ConnectionDecision{
					Allowed:        false,
					Blocked:        true,
					BlockRemaining: e.blockExpiry.Sub(now),
				}
				return
			}
			// Block expired: reset entry entirely (§4.E).
			*e = abuseTrackerEntry{windowStart: now, count: 0}
		}

		if now.Sub(e.windowStart) > abuseWindow {
			e.windowStart = now
			e.count = 1
		} else {
			e.count++
		}

		if e.count > abuseHardThreshold {
			e.blocked = true
			e.blockExpiry = now.Add(abuseBlockDuration)
			fireSecurityEvent = true
			decision = ConnectionDecision{
				Allowed:        false,
				Blocked:        true,
				BlockRemaining: abuseBlockDuration,
			}
			return
		}

		if e.count > abuseSoftThreshold {
			e.suspiciousCount++
			decision = ConnectionDecision{Allowed: false, SoftLimited: true}
			return
		}

		decision = ConnectionDecision{Allowed: true}
	}()

	if fireSecurityEvent && g.onSecurityEvent != nil {
		g.onSecurityEvent(ip, "connection flood threshold exceeded, IP auto-blocked for 15 minutes")
	}

	return decision
}

// TrackDisconnect decrements the rolling connection count, never below
// zero, and never while the entry is blocked (§4.E).
func (g *AbuseGuard) TrackDisconnect(ip string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.trackers[ip]
	if !ok || e.blocked {
		return
	}
	if e.count > 0 {
		e.count--
	}
}

// Suspicious records a rule-violation event for ip (invalid UUID, bad
// password, out-of-room signal, rate-limit breach). At >= 5 cumulative
// events an elevated security alert fires.
func (g *AbuseGuard) Suspicious(ip string, reason string) {
	var fire bool

	g.mu.Lock()
	e, ok := g.trackers[ip]
	if !ok {
		e = &abuseTrackerEntry{windowStart: g.clock()}
		g.trackers[ip] = e
	}
	e.suspiciousCount++
	fire = e.suspiciousCount >= suspiciousAlertLevel
	g.mu.Unlock()

	if fire && g.onSecurityEvent != nil {
		g.onSecurityEvent(ip, "suspicious event threshold reached: "+reason)
	}
}

// Cleanup removes expired blocks and idle trackers. Invoked by the fast
// (5-minute) sweeper timer, and again as part of the Sweeper's slower pass
// (§4.N).
func (g *AbuseGuard) Cleanup() {
	now := g.clock()

	g.mu.Lock()
	defer g.mu.Unlock()

	for ip, e := range g.trackers {
		if e.blocked && !now.Before(e.blockExpiry) {
			*e = abuseTrackerEntry{windowStart: now}
		}
		idle := now.Sub(e.windowStart) > abuseWindow && !e.blocked && e.count == 0 && e.suspiciousCount == 0
		if idle {
			delete(g.trackers, ip)
		}
	}
}
