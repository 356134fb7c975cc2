package session

import (
	"sync"
	"time"
)

// Concurrency Cap ceilings (§4.F).
const (
	concurrencyCeiling = 10
	hourlyCeiling      = 20
	hourlyWindow       = time.Hour
)

// concurrencyEntry tracks one IP's active and hourly-created session counts.
type concurrencyEntry struct {
	active      int
	hourlyCount int
	hourlyStart time.Time
}

// ConcurrencyDecision is the outcome of a ConcurrencyCap.Check call.
type ConcurrencyDecision struct {
	Allowed bool
	Reason  error // nil when Allowed; otherwise ErrConcurrencyCapped or ErrHourlyCapped
}

// ConcurrencyCap implements the per-IP concurrent-session and rolling
// hourly-creation ceilings of §4.F.
type ConcurrencyCap struct {
	clock func() time.Time

	mu      sync.Mutex
	entries map[string]*concurrencyEntry
}

// NewConcurrencyCap constructs a ConcurrencyCap.
func NewConcurrencyCap() *ConcurrencyCap {
	return &ConcurrencyCap{
		clock:   time.Now,
		entries: make(map[string]*concurrencyEntry),
	}
}

func (c *ConcurrencyCap) withClock(clock func() time.Time) *ConcurrencyCap {
	c.clock = clock
	return c
}

// Check is called at upload-init, after the token-bucket limiter has
// already passed (§4.F). On allow, the counts are incremented.
func (c *ConcurrencyCap) Check(ip string) ConcurrencyDecision {
	now := c.clock()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[ip]
	if !ok {
		e = &concurrencyEntry{hourlyStart: now}
		c.entries[ip] = e
	}

	if now.Sub(e.hourlyStart) > hourlyWindow {
		e.hourlyStart = now
		e.hourlyCount = 0
	}

	if e.active >= concurrencyCeiling {
		return ConcurrencyDecision{Allowed: false, Reason: ErrConcurrencyCapped}
	}
	if e.hourlyCount >= hourlyCeiling {
		return ConcurrencyDecision{Allowed: false, Reason: ErrHourlyCapped}
	}

	e.active++
	e.hourlyCount++
	return ConcurrencyDecision{Allowed: true}
}

// Decrement is called on session completion or purge (§4.F). The active
// count is clamped at zero; an entry with zero active count past the
// hourly window is removed entirely.
func (c *ConcurrencyCap) Decrement(ip string) {
	now := c.clock()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[ip]
	if !ok {
		return
	}

	if e.active > 0 {
		e.active--
	}

	if e.active == 0 && now.Sub(e.hourlyStart) > hourlyWindow {
		delete(c.entries, ip)
	}
}
