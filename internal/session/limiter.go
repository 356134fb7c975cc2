package session

import (
	"context"
	"sync"
	"time"
)

// limiterSweepInterval is the background bucket-eviction period (§4.D).
const limiterSweepInterval = 60 * time.Second

// bucket is a single fixed-window counter (§3 "Limiter bucket").
type bucket struct {
	count   int
	resetAt time.Time
}

// LimiterDecision is the result of a Token-Bucket Limiter check (§4.D).
type LimiterDecision struct {
	Allowed  bool
	Remaining int
	ResetAt  time.Time
}

// TokenBucketLimiter implements the fixed-window counter of §4.D. Unlike a
// continuous-refill token bucket, the window resets entirely on expiry
// rather than leaking tokens back continuously — no x/time/rate substitute
// reproduces that reset behavior.
type TokenBucketLimiter struct {
	window time.Duration
	max    int
	clock  func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	stop chan struct{}
	done chan struct{}
}

// NewTokenBucketLimiter constructs a limiter with the given window and max
// count, and starts its background sweep goroutine. Callers MUST call
// Close when the limiter is no longer needed so the sweep goroutine exits
// (tests using goleak depend on this).
func NewTokenBucketLimiter(window time.Duration, max int) *TokenBucketLimiter {
	l := &TokenBucketLimiter{
		window:  window,
		max:     max,
		clock:   time.Now,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// withClock overrides the limiter's time source, for deterministic tests.
func (l *TokenBucketLimiter) withClock(clock func() time.Time) *TokenBucketLimiter {
	l.clock = clock
	return l
}

// Check applies the window-reset-or-increment semantics of §4.D for the
// given identifier (an IP address or an endpoint id, depending on instance).
func (l *TokenBucketLimiter) Check(id string) LimiterDecision {
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[id]
	if !ok || now.After(b.resetAt) {
		b = &bucket{count: 1, resetAt: now.Add(l.window)}
		l.buckets[id] = b
		return LimiterDecision{Allowed: true, Remaining: l.max - 1, ResetAt: b.resetAt}
	}

	if b.count < l.max {
		b.count++
		return LimiterDecision{Allowed: true, Remaining: l.max - b.count, ResetAt: b.resetAt}
	}

	return LimiterDecision{Allowed: false, Remaining: 0, ResetAt: b.resetAt}
}

// sweepLoop evicts expired buckets every limiterSweepInterval (§4.D).
func (l *TokenBucketLimiter) sweepLoop() {
	defer close(l.done)

	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.evictExpired()
		}
	}
}

func (l *TokenBucketLimiter) evictExpired() {
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	for id, b := range l.buckets {
		if now.After(b.resetAt) {
			delete(l.buckets, id)
		}
	}
}

// Close stops the background sweep goroutine. Idempotent.
func (l *TokenBucketLimiter) Close() {
	select {
	case <-l.stop:
		// already closed
	default:
		close(l.stop)
	}
	<-l.done
}

// Run executes the sweep loop until ctx is cancelled, as an alternative to
// the self-managed goroutine started by NewTokenBucketLimiter, for callers
// that prefer to supervise the limiter from an errgroup.
func (l *TokenBucketLimiter) Run(ctx context.Context) {
	<-ctx.Done()
	l.Close()
}

// Named limiter constructors (§4.D): the three fixed instances the
// signaling core wires into the Boundary Adapter and the state machine.

// NewConnectionLimiter returns the per-IP connection-accept limiter:
// window 60s, max 10.
func NewConnectionLimiter() *TokenBucketLimiter {
	return NewTokenBucketLimiter(60*time.Second, 10)
}

// NewUploadInitLimiter returns the per-endpoint upload-init limiter:
// window 300s, max 5.
func NewUploadInitLimiter() *TokenBucketLimiter {
	return NewTokenBucketLimiter(300*time.Second, 5)
}

// NewJoinRoomLimiter returns the per-endpoint join-room limiter:
// window 60s, max 20.
func NewJoinRoomLimiter() *TokenBucketLimiter {
	return NewTokenBucketLimiter(60*time.Second, 20)
}
