// Package audit implements the bounded in-memory security/event ring of
// §4.O: a fixed-capacity ring buffer of structured entries, queryable by
// recency and level, with cross-correlation to per-IP suspicious activity.
package audit

import (
	"log/slog"
	"sync"
	"time"
)

// Level is an audit entry's severity (§4.O).
type Level string

const (
	LevelInfo     Level = "INFO"
	LevelWarn     Level = "WARN"
	LevelError    Level = "ERROR"
	LevelSecurity Level = "SECURITY"
)

// capacity is the ring buffer's fixed size (§4.O).
const capacity = 10_000

// retention is the maximum age an entry survives before the Sweeper evicts
// it (§4.N).
const retention = 7 * 24 * time.Hour

// Entry is one structured audit record (§4.O).
type Entry struct {
	Timestamp  time.Time
	Level      Level
	Event      string
	EndpointID string
	SessionID  string
	IP         string
	Details    map[string]any
}

// Log is a bounded ring of up to 10,000 entries (§4.O). Entries are also
// mirrored to the supplied *slog.Logger at the matching level so operators
// see them in ordinary log aggregation without polling the admin query
// surface — see SPEC_FULL.md §10.
type Log struct {
	logger *slog.Logger
	clock  func() time.Time

	mu      sync.Mutex
	entries []Entry // ring buffer; oldest at index `head`
	head    int
	size    int
}

// NewLog constructs an empty audit Log. logger may be nil, in which case
// entries are recorded only in the ring and not mirrored anywhere.
func NewLog(logger *slog.Logger) *Log {
	return &Log{
		logger:  logger,
		clock:   time.Now,
		entries: make([]Entry, capacity),
	}
}

func (l *Log) withClock(clock func() time.Time) *Log {
	l.clock = clock
	return l
}

// Record appends an entry, evicting the oldest if the ring is full, and
// mirrors it to the structured logger at the matching slog level.
func (l *Log) Record(level Level, event string, endpointID, sessionID, ip string, details map[string]any) {
	entry := Entry{
		Timestamp:  l.clock(),
		Level:      level,
		Event:      event,
		EndpointID: endpointID,
		SessionID:  sessionID,
		IP:         ip,
		Details:    details,
	}

	l.mu.Lock()
	idx := (l.head + l.size) % capacity
	if l.size == capacity {
		l.head = (l.head + 1) % capacity
	} else {
		l.size++
	}
	l.entries[idx] = entry
	l.mu.Unlock()

	l.mirror(entry)
}

func (l *Log) mirror(e Entry) {
	if l.logger == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("event", e.Event),
		slog.String("endpoint_id", e.EndpointID),
		slog.String("session_id", e.SessionID),
		slog.String("ip", e.IP),
	}
	for k, v := range e.Details {
		attrs = append(attrs, slog.Any(k, v))
	}

	ctx := noContext{}
	switch e.Level {
	case LevelWarn:
		l.logger.LogAttrs(ctx, slog.LevelWarn, "audit event", attrs...)
	case LevelError:
		l.logger.LogAttrs(ctx, slog.LevelError, "audit event", attrs...)
	case LevelSecurity:
		l.logger.LogAttrs(ctx, slog.LevelWarn, "security event", attrs...)
	default:
		l.logger.LogAttrs(ctx, slog.LevelInfo, "audit event", attrs...)
	}
}

// LastN returns up to n most recent entries, newest last.
func (l *Log) LastN(n int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n > l.size {
		n = l.size
	}

	result := make([]Entry, n)
	for i := 0; i < n; i++ {
		idx := (l.head + l.size - n + i) % capacity
		result[i] = l.entries[idx]
	}
	return result
}

// LastNByLevel returns up to n most recent entries matching level, newest last.
func (l *Log) LastNByLevel(n int, level Level) []Entry {
	l.mu.Lock()
	all := make([]Entry, l.size)
	for i := 0; i < l.size; i++ {
		all[i] = l.entries[(l.head+i)%capacity]
	}
	l.mu.Unlock()

	var filtered []Entry
	for _, e := range all {
		if e.Level == level {
			filtered = append(filtered, e)
		}
	}

	if len(filtered) > n {
		filtered = filtered[len(filtered)-n:]
	}
	return filtered
}

// SecuritySince returns every SECURITY entry recorded at or after since.
func (l *Log) SecuritySince(since time.Time) []Entry {
	l.mu.Lock()
	all := make([]Entry, l.size)
	for i := 0; i < l.size; i++ {
		all[i] = l.entries[(l.head+i)%capacity]
	}
	l.mu.Unlock()

	var result []Entry
	for _, e := range all {
		if e.Level == LevelSecurity && !e.Timestamp.Before(since) {
			result = append(result, e)
		}
	}
	return result
}

// EvictOlderThan7Days drops entries older than the 7-day retention window
// (§4.N step 5). Because the ring is ordered oldest-to-newest starting at
// head, eviction only needs to advance head/size past the stale prefix.
func (l *Log) EvictOlderThan7Days() int {
	cutoff := l.clock().Add(-retention)

	l.mu.Lock()
	defer l.mu.Unlock()

	var evicted int
	for l.size > 0 && l.entries[l.head].Timestamp.Before(cutoff) {
		l.head = (l.head + 1) % capacity
		l.size--
		evicted++
	}
	return evicted
}

// noContext is a zero-cost context.Context so Record doesn't need a real
// request-scoped context threaded through every call site — audit entries
// outlive any single request.
type noContext struct{}

func (noContext) Deadline() (time.Time, bool)   { return time.Time{}, false }
func (noContext) Done() <-chan struct{}         { return nil }
func (noContext) Err() error                    { return nil }
func (noContext) Value(key any) any             { return nil }
