package audit

import (
	"testing"
	"time"
)

func TestLogRecordAndLastN(t *testing.T) {
	t.Parallel()

	l := NewLog(nil)
	l.Record(LevelInfo, "connect", "ep-1", "", "203.0.113.1", nil)
	l.Record(LevelWarn, "soft-limit", "ep-2", "", "203.0.113.2", nil)
	l.Record(LevelSecurity, "hard-block", "ep-3", "", "203.0.113.3", nil)

	last := l.LastN(2)
	if len(last) != 2 {
		t.Fatalf("LastN(2) returned %d entries, want 2", len(last))
	}
	if last[1].Event != "hard-block" {
		t.Errorf("LastN(2)[1].Event = %q, want the most recently recorded event", last[1].Event)
	}
}

func TestLogLastNCapsAtSize(t *testing.T) {
	t.Parallel()

	l := NewLog(nil)
	l.Record(LevelInfo, "one", "", "", "", nil)

	if got := l.LastN(50); len(got) != 1 {
		t.Errorf("LastN(50) with a single entry = %d entries, want 1", len(got))
	}
}

func TestLogLastNByLevelFilters(t *testing.T) {
	t.Parallel()

	l := NewLog(nil)
	l.Record(LevelInfo, "connect", "", "", "", nil)
	l.Record(LevelSecurity, "blocked", "", "", "", nil)
	l.Record(LevelInfo, "disconnect", "", "", "", nil)
	l.Record(LevelSecurity, "blocked-again", "", "", "", nil)

	sec := l.LastNByLevel(10, LevelSecurity)
	if len(sec) != 2 {
		t.Fatalf("LastNByLevel(SECURITY) = %d entries, want 2", len(sec))
	}
	if sec[0].Event != "blocked" || sec[1].Event != "blocked-again" {
		t.Errorf("LastNByLevel(SECURITY) = %+v, want blocked then blocked-again in order", sec)
	}
}

func TestLogRingBufferEvictsOldestWhenFull(t *testing.T) {
	t.Parallel()

	l := NewLog(nil)
	for i := 0; i < capacity+10; i++ {
		l.Record(LevelInfo, "evt", "", "", "", nil)
	}

	if l.size != capacity {
		t.Errorf("ring size = %d after overfilling, want capped at %d", l.size, capacity)
	}

	all := l.LastN(capacity)
	if len(all) != capacity {
		t.Errorf("LastN(capacity) after overfill = %d entries, want %d", len(all), capacity)
	}
}

func TestLogSecuritySinceFiltersByTimeAndLevel(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var current time.Time
	l := NewLog(nil).withClock(func() time.Time { return current })

	current = now
	l.Record(LevelSecurity, "old-block", "", "", "203.0.113.1", nil)
	current = now.Add(time.Hour)
	l.Record(LevelInfo, "noise", "", "", "203.0.113.1", nil)
	current = now.Add(2 * time.Hour)
	l.Record(LevelSecurity, "recent-block", "", "", "203.0.113.1", nil)

	got := l.SecuritySince(now.Add(90 * time.Minute))
	if len(got) != 1 || got[0].Event != "recent-block" {
		t.Errorf("SecuritySince() = %+v, want only recent-block", got)
	}
}

func TestLogEvictOlderThan7Days(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var current time.Time
	l := NewLog(nil).withClock(func() time.Time { return current })

	current = base
	l.Record(LevelInfo, "stale", "", "", "", nil)
	current = base.Add(8 * 24 * time.Hour)
	l.Record(LevelInfo, "fresh", "", "", "", nil)

	evicted := l.EvictOlderThan7Days()
	if evicted != 1 {
		t.Fatalf("EvictOlderThan7Days() evicted %d, want 1", evicted)
	}

	remaining := l.LastN(10)
	if len(remaining) != 1 || remaining[0].Event != "fresh" {
		t.Errorf("remaining entries after eviction = %+v, want only fresh", remaining)
	}
}

func TestLogEvictOlderThan7DaysNoStaleEntries(t *testing.T) {
	t.Parallel()

	l := NewLog(nil)
	l.Record(LevelInfo, "recent", "", "", "", nil)

	if evicted := l.EvictOlderThan7Days(); evicted != 0 {
		t.Errorf("EvictOlderThan7Days() with no stale entries = %d, want 0", evicted)
	}
}
