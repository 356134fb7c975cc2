package session_test

import (
	"errors"
	"testing"

	"github.com/dropvault/signalcore/internal/session"
)

func TestConcurrencyCapEnforcesConcurrentCeiling(t *testing.T) {
	t.Parallel()

	c := session.NewConcurrencyCap()

	for i := 0; i < 10; i++ {
		if d := c.Check("203.0.113.1"); !d.Allowed {
			t.Fatalf("Check() call %d = rejected (%v), want allowed within the ceiling", i+1, d.Reason)
		}
	}

	d := c.Check("203.0.113.1")
	if d.Allowed {
		t.Fatal("Check() beyond the concurrent ceiling = allowed, want rejected")
	}
	if !errors.Is(d.Reason, session.ErrConcurrencyCapped) {
		t.Errorf("Check() reason = %v, want ErrConcurrencyCapped", d.Reason)
	}
}

func TestConcurrencyCapDecrementFreesASlot(t *testing.T) {
	t.Parallel()

	c := session.NewConcurrencyCap()

	for i := 0; i < 10; i++ {
		if d := c.Check("203.0.113.1"); !d.Allowed {
			t.Fatalf("Check() call %d = rejected, want allowed", i+1)
		}
	}
	if d := c.Check("203.0.113.1"); d.Allowed {
		t.Fatal("Check() at the ceiling = allowed, want rejected")
	}

	c.Decrement("203.0.113.1")

	if d := c.Check("203.0.113.1"); !d.Allowed {
		t.Error("Check() after Decrement() = rejected, want allowed since a slot freed up")
	}
}

func TestConcurrencyCapIsPerIP(t *testing.T) {
	t.Parallel()

	c := session.NewConcurrencyCap()
	for i := 0; i < 10; i++ {
		c.Check("203.0.113.1")
	}

	if d := c.Check("203.0.113.2"); !d.Allowed {
		t.Error("Check() for a different IP = rejected, want allowed (independent counters)")
	}
}

func TestConcurrencyCapDecrementUnknownIPIsNoop(t *testing.T) {
	t.Parallel()

	c := session.NewConcurrencyCap()
	c.Decrement("never-seen")
}
