package session

import (
	"sync"
	"time"
)

// registryEntry is the volatile §3 "Registry entry": sender endpoint id,
// one-time code, usage flag, and creation timestamp.
type registryEntry struct {
	sender    string
	createdAt time.Time
	code      codeEntry
}

// Registry is the in-memory session → sender-endpoint/code map of §4.H.
// Keys are session ids; values are independent of one another, so the
// Registry uses a single RWMutex rather than per-key locks — reads
// (Sender, IsSender, ValidateCode's lookup) vastly outnumber writes and the
// critical sections are O(1).
type Registry struct {
	clock func() time.Time

	mu      sync.RWMutex
	entries map[string]*registryEntry
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		clock:   time.Now,
		entries: make(map[string]*registryEntry),
	}
}

func (r *Registry) withClock(clock func() time.Time) *Registry {
	r.clock = clock
	return r
}

// Register creates a registry entry for id with the given sender endpoint,
// mints a one-time code, and returns it (§4.H).
func (r *Registry) Register(id string, senderEndpoint string) (string, error) {
	code, err := MintCode()
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[id] = &registryEntry{
		sender:    senderEndpoint,
		createdAt: r.clock(),
		code:      codeEntry{code: code},
	}

	return code, nil
}

// Sender returns the sender endpoint id registered for id, or ("", false)
// if none is registered (§4.H).
func (r *Registry) Sender(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return "", false
	}
	return e.sender, true
}

// IsSender is the authorization primitive for sender-privileged actions
// (§4.H, §9): true only if endpoint is the registered sender of id.
func (r *Registry) IsSender(id string, endpoint string) bool {
	sender, ok := r.Sender(id)
	return ok && sender == endpoint
}

// ValidateCode delegates to the single-use, constant-time code check of
// §4.G, operating on the stored entry for id.
func (r *Registry) ValidateCode(id string, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return ErrCodeAbsent
	}
	return verifyCode(&e.code, code)
}

// Remove deletes the registry entry for id (§4.H).
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// ForEndpoint returns every session id for which endpoint is the
// registered sender (§4.H).
func (r *Registry) ForEndpoint(endpoint string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, e := range r.entries {
		if e.sender == endpoint {
			ids = append(ids, id)
		}
	}
	return ids
}

// PurgeOlderThan removes every registry entry older than age (§4.H),
// called by the Sweeper after the Repository's own age-based purge.
func (r *Registry) PurgeOlderThan(age time.Duration) int {
	cutoff := r.clock().Add(-age)

	r.mu.Lock()
	defer r.mu.Unlock()

	var count int
	for id, e := range r.entries {
		if e.createdAt.Before(cutoff) {
			delete(r.entries, id)
			count++
		}
	}
	return count
}
