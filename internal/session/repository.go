package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the repository row's lifecycle status (§3).
type Status string

// Status values (§3, §4.J). NONE/TERMINATED are state-machine-only states
// (§4.J); the repository row itself only ever holds one of these three.
const (
	StatusWaiting   Status = "WAITING"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
)

// Row is the persistent §3 "Session" record. No plaintext filename or MIME
// type is ever stored here — only the ciphertext envelopes produced by the
// Field Encryption component (§4.B).
type Row struct {
	ID            string
	EncryptedName string
	EncryptedType string
	Size          int64
	FileHash      string
	CodeHash      string
	Status        Status
	CreatedAt     time.Time
	SenderIP      string
}

// Repository is the five-operation store of §4.A. The reference
// implementation here is in-memory, guarded by a single RWMutex — per §5
// the Repository is assumed internally concurrency-safe and is the only
// component that performs true I/O; an external backend (Postgres, etc.)
// would satisfy the same interface without blocking the rest of the core.
type Repository struct {
	clock func() time.Time

	mu   sync.RWMutex
	rows map[string]*Row
}

// NewRepository constructs an empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{
		clock: time.Now,
		rows:  make(map[string]*Row),
	}
}

func (r *Repository) withClock(clock func() time.Time) *Repository {
	r.clock = clock
	return r
}

// Create assigns a random 128-bit id, rendered in the canonical 36-char
// lowercase hyphenated form (§3), and stores a new WAITING row.
func (r *Repository) Create(encName string, size int64, encType string, senderIP string, fileHash string, codeHash string) (string, error) {
	id := uuid.New().String()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.rows[id] = &Row{
		ID:            id,
		EncryptedName: encName,
		EncryptedType: encType,
		Size:          size,
		FileHash:      fileHash,
		CodeHash:      codeHash,
		Status:        StatusWaiting,
		CreatedAt:     r.clock(),
		SenderIP:      senderIP,
	}

	return id, nil
}

// Find returns a copy of the row for id, or (Row{}, false) if id is unknown
// or was deleted (§4.A).
func (r *Repository) Find(id string) (Row, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.rows[id]
	if !ok {
		return Row{}, false
	}
	return *row, true
}

// SetStatus updates the status of id. It is idempotent — setting the same
// status again is a no-op — and rejects transitioning COMPLETED back to
// ACTIVE (§4.A).
func (r *Repository) SetStatus(id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[id]
	if !ok {
		return ErrNotFound
	}

	if row.Status == status {
		return nil
	}

	if row.Status == StatusCompleted && status == StatusActive {
		return ErrInvalidStatusTransition
	}

	row.Status = status
	return nil
}

// Delete removes the row for id (§4.A). Deleting an unknown id is not an
// error — the postcondition (the row is gone) already holds.
func (r *Repository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

// All returns a snapshot of every row currently stored, for the admin query
// surface (§4.O). Order is unspecified.
func (r *Repository) All() []Row {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := make([]Row, 0, len(r.rows))
	for _, row := range r.rows {
		rows = append(rows, *row)
	}
	return rows
}

// DeleteOlderThan removes every row older than cutoff whose status is in
// statusFilter (or any status, if statusFilter is empty), returning the
// removed rows (§4.A, used by the Sweeper per §4.N) so the caller can settle
// any per-row bookkeeping — chiefly the Concurrency Cap's per-IP count —
// that a plain count would lose.
func (r *Repository) DeleteOlderThan(cutoff time.Time, statusFilter ...Status) []Row {
	allowed := make(map[Status]bool, len(statusFilter))
	for _, s := range statusFilter {
		allowed[s] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []Row
	for id, row := range r.rows {
		if !row.CreatedAt.Before(cutoff) {
			continue
		}
		if len(allowed) > 0 && !allowed[row.Status] {
			continue
		}
		removed = append(removed, *row)
		delete(r.rows, id)
	}
	return removed
}
