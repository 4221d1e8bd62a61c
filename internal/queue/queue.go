package queue

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("queue entry not found")

	// ErrDuplicate is returned when the invoice already has a pending or
	// in-flight entry.
	ErrDuplicate = errors.New("invoice already has an active queue entry")

	// ErrInFlight is returned when cancelling an entry whose submission is
	// currently in progress.
	ErrInFlight = errors.New("entry is in flight; wait for the attempt to resolve")

	// ErrConflict is returned when an entry is not in a state that allows
	// the requested transition.
	ErrConflict = errors.New("entry state does not allow this transition")
)

// Status represents the submission lifecycle state of a queue entry.
type Status string

const (
	StatusPending      Status = "pending"
	StatusInFlight     Status = "in_flight"
	StatusFailed       Status = "failed"
	StatusAcknowledged Status = "acknowledged"
)

// Entry tracks the submission lifecycle of one invoice. The invoice itself
// is referenced, never duplicated.
type Entry struct {
	ID        uuid.UUID
	InvoiceID uuid.UUID
	Status    Status

	// Attempts counts completed submission attempts. Terminal entries are
	// no longer returned by DequeueNext and need manual intervention.
	Attempts  int
	LastError string
	Terminal  bool

	// NextRetryAt gates when the entry becomes eligible for dequeueing.
	NextRetryAt time.Time

	CreatedAt time.Time
	UpdatedAt *time.Time
}

// Active reports whether the entry blocks a new enqueue of the same
// invoice. A non-terminal failed entry is still active: it returns to
// pending once its retry timer elapses.
func (e *Entry) Active() bool {
	switch e.Status {
	case StatusPending, StatusInFlight:
		return true
	case StatusFailed:
		return !e.Terminal
	default:
		return false
	}
}
