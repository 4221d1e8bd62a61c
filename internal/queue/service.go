package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=queue
type Repository interface {
	CreateEntry(ctx context.Context, e *Entry) error
	GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error)
	GetActiveByInvoice(ctx context.Context, invoiceID uuid.UUID) (*Entry, error)
	ListEntries(ctx context.Context, filter ListFilter) ([]*Entry, error)

	// NextPending returns the oldest non-terminal pending entry whose
	// next_retry_at has elapsed, or (nil, nil) when none is due.
	NextPending(ctx context.Context, now time.Time) (*Entry, error)

	// The mark operations are status-guarded single-row updates; they
	// return ErrConflict when the entry is not in the expected state.
	MarkInFlight(ctx context.Context, id uuid.UUID) error
	MarkAcknowledged(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string, terminal bool, nextRetryAt time.Time) error

	// Requeue re-arms a terminal failed entry for manual retry.
	Requeue(ctx context.Context, id uuid.UUID, nextRetryAt time.Time) error

	DeleteEntry(ctx context.Context, id uuid.UUID) error
}

type ListFilter struct {
	Status   *Status
	Terminal *bool
}

type Service struct {
	repo   Repository
	policy RetryPolicy
	now    func() time.Time
}

func NewService(repo Repository, policy RetryPolicy) *Service {
	return &Service{
		repo:   repo,
		policy: policy,
		now:    time.Now,
	}
}

// WithClock overrides the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Policy() RetryPolicy {
	return s.policy
}

// Enqueue creates a pending entry for the invoice. An invoice may have at
// most one active entry at a time.
func (s *Service) Enqueue(ctx context.Context, invoiceID uuid.UUID) (*Entry, error) {
	existing, err := s.repo.GetActiveByInvoice(ctx, invoiceID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("checking active entry: %w", err)
	}

	if existing != nil {
		return nil, ErrDuplicate
	}

	e := &Entry{
		InvoiceID:   invoiceID,
		Status:      StatusPending,
		NextRetryAt: s.now(),
	}

	if err := s.repo.CreateEntry(ctx, e); err != nil {
		return nil, err
	}

	return e, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.repo.GetEntry(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Entry, error) {
	return s.repo.ListEntries(ctx, filter)
}

// DequeueNext returns the oldest due pending entry, or nil when the queue
// has nothing ready.
func (s *Service) DequeueNext(ctx context.Context) (*Entry, error) {
	return s.repo.NextPending(ctx, s.now())
}

func (s *Service) MarkInFlight(ctx context.Context, e *Entry) error {
	if err := s.repo.MarkInFlight(ctx, e.ID); err != nil {
		return err
	}

	e.Status = StatusInFlight

	return nil
}

func (s *Service) MarkAcknowledged(ctx context.Context, e *Entry) error {
	if err := s.repo.MarkAcknowledged(ctx, e.ID); err != nil {
		return err
	}

	e.Status = StatusAcknowledged

	return nil
}

// MarkFailed records a failed attempt. Retryable failures get a backoff
// delay of BaseDelay × 2^(attempts-1), capped at MaxDelay; once the attempt
// budget is spent the entry turns terminal and stops being dequeued.
// Pass terminal=true for authority rejections that must never be retried.
func (s *Service) MarkFailed(ctx context.Context, e *Entry, cause string, terminal bool) error {
	attempts := e.Attempts + 1
	if !terminal {
		terminal = s.policy.Exhausted(attempts)
	}

	nextRetryAt := s.now().Add(s.policy.Delay(attempts))

	if err := s.repo.MarkFailed(ctx, e.ID, attempts, cause, terminal, nextRetryAt); err != nil {
		return fmt.Errorf("marking entry failed: %w", err)
	}

	e.Status = StatusFailed
	e.Attempts = attempts
	e.LastError = cause
	e.Terminal = terminal
	e.NextRetryAt = nextRetryAt

	return nil
}

// Cancel removes a pending entry from the queue. In-flight entries cannot
// be cancelled; the in-progress call must resolve first.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	e, err := s.repo.GetEntry(ctx, id)
	if err != nil {
		return err
	}

	switch e.Status {
	case StatusPending, StatusFailed:
		return s.repo.DeleteEntry(ctx, id)
	case StatusInFlight:
		return ErrInFlight
	default:
		return ErrConflict
	}
}

// Retry re-arms a terminally failed entry after manual intervention.
func (s *Service) Retry(ctx context.Context, id uuid.UUID) (*Entry, error) {
	e, err := s.repo.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}

	if e.Status != StatusFailed || !e.Terminal {
		return nil, ErrConflict
	}

	now := s.now()
	if err := s.repo.Requeue(ctx, id, now); err != nil {
		return nil, fmt.Errorf("requeueing entry: %w", err)
	}

	e.Status = StatusPending
	e.Terminal = false
	e.NextRetryAt = now

	return e, nil
}
