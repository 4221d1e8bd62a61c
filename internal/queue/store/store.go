package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ahmedwadee/fbrflow/internal/queue"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const selectEntryColumns = `
	q.id, q.invoice_id, q.status, q.attempts, q.last_error, q.terminal,
	q.next_retry_at, q.created_at, q.updated_at
`

func scanEntry(s scanner) (*queue.Entry, error) {
	var e queue.Entry

	var statusStr string

	var lastError sql.NullString

	if err := s.Scan(
		&e.ID, &e.InvoiceID, &statusStr, &e.Attempts, &lastError, &e.Terminal,
		&e.NextRetryAt, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}

	e.Status = queue.Status(statusStr)
	e.LastError = lastError.String

	return &e, nil
}

func (s *Store) CreateEntry(ctx context.Context, e *queue.Entry) error {
	// The partial unique index on (invoice_id) WHERE status IN
	// ('pending','in_flight') backstops the service-level duplicate check.
	query := `
		INSERT INTO queue_entries (invoice_id, status, attempts, terminal, next_retry_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		e.InvoiceID, e.Status, e.Attempts, e.Terminal, e.NextRetryAt,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating queue entry: %w", err)
	}

	return nil
}

func (s *Store) GetEntry(ctx context.Context, id uuid.UUID) (*queue.Entry, error) {
	query := `SELECT ` + selectEntryColumns + `
		FROM queue_entries q
		WHERE q.id = $1`

	e, err := scanEntry(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, queue.ErrNotFound
		}

		return nil, fmt.Errorf("getting queue entry: %w", err)
	}

	return e, nil
}

func (s *Store) GetActiveByInvoice(ctx context.Context, invoiceID uuid.UUID) (*queue.Entry, error) {
	query := `SELECT ` + selectEntryColumns + `
		FROM queue_entries q
		WHERE q.invoice_id = $1
			AND (q.status IN ('pending', 'in_flight') OR (q.status = 'failed' AND NOT q.terminal))`

	e, err := scanEntry(s.db.QueryRowContext(ctx, query, invoiceID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, queue.ErrNotFound
		}

		return nil, fmt.Errorf("getting active entry: %w", err)
	}

	return e, nil
}

func (s *Store) ListEntries(ctx context.Context, filter queue.ListFilter) ([]*queue.Entry, error) {
	query := `SELECT ` + selectEntryColumns + `
		FROM queue_entries q
		WHERE 1=1`

	var args []any

	argIdx := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND q.status = $%d", argIdx)

		args = append(args, *filter.Status)
		argIdx++
	}

	if filter.Terminal != nil {
		query += fmt.Sprintf(" AND q.terminal = $%d", argIdx)

		args = append(args, *filter.Terminal)
		argIdx++
	}

	query += " ORDER BY q.created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing queue entries: %w", err)
	}
	defer rows.Close()

	var entries []*queue.Entry

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning queue entry: %w", err)
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating queue rows: %w", err)
	}

	return entries, nil
}

func (s *Store) NextPending(ctx context.Context, now time.Time) (*queue.Entry, error) {
	// A failed entry whose retry timer has elapsed is pending again.
	// SKIP LOCKED keeps a concurrent enqueue from blocking the worker's
	// scan on rows the API is still inserting or updating.
	query := `SELECT ` + selectEntryColumns + `
		FROM queue_entries q
		WHERE q.status IN ('pending', 'failed') AND NOT q.terminal AND q.next_retry_at <= $1
		ORDER BY q.created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`

	e, err := scanEntry(s.db.QueryRowContext(ctx, query, now))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, fmt.Errorf("selecting next pending entry: %w", err)
	}

	return e, nil
}

// markGuarded performs a status transition only when the entry is currently
// in fromStatus, returning queue.ErrConflict otherwise.
func (s *Store) markGuarded(ctx context.Context, id uuid.UUID, from, to queue.Status) error {
	query := `
		UPDATE queue_entries
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	res, err := s.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return fmt.Errorf("updating entry status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}

	if affected == 0 {
		return queue.ErrConflict
	}

	return nil
}

func (s *Store) MarkInFlight(ctx context.Context, id uuid.UUID) error {
	// Both fresh (pending) and due-for-retry (failed, non-terminal)
	// entries may go in flight.
	query := `
		UPDATE queue_entries
		SET status = 'in_flight', updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'failed') AND NOT terminal
	`

	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("marking entry in flight: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}

	if affected == 0 {
		return queue.ErrConflict
	}

	return nil
}

func (s *Store) MarkAcknowledged(ctx context.Context, id uuid.UUID) error {
	return s.markGuarded(ctx, id, queue.StatusInFlight, queue.StatusAcknowledged)
}

func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string, terminal bool, nextRetryAt time.Time) error {
	query := `
		UPDATE queue_entries
		SET status = 'failed', attempts = $1, last_error = $2, terminal = $3, next_retry_at = $4, updated_at = NOW()
		WHERE id = $5 AND status = 'in_flight'
	`

	res, err := s.db.ExecContext(ctx, query, attempts, lastError, terminal, nextRetryAt, id)
	if err != nil {
		return fmt.Errorf("marking entry failed: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}

	if affected == 0 {
		return queue.ErrConflict
	}

	return nil
}

// Requeue transitions a failed entry back to pending. Used both by the
// retry scheduler (non-terminal failures become pending implicitly via
// next_retry_at) and by manual retry of terminal entries.
func (s *Store) Requeue(ctx context.Context, id uuid.UUID, nextRetryAt time.Time) error {
	query := `
		UPDATE queue_entries
		SET status = 'pending', terminal = FALSE, next_retry_at = $1, last_error = '', updated_at = NOW()
		WHERE id = $2 AND status = 'failed'
	`

	res, err := s.db.ExecContext(ctx, query, nextRetryAt, id)
	if err != nil {
		return fmt.Errorf("requeueing entry: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}

	if affected == 0 {
		return queue.ErrConflict
	}

	return nil
}

func (s *Store) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	query := `
		DELETE FROM queue_entries
		WHERE id = $1 AND status IN ('pending', 'failed')
	`

	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting queue entry: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}

	if affected == 0 {
		return queue.ErrConflict
	}

	return nil
}
