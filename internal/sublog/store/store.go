package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ahmedwadee/fbrflow/internal/sublog"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, rec *sublog.Record) error {
	query := `
		INSERT INTO submission_logs (invoice_id, entry_id, fbr_invoice_number, outcome, detail, request_payload, response_body, duration_ms, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query,
		rec.InvoiceID, rec.EntryID, rec.FBRInvoiceNumber, rec.Outcome, rec.Detail,
		rec.RequestPayload, rec.ResponseBody, rec.Duration.Milliseconds(), rec.SubmittedAt,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("appending submission log: %w", err)
	}

	return nil
}

const selectLogColumns = `
	l.id, l.invoice_id, l.entry_id, l.fbr_invoice_number, l.outcome, l.detail,
	l.request_payload, l.response_body, l.duration_ms, l.submitted_at
`

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*sublog.Record, error) {
	var rec sublog.Record

	var outcomeStr string

	var durationMs int64

	if err := s.Scan(
		&rec.ID, &rec.InvoiceID, &rec.EntryID, &rec.FBRInvoiceNumber, &outcomeStr, &rec.Detail,
		&rec.RequestPayload, &rec.ResponseBody, &durationMs, &rec.SubmittedAt,
	); err != nil {
		return nil, err
	}

	rec.Outcome = sublog.Outcome(outcomeStr)
	rec.Duration = time.Duration(durationMs) * time.Millisecond

	return &rec, nil
}

func (s *Store) Recent(ctx context.Context, limit int) ([]*sublog.Record, error) {
	query := `SELECT ` + selectLogColumns + `
		FROM submission_logs l
		ORDER BY l.submitted_at DESC
		LIMIT $1`

	return s.queryRecords(ctx, query, limit)
}

func (s *Store) ByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*sublog.Record, error) {
	query := `SELECT ` + selectLogColumns + `
		FROM submission_logs l
		WHERE l.invoice_id = $1
		ORDER BY l.submitted_at DESC`

	return s.queryRecords(ctx, query, invoiceID)
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]*sublog.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing submission logs: %w", err)
	}
	defer rows.Close()

	var recs []*sublog.Record

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning submission log: %w", err)
		}

		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating log rows: %w", err)
	}

	return recs, nil
}
