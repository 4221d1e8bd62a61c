// Package sublog keeps the append-only audit trail of submission attempts.
package sublog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Outcome classifies one submission attempt.
type Outcome string

const (
	OutcomeSuccess    Outcome = "success"
	OutcomeTransport  Outcome = "transport_error"
	OutcomeRejected   Outcome = "rejected"
	OutcomeValidation Outcome = "validation_error"
)

// Record is one submission attempt against the authority.
type Record struct {
	ID               int64
	InvoiceID        uuid.UUID
	EntryID          uuid.UUID
	FBRInvoiceNumber string
	Outcome          Outcome
	Detail           string
	RequestPayload   json.RawMessage
	ResponseBody     json.RawMessage
	Duration         time.Duration
	SubmittedAt      time.Time
}

//go:generate mockgen -source=sublog.go -destination=repository_mock.go -package=sublog
type Repository interface {
	Append(ctx context.Context, rec *Record) error
	Recent(ctx context.Context, limit int) ([]*Record, error)
	ByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*Record, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Append records one attempt. Failures here must not abort the submission
// flow; callers log and move on.
func (s *Service) Append(ctx context.Context, rec *Record) error {
	return s.repo.Append(ctx, rec)
}

func (s *Service) Recent(ctx context.Context, limit int) ([]*Record, error) {
	return s.repo.Recent(ctx, limit)
}

func (s *Service) ByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*Record, error) {
	return s.repo.ByInvoice(ctx, invoiceID)
}
