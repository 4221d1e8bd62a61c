package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=invoice
type Repository interface {
	CreateInvoice(ctx context.Context, inv *Invoice) error
	CreateInvoices(ctx context.Context, invs []*Invoice) error
	GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)
	ListInvoices(ctx context.Context, filter ListFilter) ([]*Invoice, error)
	UpdateInvoice(ctx context.Context, inv *Invoice) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	SetSubmissionResult(ctx context.Context, id uuid.UUID, fbrInvoiceNumber, fbrStatus string, at time.Time) error
	DeleteInvoice(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type ItemParams struct {
	HSCode      string
	Description string
	UoM         string
	Quantity    decimal.Decimal
	UnitValue   int64
	TaxRateBps  int64
	Discount    int64
}

type CreateParams struct {
	InvoiceNumber string
	Type          Type
	PostingDate   time.Time
	Seller        Party
	Buyer         Party
	Items         []ItemParams
}

type ListFilter struct {
	Status    *Status
	StartDate *time.Time
	EndDate   *time.Time
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*Invoice, error) {
	inv := paramsToInvoice(params)

	if err := s.repo.CreateInvoice(ctx, inv); err != nil {
		return nil, err
	}

	return inv, nil
}

// CreateBatch persists a set of draft invoices in one shot, used by the
// CSV importer.
func (s *Service) CreateBatch(ctx context.Context, params []CreateParams) ([]*Invoice, error) {
	if len(params) == 0 {
		return nil, nil
	}

	invs := make([]*Invoice, len(params))
	for i, p := range params {
		invs[i] = paramsToInvoice(p)
	}

	if err := s.repo.CreateInvoices(ctx, invs); err != nil {
		return nil, fmt.Errorf("creating invoices: %w", err)
	}

	return invs, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Invoice, error) {
	return s.repo.ListInvoices(ctx, filter)
}

type UpdateParams struct {
	InvoiceNumber *string
	Type          *Type
	PostingDate   *time.Time
	Seller        *Party
	Buyer         *Party
	Items         []ItemParams
}

// Update applies changes to a draft or failed invoice and recomputes its
// totals. Submitted invoices are immutable.
func (s *Service) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	if !inv.Mutable() {
		return nil, ErrImmutable
	}

	if params.InvoiceNumber != nil {
		inv.InvoiceNumber = *params.InvoiceNumber
	}

	if params.Type != nil {
		inv.Type = *params.Type
	}

	if params.PostingDate != nil {
		inv.PostingDate = *params.PostingDate
	}

	if params.Seller != nil {
		inv.Seller = *params.Seller
	}

	if params.Buyer != nil {
		inv.Buyer = *params.Buyer
	}

	if params.Items != nil {
		inv.Items = itemsFromParams(params.Items)
	}

	inv.ComputeTotals()

	if err := s.repo.UpdateInvoice(ctx, inv); err != nil {
		return nil, err
	}

	return inv, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return err
	}

	if !inv.Mutable() {
		return ErrImmutable
	}

	return s.repo.DeleteInvoice(ctx, id)
}

// MarkQueued flags the invoice as waiting for submission.
func (s *Service) MarkQueued(ctx context.Context, id uuid.UUID) error {
	return s.repo.UpdateStatus(ctx, id, StatusQueued)
}

// MarkSubmitted records a successful authority submission. The invoice
// becomes immutable from this point on.
func (s *Service) MarkSubmitted(ctx context.Context, id uuid.UUID, fbrInvoiceNumber, fbrStatus string, at time.Time) error {
	if err := s.repo.SetSubmissionResult(ctx, id, fbrInvoiceNumber, fbrStatus, at); err != nil {
		return fmt.Errorf("recording submission result: %w", err)
	}

	return s.repo.UpdateStatus(ctx, id, StatusSubmitted)
}

// MarkFailed flags the invoice as failed so the user can fix and resubmit it.
func (s *Service) MarkFailed(ctx context.Context, id uuid.UUID) error {
	return s.repo.UpdateStatus(ctx, id, StatusFailed)
}

func paramsToInvoice(params CreateParams) *Invoice {
	inv := &Invoice{
		InvoiceNumber: params.InvoiceNumber,
		Type:          params.Type,
		PostingDate:   params.PostingDate,
		Seller:        params.Seller,
		Buyer:         params.Buyer,
		Items:         itemsFromParams(params.Items),
		Status:        StatusDraft,
	}
	inv.ComputeTotals()

	return inv
}

func itemsFromParams(params []ItemParams) []LineItem {
	items := make([]LineItem, len(params))
	for i, p := range params {
		items[i] = LineItem{
			HSCode:      p.HSCode,
			Description: p.Description,
			UoM:         p.UoM,
			Quantity:    p.Quantity,
			UnitValue:   p.UnitValue,
			TaxRateBps:  p.TaxRateBps,
			Discount:    p.Discount,
		}
	}

	return items
}
