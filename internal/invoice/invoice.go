package invoice

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("invoice not found")

	// ErrImmutable is returned when modifying an invoice that was already
	// accepted by the authority.
	ErrImmutable = errors.New("invoice is immutable after successful submission")
)

// Type is the authority-facing document type.
type Type string

const (
	TypeSaleInvoice Type = "Sale Invoice"
	TypeDebitNote   Type = "Debit Note"
)

// Status represents the lifecycle state of an invoice.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusQueued    Status = "queued"
	StatusSubmitted Status = "submitted"
	StatusFailed    Status = "failed"
)

// Party holds the tax identity of a buyer or seller.
type Party struct {
	NTNCNIC      string
	BusinessName string
	Province     string
	Address      string
}

// LineItem is a single invoice row. Monetary values are in paisa,
// tax rates in basis points (1800 = 18%).
type LineItem struct {
	HSCode      string
	Description string
	UoM         string
	Quantity    decimal.Decimal
	UnitValue   int64
	TaxRateBps  int64
	Discount    int64
}

// ValueExclST is the line value excluding sales tax, in paisa.
func (li LineItem) ValueExclST() int64 {
	return li.Quantity.Mul(decimal.NewFromInt(li.UnitValue)).Round(0).IntPart()
}

// SalesTax is the sales tax applicable on the line, in paisa.
func (li LineItem) SalesTax() int64 {
	return decimal.NewFromInt(li.ValueExclST()).
		Mul(decimal.NewFromInt(li.TaxRateBps)).
		Div(decimal.NewFromInt(10000)).
		Round(0).IntPart()
}

// Invoice is a locally-held sales invoice pending or past submission.
type Invoice struct {
	ID            uuid.UUID
	InvoiceNumber string
	Type          Type
	PostingDate   time.Time
	Seller        Party
	Buyer         Party
	Items         []LineItem

	// Totals in paisa, recomputed from items on every write.
	TotalExclST int64
	SalesTax    int64
	GrandTotal  int64

	Status Status

	// Authority result fields, set after submission.
	FBRInvoiceNumber string
	FBRStatus        string
	FBRTimestamp     *time.Time

	CreatedAt time.Time
	UpdatedAt *time.Time
}

// Mutable reports whether the invoice may still be edited or deleted.
func (inv *Invoice) Mutable() bool {
	return inv.Status == StatusDraft || inv.Status == StatusFailed
}

// ComputeTotals recalculates the invoice totals from its line items.
func (inv *Invoice) ComputeTotals() {
	var totalExcl, tax, discount int64

	for _, li := range inv.Items {
		totalExcl += li.ValueExclST()
		tax += li.SalesTax()
		discount += li.Discount
	}

	inv.TotalExclST = totalExcl
	inv.SalesTax = tax
	inv.GrandTotal = totalExcl + tax - discount
}
