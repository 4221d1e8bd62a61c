package payload

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ahmedwadee/fbrflow/internal/invoice"
)

// HSCodeLookup verifies that an HS code exists in the authority's item
// description catalogue. Implementations must be read-only.
type HSCodeLookup interface {
	Verify(ctx context.Context, code string) (bool, error)
}

const defaultSaleType = "Goods at standard rate (default)"

type Builder struct {
	hsCodes HSCodeLookup
}

func NewBuilder(hsCodes HSCodeLookup) *Builder {
	return &Builder{hsCodes: hsCodes}
}

// Build validates the invoice and transforms it into the submission payload.
// It fails with *ValidationError naming the first missing or invalid field.
func (b *Builder) Build(ctx context.Context, inv *invoice.Invoice) (*Payload, error) {
	if err := b.validate(ctx, inv); err != nil {
		return nil, err
	}

	registrationType := "Unregistered"
	if inv.Buyer.NTNCNIC != "" {
		registrationType = "Registered"
	}

	p := &Payload{
		InvoiceType:           string(inv.Type),
		InvoiceDate:           inv.PostingDate.Format(time.DateOnly),
		SellerNTNCNIC:         inv.Seller.NTNCNIC,
		SellerBusinessName:    inv.Seller.BusinessName,
		SellerProvince:        inv.Seller.Province,
		SellerAddress:         inv.Seller.Address,
		BuyerNTNCNIC:          inv.Buyer.NTNCNIC,
		BuyerBusinessName:     inv.Buyer.BusinessName,
		BuyerProvince:         inv.Buyer.Province,
		BuyerAddress:          inv.Buyer.Address,
		BuyerRegistrationType: registrationType,
		Items:                 make([]Item, len(inv.Items)),
	}

	for i, li := range inv.Items {
		p.Items[i] = Item{
			HSCode:             li.HSCode,
			ProductDescription: li.Description,
			Rate:               formatRate(li.TaxRateBps),
			UoM:                li.UoM,
			Quantity:           li.Quantity.InexactFloat64(),
			TotalValues:        rupees(li.ValueExclST() + li.SalesTax()),
			ValueSalesExclST:   rupees(li.ValueExclST()),
			SalesTaxApplicable: rupees(li.SalesTax()),
			Discount:           rupees(li.Discount),
			SaleType:           defaultSaleType,
		}
	}

	return p, nil
}

func (b *Builder) validate(ctx context.Context, inv *invoice.Invoice) error {
	if inv.Seller.NTNCNIC == "" {
		return &ValidationError{Field: "seller.ntnCnic", Reason: "seller NTN/CNIC is required"}
	}

	if inv.Seller.Province == "" {
		return &ValidationError{Field: "seller.province", Reason: "seller province is required"}
	}

	if inv.Buyer.BusinessName == "" {
		return &ValidationError{Field: "buyer.businessName", Reason: "buyer business name is required"}
	}

	if inv.Buyer.Province == "" {
		return &ValidationError{Field: "buyer.province", Reason: "buyer province is required"}
	}

	if inv.PostingDate.IsZero() {
		return &ValidationError{Field: "postingDate", Reason: "posting date is required"}
	}

	if len(inv.Items) == 0 {
		return &ValidationError{Field: "items", Reason: "at least one item is required"}
	}

	for i, li := range inv.Items {
		if li.HSCode == "" {
			return &ValidationError{
				Field:  fmt.Sprintf("items[%d].hsCode", i),
				Reason: "HS code is required",
			}
		}

		known, err := b.hsCodes.Verify(ctx, li.HSCode)
		if err != nil {
			return fmt.Errorf("verifying HS code %q: %w", li.HSCode, err)
		}

		if !known {
			return &ValidationError{
				Field:  fmt.Sprintf("items[%d].hsCode", i),
				Reason: fmt.Sprintf("unknown HS code %q", li.HSCode),
			}
		}

		if li.TaxRateBps <= 0 {
			return &ValidationError{
				Field:  fmt.Sprintf("items[%d].taxRate", i),
				Reason: "tax rate is required",
			}
		}

		if !li.Quantity.IsPositive() {
			return &ValidationError{
				Field:  fmt.Sprintf("items[%d].quantity", i),
				Reason: "quantity must be positive",
			}
		}
	}

	return nil
}

// formatRate renders basis points as the authority's percentage string:
// 1800 -> "18%", 1650 -> "16.5%".
func formatRate(bps int64) string {
	return decimal.NewFromInt(bps).Div(decimal.NewFromInt(100)).String() + "%"
}

func rupees(paisa int64) float64 {
	return decimal.NewFromInt(paisa).Div(decimal.NewFromInt(100)).InexactFloat64()
}
