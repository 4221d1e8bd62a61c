package payload_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmedwadee/fbrflow/internal/hscode"
	"github.com/ahmedwadee/fbrflow/internal/invoice"
	"github.com/ahmedwadee/fbrflow/internal/payload"
)

func validInvoice() *invoice.Invoice {
	return &invoice.Invoice{
		InvoiceNumber: "SI-2026-0001",
		Type:          invoice.TypeSaleInvoice,
		PostingDate:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Seller: invoice.Party{
			NTNCNIC:      "1234567-8",
			BusinessName: "Mehran Textiles",
			Province:     "Sindh",
			Address:      "Karachi",
		},
		Buyer: invoice.Party{
			NTNCNIC:      "8765432-1",
			BusinessName: "Indus Retail",
			Province:     "Punjab",
			Address:      "Lahore",
		},
		Items: []invoice.LineItem{
			{
				HSCode:      "5904.9000",
				Description: "Floor coverings",
				UoM:         "SQM",
				Quantity:    decimal.NewFromInt(10),
				UnitValue:   100_00,
				TaxRateBps:  1800,
			},
		},
	}
}

func testBuilder() *payload.Builder {
	return payload.NewBuilder(hscode.NewStatic("5904.9000", "0101.2100"))
}

func TestBuilder_Build(t *testing.T) {
	p, err := testBuilder().Build(context.Background(), validInvoice())
	require.NoError(t, err)

	assert.Equal(t, "Sale Invoice", p.InvoiceType)
	assert.Equal(t, "2026-03-10", p.InvoiceDate)
	assert.Equal(t, "1234567-8", p.SellerNTNCNIC)
	assert.Equal(t, "Mehran Textiles", p.SellerBusinessName)
	assert.Equal(t, "Sindh", p.SellerProvince)
	assert.Equal(t, "8765432-1", p.BuyerNTNCNIC)
	assert.Equal(t, "Registered", p.BuyerRegistrationType)

	require.Len(t, p.Items, 1)
	item := p.Items[0]
	assert.Equal(t, "5904.9000", item.HSCode)
	assert.Equal(t, "18%", item.Rate)
	assert.Equal(t, "SQM", item.UoM)
	assert.Equal(t, 10.0, item.Quantity)
	assert.Equal(t, 1000.0, item.ValueSalesExclST)
	assert.Equal(t, 180.0, item.SalesTaxApplicable)
	assert.Equal(t, 1180.0, item.TotalValues)
	assert.Equal(t, "Goods at standard rate (default)", item.SaleType)
}

func TestBuilder_Build_UnregisteredBuyer(t *testing.T) {
	inv := validInvoice()
	inv.Buyer.NTNCNIC = ""

	p, err := testBuilder().Build(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, "Unregistered", p.BuyerRegistrationType)
}

func TestBuilder_Build_FractionalRate(t *testing.T) {
	inv := validInvoice()
	inv.Items[0].TaxRateBps = 1650

	p, err := testBuilder().Build(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, "16.5%", p.Items[0].Rate)
}

func TestBuilder_Build_ValidationErrors(t *testing.T) {
	type testCase struct {
		name      string
		mutate    func(inv *invoice.Invoice)
		wantField string
	}

	tests := []testCase{
		{
			name:      "MissingSellerNTN",
			mutate:    func(inv *invoice.Invoice) { inv.Seller.NTNCNIC = "" },
			wantField: "seller.ntnCnic",
		},
		{
			name:      "MissingSellerProvince",
			mutate:    func(inv *invoice.Invoice) { inv.Seller.Province = "" },
			wantField: "seller.province",
		},
		{
			name:      "MissingBuyerName",
			mutate:    func(inv *invoice.Invoice) { inv.Buyer.BusinessName = "" },
			wantField: "buyer.businessName",
		},
		{
			name:      "MissingBuyerProvince",
			mutate:    func(inv *invoice.Invoice) { inv.Buyer.Province = "" },
			wantField: "buyer.province",
		},
		{
			name:      "MissingPostingDate",
			mutate:    func(inv *invoice.Invoice) { inv.PostingDate = time.Time{} },
			wantField: "postingDate",
		},
		{
			name:      "NoItems",
			mutate:    func(inv *invoice.Invoice) { inv.Items = nil },
			wantField: "items",
		},
		{
			name:      "MissingHSCode",
			mutate:    func(inv *invoice.Invoice) { inv.Items[0].HSCode = "" },
			wantField: "items[0].hsCode",
		},
		{
			name:      "UnknownHSCode",
			mutate:    func(inv *invoice.Invoice) { inv.Items[0].HSCode = "9999.9999" },
			wantField: "items[0].hsCode",
		},
		{
			name:      "MissingTaxRate",
			mutate:    func(inv *invoice.Invoice) { inv.Items[0].TaxRateBps = 0 },
			wantField: "items[0].taxRate",
		},
		{
			name:      "ZeroQuantity",
			mutate:    func(inv *invoice.Invoice) { inv.Items[0].Quantity = decimal.Zero },
			wantField: "items[0].quantity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := validInvoice()
			tt.mutate(inv)

			_, err := testBuilder().Build(context.Background(), inv)
			require.Error(t, err)

			var verr *payload.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestBuilder_Build_IsPure(t *testing.T) {
	inv := validInvoice()
	builder := testBuilder()

	first, err := builder.Build(context.Background(), inv)
	require.NoError(t, err)

	second, err := builder.Build(context.Background(), inv)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, validInvoice(), inv)
}
