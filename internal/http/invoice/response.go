package invoice

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ahmedwadee/fbrflow/internal/invoice"
)

type partyDTO struct {
	NTNCNIC      string `json:"ntn_cnic,omitempty"`
	BusinessName string `json:"business_name"`
	Province     string `json:"province,omitempty"`
	Address      string `json:"address,omitempty"`
}

type lineItemDTO struct {
	HSCode      string          `json:"hs_code"`
	Description string          `json:"description,omitempty"`
	UoM         string          `json:"uom,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitValue   int64           `json:"unit_value"`
	TaxRateBps  int64           `json:"tax_rate_bps"`
	Discount    int64           `json:"discount,omitempty"`
}

type invoiceResponse struct {
	ID            uuid.UUID      `json:"id"`
	InvoiceNumber string         `json:"invoice_number"`
	Type          invoice.Type   `json:"type"`
	PostingDate   time.Time      `json:"posting_date"`
	Seller        partyDTO       `json:"seller"`
	Buyer         partyDTO       `json:"buyer"`
	Items         []lineItemDTO  `json:"items"`
	TotalExclST   int64          `json:"total_excl_st"`
	SalesTax      int64          `json:"sales_tax"`
	GrandTotal    int64          `json:"grand_total"`
	Status        invoice.Status `json:"status"`

	FBRInvoiceNumber string     `json:"fbr_invoice_number,omitempty"`
	FBRStatus        string     `json:"fbr_status,omitempty"`
	FBRTimestamp     *time.Time `json:"fbr_timestamp,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func toResponse(inv *invoice.Invoice) invoiceResponse {
	items := make([]lineItemDTO, len(inv.Items))
	for i, li := range inv.Items {
		items[i] = lineItemDTO{
			HSCode:      li.HSCode,
			Description: li.Description,
			UoM:         li.UoM,
			Quantity:    li.Quantity,
			UnitValue:   li.UnitValue,
			TaxRateBps:  li.TaxRateBps,
			Discount:    li.Discount,
		}
	}

	return invoiceResponse{
		ID:               inv.ID,
		InvoiceNumber:    inv.InvoiceNumber,
		Type:             inv.Type,
		PostingDate:      inv.PostingDate,
		Seller:           toPartyDTO(inv.Seller),
		Buyer:            toPartyDTO(inv.Buyer),
		Items:            items,
		TotalExclST:      inv.TotalExclST,
		SalesTax:         inv.SalesTax,
		GrandTotal:       inv.GrandTotal,
		Status:           inv.Status,
		FBRInvoiceNumber: inv.FBRInvoiceNumber,
		FBRStatus:        inv.FBRStatus,
		FBRTimestamp:     inv.FBRTimestamp,
		CreatedAt:        inv.CreatedAt,
		UpdatedAt:        inv.UpdatedAt,
	}
}

func toResponseList(invs []*invoice.Invoice) []invoiceResponse {
	resp := make([]invoiceResponse, len(invs))
	for i, inv := range invs {
		resp[i] = toResponse(inv)
	}

	return resp
}

func toPartyDTO(p invoice.Party) partyDTO {
	return partyDTO{
		NTNCNIC:      p.NTNCNIC,
		BusinessName: p.BusinessName,
		Province:     p.Province,
		Address:      p.Address,
	}
}

type partyRequest struct {
	NTNCNIC      string `json:"ntn_cnic"`
	BusinessName string `json:"business_name"`
	Province     string `json:"province"`
	Address      string `json:"address"`
}

func (p partyRequest) toParty() invoice.Party {
	return invoice.Party{
		NTNCNIC:      p.NTNCNIC,
		BusinessName: p.BusinessName,
		Province:     p.Province,
		Address:      p.Address,
	}
}

type lineItemRequest struct {
	HSCode      string          `json:"hs_code"`
	Description string          `json:"description"`
	UoM         string          `json:"uom"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitValue   int64           `json:"unit_value"`
	TaxRateBps  int64           `json:"tax_rate_bps"`
	Discount    int64           `json:"discount"`
}

func toItemParams(items []lineItemRequest) []invoice.ItemParams {
	params := make([]invoice.ItemParams, len(items))
	for i, it := range items {
		params[i] = invoice.ItemParams{
			HSCode:      it.HSCode,
			Description: it.Description,
			UoM:         it.UoM,
			Quantity:    it.Quantity,
			UnitValue:   it.UnitValue,
			TaxRateBps:  it.TaxRateBps,
			Discount:    it.Discount,
		}
	}

	return params
}
