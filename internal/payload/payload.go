// Package payload turns locally-held invoices into the authority's wire
// format. Building is a pure transformation; the only collaborator is a
// read-only HS-code lookup.
package payload

import "fmt"

// Payload is the authority's invoice submission body. Field names are
// dictated by the wire format.
type Payload struct {
	InvoiceType           string `json:"invoiceType"`
	InvoiceDate           string `json:"invoiceDate"`
	SellerNTNCNIC         string `json:"sellerNTNCNIC"`
	SellerBusinessName    string `json:"sellerBusinessName"`
	SellerProvince        string `json:"sellerProvince"`
	SellerAddress         string `json:"sellerAddress"`
	BuyerNTNCNIC          string `json:"buyerNTNCNIC"`
	BuyerBusinessName     string `json:"buyerBusinessName"`
	BuyerProvince         string `json:"buyerProvince"`
	BuyerAddress          string `json:"buyerAddress"`
	BuyerRegistrationType string `json:"buyerRegistrationType"`
	InvoiceRefNo          string `json:"invoiceRefNo"`
	Items                 []Item `json:"items"`
}

// Item is a payload line. Monetary values are rupees with two decimals;
// Rate is a percentage string like "18%".
type Item struct {
	HSCode             string  `json:"hsCode"`
	ProductDescription string  `json:"productDescription"`
	Rate               string  `json:"rate"`
	UoM                string  `json:"uoM"`
	Quantity           float64 `json:"quantity"`
	TotalValues        float64 `json:"totalValues"`
	ValueSalesExclST   float64 `json:"valueSalesExcludingST"`
	FixedNotifiedValue float64 `json:"fixedNotifiedValueOrRetailPrice"`
	SalesTaxApplicable float64 `json:"salesTaxApplicable"`
	SalesTaxWithheld   float64 `json:"salesTaxWithheldAtSource"`
	ExtraTax           float64 `json:"extraTax"`
	FurtherTax         float64 `json:"furtherTax"`
	SROScheduleNo      string  `json:"sroScheduleNo"`
	FEDPayable         float64 `json:"fedPayable"`
	Discount           float64 `json:"discount"`
	SaleType           string  `json:"saleType"`
	SROItemSerialNo    string  `json:"sroItemSerialNo"`
}

// ValidationError names the invoice field that blocks submission. These are
// local, user-fixable and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid invoice: %s: %s", e.Field, e.Reason)
}
