// Package importer turns spreadsheet exports (CSV) into draft invoices.
// Files commonly arrive re-saved through Excel, so the parser tolerates
// BOMs, legacy encodings, variable column counts and footer junk.
package importer

import (
	"fmt"

	"github.com/ahmedwadee/fbrflow/internal/invoice"
)

// Expected header names. Matching is case-insensitive and ignores
// surrounding whitespace.
const (
	colInvoiceNumber = "invoice number"
	colInvoiceDate   = "invoice date"
	colBuyerName     = "buyer name"
	colBuyerNTN      = "buyer ntn"
	colBuyerProvince = "buyer province"
	colHSCode        = "hs code"
	colDescription   = "description"
	colUoM           = "uom"
	colQuantity      = "quantity"
	colUnitValue     = "unit value"
	colTaxRate       = "tax rate"
)

// requiredCols must all be present in the header row for a file to be
// recognized. The remaining columns are optional.
var requiredCols = []string{
	colInvoiceNumber, colInvoiceDate, colBuyerName,
	colHSCode, colQuantity, colUnitValue, colTaxRate,
}

// RowError reports a data problem on a specific row of the file.
// Row numbers are 1-based as a spreadsheet user would count them.
type RowError struct {
	Row    int
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// Result is the outcome of parsing one file. Rows that fail to parse do
// not abort the import; they surface in Errors so the user can fix the
// file and re-upload.
type Result struct {
	Params []invoice.CreateParams
	Errors []*RowError
}
