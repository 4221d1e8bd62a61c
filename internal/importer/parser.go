package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	enc "github.com/ahmedwadee/fbrflow/internal/encoding"
	"github.com/ahmedwadee/fbrflow/internal/invoice"
)

// Parser reads semicolon-delimited CSV exports and produces invoice params.
// It locates the header row by matching column names against requiredCols,
// so leading title or report-metadata rows are skipped.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// colIndex maps normalized column names to their index in the row.
type colIndex map[string]int

// idx returns the column position or -1 when the column is absent, so
// optional columns read as empty cells.
func (c colIndex) idx(name string) int {
	if i, ok := c[name]; ok {
		return i
	}

	return -1
}

func (p *Parser) Parse(r io.Reader) (*Result, error) {
	utf8r, err := enc.NewUTF8Reader(r)
	if err != nil {
		return nil, fmt.Errorf("detecting encoding: %w", err)
	}

	reader := csv.NewReader(utf8r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}

	cols, headerIdx, ok := findHeader(rows)
	if !ok {
		return nil, fmt.Errorf("no header row found: expected columns %s", strings.Join(requiredCols, ", "))
	}

	return parseRows(cols, rows[headerIdx+1:], headerIdx+1)
}

// findHeader scans rows for one containing every required column.
func findHeader(rows [][]string) (colIndex, int, bool) {
	for rowIdx, row := range rows {
		cols := make(colIndex)

		for i, cell := range row {
			name := strings.ToLower(strings.TrimSpace(cell))
			if name != "" {
				cols[name] = i
			}
		}

		if matchesRequired(cols) {
			return cols, rowIdx, true
		}
	}

	return nil, 0, false
}

func matchesRequired(cols colIndex) bool {
	for _, name := range requiredCols {
		if _, ok := cols[name]; !ok {
			return false
		}
	}

	return true
}

// parseRows extracts invoices from data rows. Consecutive rows sharing an
// invoice number fold into one invoice with multiple line items; a row with
// a blank invoice number extends the previous invoice.
func parseRows(cols colIndex, rows [][]string, headerRowNum int) (*Result, error) {
	res := &Result{}

	var current *invoice.CreateParams

	currentRow := 0

	flush := func() {
		if current == nil {
			return
		}

		if len(current.Items) == 0 {
			res.Errors = append(res.Errors, &RowError{Row: currentRow, Reason: "invoice has no valid line items"})
		} else {
			res.Params = append(res.Params, *current)
		}

		current = nil
	}

	for i, row := range rows {
		rowNum := headerRowNum + i + 1 // 1-based, past the header

		if isBlank(row) {
			continue
		}

		number := cellValue(row, cols.idx(colInvoiceNumber))

		if number == "" && current == nil {
			res.Errors = append(res.Errors, &RowError{Row: rowNum, Reason: "missing invoice number"})
			continue
		}

		if number != "" && (current == nil || current.InvoiceNumber != number) {
			flush()

			params, rerr := parseInvoiceRow(cols, row, rowNum, number)
			if rerr != nil {
				res.Errors = append(res.Errors, rerr)
				continue
			}

			current = params
			currentRow = rowNum
		}

		item, rerr := parseItemRow(cols, row, rowNum)
		if rerr != nil {
			res.Errors = append(res.Errors, rerr)
			continue
		}

		current.Items = append(current.Items, *item)
	}

	flush()

	return res, nil
}

// parseInvoiceRow reads the invoice-level fields from the first row of a group.
func parseInvoiceRow(cols colIndex, row []string, rowNum int, number string) (*invoice.CreateParams, *RowError) {
	date, err := parseDate(cellValue(row, cols.idx(colInvoiceDate)))
	if err != nil {
		return nil, &RowError{Row: rowNum, Reason: fmt.Sprintf("invoice date: %v", err)}
	}

	buyerName := cellValue(row, cols.idx(colBuyerName))
	if buyerName == "" {
		return nil, &RowError{Row: rowNum, Reason: "missing buyer name"}
	}

	return &invoice.CreateParams{
		InvoiceNumber: number,
		Type:          invoice.TypeSaleInvoice,
		PostingDate:   date,
		Buyer: invoice.Party{
			BusinessName: buyerName,
			NTNCNIC:      cellValue(row, cols.idx(colBuyerNTN)),
			Province:     cellValue(row, cols.idx(colBuyerProvince)),
		},
	}, nil
}

func parseItemRow(cols colIndex, row []string, rowNum int) (*invoice.ItemParams, *RowError) {
	hsCode := cellValue(row, cols.idx(colHSCode))
	if hsCode == "" {
		return nil, &RowError{Row: rowNum, Reason: "missing hs code"}
	}

	qty, err := parseDecimal(cellValue(row, cols.idx(colQuantity)))
	if err != nil {
		return nil, &RowError{Row: rowNum, Reason: fmt.Sprintf("quantity: %v", err)}
	}

	if qty.Sign() <= 0 {
		return nil, &RowError{Row: rowNum, Reason: "quantity must be positive"}
	}

	unitValue, err := parseMoney(cellValue(row, cols.idx(colUnitValue)))
	if err != nil {
		return nil, &RowError{Row: rowNum, Reason: fmt.Sprintf("unit value: %v", err)}
	}

	rateBps, err := parseTaxRate(cellValue(row, cols.idx(colTaxRate)))
	if err != nil {
		return nil, &RowError{Row: rowNum, Reason: fmt.Sprintf("tax rate: %v", err)}
	}

	return &invoice.ItemParams{
		HSCode:      hsCode,
		Description: cellValue(row, cols.idx(colDescription)),
		UoM:         cellValue(row, cols.idx(colUoM)),
		Quantity:    qty,
		UnitValue:   unitValue,
		TaxRateBps:  rateBps,
	}, nil
}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "02-01-2006"}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing")
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// parseMoney parses an amount like "1,234.56" into paisa.
func parseMoney(s string) (int64, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return 0, err
	}

	if d.Sign() < 0 {
		return 0, fmt.Errorf("negative amount %q", s)
	}

	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart(), nil
}

// parseTaxRate parses "18%", "18" or "16.5%" into basis points.
func parseTaxRate(s string) (int64, error) {
	d, err := parseDecimal(strings.TrimSuffix(s, "%"))
	if err != nil {
		return 0, err
	}

	if d.Sign() < 0 {
		return 0, fmt.Errorf("negative rate %q", s)
	}

	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart(), nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("missing")
	}

	// Thousand separators show up in Excel exports.
	return decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
}

// cellValue safely gets a trimmed cell value from a row.
func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}

	return true
}
