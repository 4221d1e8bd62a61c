package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ahmedwadee/fbrflow/internal/invoice"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const selectInvoiceColumns = `
	i.id, i.invoice_number, i.type, i.posting_date,
	i.seller_ntn_cnic, i.seller_name, i.seller_province, i.seller_address,
	i.buyer_ntn_cnic, i.buyer_name, i.buyer_province, i.buyer_address,
	i.total_excl_st, i.sales_tax, i.grand_total, i.status,
	i.fbr_invoice_number, i.fbr_status, i.fbr_timestamp,
	i.created_at, i.updated_at
`

// scanInvoice reads an invoice row without its items.
// Expected column order matches selectInvoiceColumns.
func scanInvoice(s scanner) (*invoice.Invoice, error) {
	var inv invoice.Invoice

	var typeStr, statusStr string

	var fbrNumber, fbrStatus sql.NullString

	if err := s.Scan(
		&inv.ID, &inv.InvoiceNumber, &typeStr, &inv.PostingDate,
		&inv.Seller.NTNCNIC, &inv.Seller.BusinessName, &inv.Seller.Province, &inv.Seller.Address,
		&inv.Buyer.NTNCNIC, &inv.Buyer.BusinessName, &inv.Buyer.Province, &inv.Buyer.Address,
		&inv.TotalExclST, &inv.SalesTax, &inv.GrandTotal, &statusStr,
		&fbrNumber, &fbrStatus, &inv.FBRTimestamp,
		&inv.CreatedAt, &inv.UpdatedAt,
	); err != nil {
		return nil, err
	}

	inv.Type = invoice.Type(typeStr)
	inv.Status = invoice.Status(statusStr)
	inv.FBRInvoiceNumber = fbrNumber.String
	inv.FBRStatus = fbrStatus.String

	return &inv, nil
}

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertInvoice(ctx, tx, inv); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (s *Store) CreateInvoices(ctx context.Context, invs []*invoice.Invoice) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, inv := range invs {
		if err := insertInvoice(ctx, tx, inv); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func insertInvoice(ctx context.Context, tx *sql.Tx, inv *invoice.Invoice) error {
	query := `
		INSERT INTO invoices (
			invoice_number, type, posting_date,
			seller_ntn_cnic, seller_name, seller_province, seller_address,
			buyer_ntn_cnic, buyer_name, buyer_province, buyer_address,
			total_excl_st, sales_tax, grand_total, status,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := tx.QueryRowContext(ctx, query,
		inv.InvoiceNumber, inv.Type, inv.PostingDate,
		inv.Seller.NTNCNIC, inv.Seller.BusinessName, inv.Seller.Province, inv.Seller.Address,
		inv.Buyer.NTNCNIC, inv.Buyer.BusinessName, inv.Buyer.Province, inv.Buyer.Address,
		inv.TotalExclST, inv.SalesTax, inv.GrandTotal, inv.Status,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating invoice: %w", err)
	}

	if err := insertItems(ctx, tx, inv.ID, inv.Items); err != nil {
		return err
	}

	return nil
}

func insertItems(ctx context.Context, tx *sql.Tx, invoiceID uuid.UUID, items []invoice.LineItem) error {
	query := `
		INSERT INTO invoice_items (invoice_id, position, hs_code, description, uom, quantity, unit_value, tax_rate_bps, discount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for i, li := range items {
		_, err := tx.ExecContext(ctx, query,
			invoiceID, i, li.HSCode, li.Description, li.UoM,
			li.Quantity, li.UnitValue, li.TaxRateBps, li.Discount,
		)
		if err != nil {
			return fmt.Errorf("creating invoice item: %w", err)
		}
	}

	return nil
}

func (s *Store) GetInvoice(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	query := `SELECT ` + selectInvoiceColumns + `
		FROM invoices i
		WHERE i.id = $1 AND i.deleted_at IS NULL`

	inv, err := scanInvoice(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, invoice.ErrNotFound
		}

		return nil, fmt.Errorf("getting invoice: %w", err)
	}

	items, err := s.loadItems(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}

	inv.Items = items[id]

	return inv, nil
}

func (s *Store) ListInvoices(ctx context.Context, filter invoice.ListFilter) ([]*invoice.Invoice, error) {
	query := `SELECT ` + selectInvoiceColumns + `
		FROM invoices i
		WHERE i.deleted_at IS NULL`

	var args []any

	argIdx := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND i.status = $%d", argIdx)

		args = append(args, *filter.Status)
		argIdx++
	}

	if filter.StartDate != nil {
		query += fmt.Sprintf(" AND i.posting_date >= $%d", argIdx)

		args = append(args, *filter.StartDate)
		argIdx++
	}

	if filter.EndDate != nil {
		query += fmt.Sprintf(" AND i.posting_date <= $%d", argIdx)

		args = append(args, *filter.EndDate)
		argIdx++
	}

	query += " ORDER BY i.posting_date ASC, i.created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	defer rows.Close()

	var invs []*invoice.Invoice

	var ids []uuid.UUID

	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning invoice: %w", err)
		}

		invs = append(invs, inv)
		ids = append(ids, inv.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invoice rows: %w", err)
	}

	if len(invs) == 0 {
		return nil, nil
	}

	itemsByInvoice, err := s.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, inv := range invs {
		inv.Items = itemsByInvoice[inv.ID]
	}

	return invs, nil
}

func (s *Store) loadItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]invoice.LineItem, error) {
	query := `
		SELECT invoice_id, hs_code, description, uom, quantity, unit_value, tax_rate_bps, discount
		FROM invoice_items
		WHERE invoice_id = ANY($1)
		ORDER BY invoice_id, position
	`

	rows, err := s.db.QueryContext(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("loading invoice items: %w", err)
	}
	defer rows.Close()

	items := make(map[uuid.UUID][]invoice.LineItem)

	for rows.Next() {
		var invoiceID uuid.UUID

		var li invoice.LineItem

		if err := rows.Scan(
			&invoiceID, &li.HSCode, &li.Description, &li.UoM,
			&li.Quantity, &li.UnitValue, &li.TaxRateBps, &li.Discount,
		); err != nil {
			return nil, fmt.Errorf("scanning invoice item: %w", err)
		}

		items[invoiceID] = append(items[invoiceID], li)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating item rows: %w", err)
	}

	return items, nil
}

func (s *Store) UpdateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE invoices
		SET invoice_number = $1, type = $2, posting_date = $3,
			seller_ntn_cnic = $4, seller_name = $5, seller_province = $6, seller_address = $7,
			buyer_ntn_cnic = $8, buyer_name = $9, buyer_province = $10, buyer_address = $11,
			total_excl_st = $12, sales_tax = $13, grand_total = $14,
			updated_at = NOW()
		WHERE id = $15 AND deleted_at IS NULL
	`

	if _, err := tx.ExecContext(ctx, query,
		inv.InvoiceNumber, inv.Type, inv.PostingDate,
		inv.Seller.NTNCNIC, inv.Seller.BusinessName, inv.Seller.Province, inv.Seller.Address,
		inv.Buyer.NTNCNIC, inv.Buyer.BusinessName, inv.Buyer.Province, inv.Buyer.Address,
		inv.TotalExclST, inv.SalesTax, inv.GrandTotal,
		inv.ID,
	); err != nil {
		return fmt.Errorf("updating invoice: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, inv.ID); err != nil {
		return fmt.Errorf("clearing invoice items: %w", err)
	}

	if err := insertItems(ctx, tx, inv.ID, inv.Items); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, status invoice.Status) error {
	query := `
		UPDATE invoices
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL
	`

	_, err := s.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}

	return nil
}

func (s *Store) SetSubmissionResult(ctx context.Context, id uuid.UUID, fbrInvoiceNumber, fbrStatus string, at time.Time) error {
	query := `
		UPDATE invoices
		SET fbr_invoice_number = $1, fbr_status = $2, fbr_timestamp = $3, updated_at = NOW()
		WHERE id = $4 AND deleted_at IS NULL
	`

	_, err := s.db.ExecContext(ctx, query, fbrInvoiceNumber, fbrStatus, at, id)
	if err != nil {
		return fmt.Errorf("recording submission result: %w", err)
	}

	return nil
}

func (s *Store) DeleteInvoice(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE invoices
		SET deleted_at = NOW()
		WHERE id = $1
	`

	_, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting invoice: %w", err)
	}

	return nil
}
