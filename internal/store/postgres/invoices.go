package postgres

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/finance-reconciler/internal/domain"
)

const invoiceColumns = `id, document_id, client_id, invoice_number,
	to_char(issue_date, 'YYYY-MM-DD'), to_char(due_date, 'YYYY-MM-DD'),
	total_amount::text, tax_amount::text, currency, status, COALESCE(payment_status, ''),
	notes, metadata, created_at, updated_at`

func scanInvoice(row scanner) (*domain.Invoice, error) {
	var (
		inv             domain.Invoice
		issue, due      *string
		total, tax      *string
		status, payment string
	)
	if err := row.Scan(&inv.ID, &inv.DocumentID, &inv.ClientID, &inv.InvoiceNumber,
		&issue, &due, &total, &tax, &inv.Currency, &status, &payment,
		&inv.Notes, &inv.Metadata, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return nil, err
	}
	inv.Status = domain.InvoiceStatus(status)
	inv.PaymentStatus = domain.PaymentStatus(payment)

	var err error
	if inv.IssueDate, err = parseDate(issue); err != nil {
		return nil, err
	}
	if inv.DueDate, err = parseDate(due); err != nil {
		return nil, err
	}
	if inv.TotalAmount, err = parseNullDecimal(total); err != nil {
		return nil, err
	}
	if inv.TaxAmount, err = parseNullDecimal(tax); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *Repository) GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr("get invoice", "invoice", id, err)
	}
	return inv, nil
}

func (r *Repository) ListInvoices(ctx context.Context, f domain.InvoiceFilter) ([]*domain.Invoice, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.ClientID != nil {
		add("client_id = $%d", *f.ClientID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.StartDate != nil {
		add("issue_date >= $%d::text::date", f.StartDate.String())
	}
	if f.EndDate != nil {
		add("issue_date <= $%d::text::date", f.EndDate.String())
	}
	if f.Unpaid {
		where = append(where, "COALESCE(payment_status, 'unpaid') = 'unpaid'")
	}

	query := `SELECT ` + invoiceColumns + ` FROM invoices`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY issue_date DESC NULLS LAST, id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, persistenceErr("list invoices", err)
	}
	defer rows.Close()

	out := make([]*domain.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, persistenceErr("scan invoice", err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("list invoices", err)
	}
	return out, nil
}

func (r *Repository) ListInvoiceItems(ctx context.Context, invoiceID int64) ([]*domain.InvoiceItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, line_no, description, quantity::text, unit_price::text, total_price::text, created_at
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY line_no, id
	`, invoiceID)
	if err != nil {
		return nil, persistenceErr("list invoice items", err)
	}
	defer rows.Close()

	out := make([]*domain.InvoiceItem, 0)
	for rows.Next() {
		var (
			it                 domain.InvoiceItem
			qty, unit, totalPr string
		)
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.Position, &it.Description, &qty, &unit, &totalPr, &it.CreatedAt); err != nil {
			return nil, persistenceErr("scan invoice item", err)
		}
		if it.Quantity, err = parseDecimal(qty); err != nil {
			return nil, persistenceErr("scan invoice item", err)
		}
		if it.UnitPrice, err = parseDecimal(unit); err != nil {
			return nil, persistenceErr("scan invoice item", err)
		}
		if it.TotalPrice, err = parseDecimal(totalPr); err != nil {
			return nil, persistenceErr("scan invoice item", err)
		}
		out = append(out, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("list invoice items", err)
	}
	return out, nil
}

func (r *Repository) UpdateInvoice(ctx context.Context, id int64, patch domain.InvoicePatch) (*domain.Invoice, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	var out *domain.Invoice
	err := r.withTx(ctx, func(q querier) error {
		inv, err := scanInvoice(q.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return notFoundOr("update invoice", "invoice", id, err)
		}
		patch.Apply(inv)
		err = q.QueryRow(ctx, `
			UPDATE invoices
			SET status = $2, payment_status = $3, notes = $4, due_date = $5::text::date, updated_at = now()
			WHERE id = $1
			RETURNING updated_at
		`, id, string(inv.Status), nullString(string(inv.PaymentStatus)), inv.Notes, dateArg(inv.DueDate)).Scan(&inv.UpdatedAt)
		if err != nil {
			return persistenceErr("update invoice", err)
		}
		out = inv
		return nil
	})
	return out, err
}

func (r *Repository) MarkOverdueInvoices(ctx context.Context, asOf civil.Date) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invoices
		SET status = 'overdue', updated_at = now()
		WHERE status = 'unpaid' AND due_date < $1::text::date
	`, asOf.String())
	if err != nil {
		return 0, persistenceErr("mark overdue invoices", err)
	}
	return int(tag.RowsAffected()), nil
}

func insertInvoice(ctx context.Context, q querier, inv *domain.Invoice) error {
	if err := inv.Validate(); err != nil {
		return err
	}
	if inv.Currency == "" {
		inv.Currency = domain.DefaultCurrency
	}
	if inv.Status == "" {
		inv.Status = domain.InvoiceUnpaid
	}
	inv.Metadata = metadataArg(inv.Metadata)

	err := q.QueryRow(ctx, `
		INSERT INTO invoices (
			document_id, client_id, invoice_number, issue_date, due_date,
			total_amount, tax_amount, currency, status, payment_status, notes, metadata
		)
		VALUES ($1, $2, $3, $4::text::date, $5::text::date, $6::text::numeric, $7::text::numeric, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`,
		inv.DocumentID, inv.ClientID, inv.InvoiceNumber, dateArg(inv.IssueDate), dateArg(inv.DueDate),
		nullDecimalArg(inv.TotalAmount), nullDecimalArg(inv.TaxAmount), inv.Currency,
		string(inv.Status), nullString(string(inv.PaymentStatus)), inv.Notes, inv.Metadata,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return persistenceErr("insert invoice", err)
	}
	return nil
}

func insertInvoiceItems(ctx context.Context, q querier, invoiceID int64, items []*domain.InvoiceItem) error {
	for i, it := range items {
		if err := it.Validate(); err != nil {
			return err
		}
		it.InvoiceID = invoiceID
		it.Position = i + 1
		err := q.QueryRow(ctx, `
			INSERT INTO invoice_items (invoice_id, line_no, description, quantity, unit_price, total_price)
			VALUES ($1, $2, $3, $4::text::numeric, $5::text::numeric, $6::text::numeric)
			RETURNING id, created_at
		`, invoiceID, it.Position, it.Description,
			decimalArg(it.Quantity), decimalArg(it.UnitPrice), decimalArg(it.TotalPrice),
		).Scan(&it.ID, &it.CreatedAt)
		if err != nil {
			return persistenceErr("insert invoice item", err)
		}
	}
	return nil
}
