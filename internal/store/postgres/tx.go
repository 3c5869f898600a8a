package postgres

import (
	"context"

	"github.com/dvloznov/finance-reconciler/internal/domain"
	"github.com/dvloznov/finance-reconciler/internal/store"
)

// pgTx is the store.Tx view of one open pgx transaction.
type pgTx struct {
	q querier
}

func (t *pgTx) ResolveClient(ctx context.Context, name string) (*domain.Client, error) {
	return resolveClient(ctx, t.q, name)
}

func (t *pgTx) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	return insertInvoice(ctx, t.q, inv)
}

func (t *pgTx) CreateInvoiceItems(ctx context.Context, invoiceID int64, items []*domain.InvoiceItem) error {
	return insertInvoiceItems(ctx, t.q, invoiceID, items)
}

func (t *pgTx) CreateBankStatement(ctx context.Context, stmt *domain.BankStatement) error {
	return insertStatement(ctx, t.q, stmt)
}

func (t *pgTx) CreateBankTransactions(ctx context.Context, statementID int64, txns []*domain.BankTransaction) error {
	return insertTransactions(ctx, t.q, statementID, txns)
}

func (t *pgTx) TransitionDocument(ctx context.Context, id int64, from, to domain.ProcessingStatus, errMsg string) error {
	return transitionDocument(ctx, t.q, id, from, to, errMsg)
}

func (t *pgTx) LockBankTransaction(ctx context.Context, id int64) (*domain.BankTransaction, error) {
	bt, err := scanTransaction(t.q.QueryRow(ctx, `SELECT `+transactionColumns+` FROM bank_transactions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFoundOr("lock bank transaction", "bank transaction", id, err)
	}
	return bt, nil
}

func (t *pgTx) LockInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	inv, err := scanInvoice(t.q.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFoundOr("lock invoice", "invoice", id, err)
	}
	return inv, nil
}

func (t *pgTx) SetTransactionReconciliation(ctx context.Context, txnID, invoiceID int64) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE bank_transactions
		SET reconciled = true, reconciled_with_invoice_id = $2
		WHERE id = $1
	`, txnID, invoiceID)
	if err != nil {
		return persistenceErr("reconcile bank transaction", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFound("bank transaction", txnID)
	}
	return nil
}

func (t *pgTx) SetInvoicePayment(ctx context.Context, invoiceID int64, status domain.InvoiceStatus, payment domain.PaymentStatus) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE invoices
		SET status = $2, payment_status = $3, updated_at = now()
		WHERE id = $1
	`, invoiceID, string(status), nullString(string(payment)))
	if err != nil {
		return persistenceErr("update invoice payment", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFound("invoice", invoiceID)
	}
	return nil
}

func (t *pgTx) CountReconciledAgainst(ctx context.Context, invoiceID, excludeTxnID int64) (int, error) {
	var n int
	err := t.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM bank_transactions
		WHERE reconciled_with_invoice_id = $1 AND id <> $2
	`, invoiceID, excludeTxnID).Scan(&n)
	if err != nil {
		return 0, persistenceErr("count reconciled transactions", err)
	}
	return n, nil
}

var _ store.Tx = (*pgTx)(nil)
