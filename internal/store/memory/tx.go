package memory

import (
	"context"
	"time"

	"github.com/dvloznov/finance-reconciler/internal/domain"
	"github.com/dvloznov/finance-reconciler/internal/store"
)

// txn applies writes to a private state copy owned by WithTx.
type txn struct {
	st  *state
	now func() time.Time
}

func (t *txn) ResolveClient(ctx context.Context, name string) (*domain.Client, error) {
	if c, ok := t.st.clientByName(name); ok {
		return &c, nil
	}
	c := &domain.Client{Name: name}
	if err := t.st.insertClient(c, t.now()); err != nil {
		return nil, err
	}
	return c, nil
}

func (t *txn) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	if err := inv.Validate(); err != nil {
		return err
	}
	if inv.ClientID != nil {
		if _, ok := t.st.clients[*inv.ClientID]; !ok {
			return domain.NewNotFound("client", *inv.ClientID)
		}
	}
	if inv.DocumentID != nil {
		if _, ok := t.st.documents[*inv.DocumentID]; !ok {
			return domain.NewNotFound("document", *inv.DocumentID)
		}
	}
	if inv.Currency == "" {
		inv.Currency = domain.DefaultCurrency
	}
	if inv.Status == "" {
		inv.Status = domain.InvoiceUnpaid
	}
	inv.Metadata = emptyIfNil(inv.Metadata)
	now := t.now()
	inv.ID = t.st.nextID("invoices")
	inv.CreatedAt = now
	inv.UpdatedAt = now
	t.st.invoices[inv.ID] = *inv
	return nil
}

func (t *txn) CreateInvoiceItems(ctx context.Context, invoiceID int64, items []*domain.InvoiceItem) error {
	if _, ok := t.st.invoices[invoiceID]; !ok {
		return domain.NewNotFound("invoice", invoiceID)
	}
	now := t.now()
	for i, it := range items {
		if err := it.Validate(); err != nil {
			return err
		}
		it.ID = t.st.nextID("invoice_items")
		it.InvoiceID = invoiceID
		it.Position = i + 1
		it.CreatedAt = now
		t.st.items[it.ID] = *it
	}
	return nil
}

func (t *txn) CreateBankStatement(ctx context.Context, stmt *domain.BankStatement) error {
	if stmt.DocumentID != nil {
		if _, ok := t.st.documents[*stmt.DocumentID]; !ok {
			return domain.NewNotFound("document", *stmt.DocumentID)
		}
	}
	if stmt.Currency == "" {
		stmt.Currency = domain.DefaultCurrency
	}
	stmt.Metadata = emptyIfNil(stmt.Metadata)
	now := t.now()
	stmt.ID = t.st.nextID("bank_statements")
	stmt.CreatedAt = now
	stmt.UpdatedAt = now
	t.st.statements[stmt.ID] = *stmt
	return nil
}

func (t *txn) CreateBankTransactions(ctx context.Context, statementID int64, txns []*domain.BankTransaction) error {
	if _, ok := t.st.statements[statementID]; !ok {
		return domain.NewNotFound("bank statement", statementID)
	}
	now := t.now()
	for _, bt := range txns {
		bt.BankStatementID = statementID
		bt.Reconciled = false
		bt.ReconciledWithInvoiceID = nil
		if err := bt.Validate(); err != nil {
			return err
		}
		bt.Metadata = emptyIfNil(bt.Metadata)
		bt.ID = t.st.nextID("bank_transactions")
		bt.CreatedAt = now
		t.st.transactions[bt.ID] = *bt
	}
	return nil
}

func (t *txn) TransitionDocument(ctx context.Context, id int64, from, to domain.ProcessingStatus, errMsg string) error {
	return t.st.transitionDocument(id, from, to, errMsg, t.now())
}

func (t *txn) LockBankTransaction(ctx context.Context, id int64) (*domain.BankTransaction, error) {
	bt, ok := t.st.transactions[id]
	if !ok {
		return nil, domain.NewNotFound("bank transaction", id)
	}
	return &bt, nil
}

func (t *txn) LockInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	inv, ok := t.st.invoices[id]
	if !ok {
		return nil, domain.NewNotFound("invoice", id)
	}
	return &inv, nil
}

func (t *txn) SetTransactionReconciliation(ctx context.Context, txnID, invoiceID int64) error {
	bt, ok := t.st.transactions[txnID]
	if !ok {
		return domain.NewNotFound("bank transaction", txnID)
	}
	if _, ok := t.st.invoices[invoiceID]; !ok {
		return domain.NewNotFound("invoice", invoiceID)
	}
	bt.Reconciled = true
	bt.ReconciledWithInvoiceID = &invoiceID
	t.st.transactions[txnID] = bt
	return nil
}

func (t *txn) SetInvoicePayment(ctx context.Context, invoiceID int64, status domain.InvoiceStatus, payment domain.PaymentStatus) error {
	inv, ok := t.st.invoices[invoiceID]
	if !ok {
		return domain.NewNotFound("invoice", invoiceID)
	}
	inv.Status = status
	inv.PaymentStatus = payment
	inv.UpdatedAt = t.now()
	t.st.invoices[invoiceID] = inv
	return nil
}

func (t *txn) CountReconciledAgainst(ctx context.Context, invoiceID, excludeTxnID int64) (int, error) {
	n := 0
	for id, bt := range t.st.transactions {
		if id == excludeTxnID || bt.ReconciledWithInvoiceID == nil {
			continue
		}
		if *bt.ReconciledWithInvoiceID == invoiceID {
			n++
		}
	}
	return n, nil
}

var _ store.Tx = (*txn)(nil)
