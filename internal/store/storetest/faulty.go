package storetest

import (
	"context"

	"github.com/dvloznov/finance-reconciler/internal/domain"
	"github.com/dvloznov/finance-reconciler/internal/store"
)

// Faulty wraps a Repository so that the named Tx methods fail with the given
// error. Everything else passes through.
type Faulty struct {
	store.Repository
	Fail map[string]error
}

// NewFaulty returns a Faulty that fails method with err.
func NewFaulty(repo store.Repository, method string, err error) *Faulty {
	return &Faulty{Repository: repo, Fail: map[string]error{method: err}}
}

func (f *Faulty) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return f.Repository.WithTx(ctx, func(tx store.Tx) error {
		return fn(&faultyTx{Tx: tx, fail: f.Fail})
	})
}

type faultyTx struct {
	store.Tx
	fail map[string]error
}

func (t *faultyTx) ResolveClient(ctx context.Context, name string) (*domain.Client, error) {
	if err := t.fail["ResolveClient"]; err != nil {
		return nil, err
	}
	return t.Tx.ResolveClient(ctx, name)
}

func (t *faultyTx) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	if err := t.fail["CreateInvoice"]; err != nil {
		return err
	}
	return t.Tx.CreateInvoice(ctx, inv)
}

func (t *faultyTx) CreateInvoiceItems(ctx context.Context, invoiceID int64, items []*domain.InvoiceItem) error {
	if err := t.fail["CreateInvoiceItems"]; err != nil {
		return err
	}
	return t.Tx.CreateInvoiceItems(ctx, invoiceID, items)
}

func (t *faultyTx) CreateBankStatement(ctx context.Context, stmt *domain.BankStatement) error {
	if err := t.fail["CreateBankStatement"]; err != nil {
		return err
	}
	return t.Tx.CreateBankStatement(ctx, stmt)
}

func (t *faultyTx) CreateBankTransactions(ctx context.Context, statementID int64, txns []*domain.BankTransaction) error {
	if err := t.fail["CreateBankTransactions"]; err != nil {
		return err
	}
	return t.Tx.CreateBankTransactions(ctx, statementID, txns)
}

func (t *faultyTx) TransitionDocument(ctx context.Context, id int64, from, to domain.ProcessingStatus, errMsg string) error {
	if err := t.fail["TransitionDocument"]; err != nil {
		return err
	}
	return t.Tx.TransitionDocument(ctx, id, from, to, errMsg)
}

func (t *faultyTx) SetTransactionReconciliation(ctx context.Context, txnID, invoiceID int64) error {
	if err := t.fail["SetTransactionReconciliation"]; err != nil {
		return err
	}
	return t.Tx.SetTransactionReconciliation(ctx, txnID, invoiceID)
}

func (t *faultyTx) SetInvoicePayment(ctx context.Context, invoiceID int64, status domain.InvoiceStatus, payment domain.PaymentStatus) error {
	if err := t.fail["SetInvoicePayment"]; err != nil {
		return err
	}
	return t.Tx.SetInvoicePayment(ctx, invoiceID, status, payment)
}
