// Package reconcile matches bank transactions to the invoices they pay.
package reconcile

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-reconciler/internal/domain"
	"github.com/dvloznov/finance-reconciler/internal/store"
)

// Engine lists, suggests and commits reconciliations.
type Engine struct {
	repo      store.Repository
	tolerance decimal.Decimal
	log       zerolog.Logger
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithTolerance overrides DefaultTolerance.
func WithTolerance(t decimal.Decimal) Option {
	return func(e *Engine) { e.tolerance = t }
}

// WithLogger sets the engine logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithClock sets the time source used to decide whether a released
// invoice is overdue.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine over repo.
func NewEngine(repo store.Repository, opts ...Option) *Engine {
	e := &Engine{repo: repo, tolerance: DefaultTolerance, log: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Suggestions is the candidate view for one transaction.
type Suggestions struct {
	Transaction *domain.BankTransaction `json:"transaction"`
	// Suggested invoices are within tolerance of the transaction amount.
	Suggested []*domain.Invoice `json:"suggested"`
	// Others are the remaining unpaid invoices.
	Others []*domain.Invoice `json:"others"`
}

// ListUnreconciled returns every unreconciled transaction, newest first.
func (e *Engine) ListUnreconciled(ctx context.Context) ([]*domain.BankTransaction, error) {
	return e.repo.ListUnreconciledTransactions(ctx)
}

// Suggestions loads a transaction and splits the unpaid invoices into
// suggested and other candidates.
func (e *Engine) Suggestions(ctx context.Context, txnID int64) (*Suggestions, error) {
	if txnID <= 0 {
		return nil, &domain.ValidationError{Field: "transactionId", Message: "is required"}
	}
	txn, err := e.repo.GetBankTransaction(ctx, txnID)
	if err != nil {
		return nil, err
	}
	candidates, err := e.repo.ListInvoices(ctx, domain.InvoiceFilter{Unpaid: true})
	if err != nil {
		return nil, err
	}

	suggested := SuggestMatches(txn, candidates, e.tolerance)
	picked := make(map[int64]bool, len(suggested))
	for _, inv := range suggested {
		picked[inv.ID] = true
	}
	others := make([]*domain.Invoice, 0, len(candidates)-len(suggested))
	for _, inv := range candidates {
		if !picked[inv.ID] {
			others = append(others, inv)
		}
	}
	return &Suggestions{Transaction: txn, Suggested: suggested, Others: others}, nil
}

// Reconcile links the transaction to the invoice and marks the invoice paid,
// both or neither. Repeating a reconciliation is a no-op. Reconciling an
// already matched transaction to another invoice moves the link and returns
// the old invoice to unpaid, or overdue once past its due date, when nothing
// else references it.
func (e *Engine) Reconcile(ctx context.Context, txnID, invoiceID int64) (*domain.BankTransaction, error) {
	if txnID <= 0 {
		return nil, &domain.ValidationError{Field: "transactionId", Message: "is required"}
	}
	if invoiceID <= 0 {
		return nil, &domain.ValidationError{Field: "invoiceId", Message: "is required"}
	}

	log := e.log.With().Int64("transaction_id", txnID).Int64("invoice_id", invoiceID).Logger()

	var out *domain.BankTransaction
	err := e.repo.WithTx(ctx, func(tx store.Tx) error {
		txn, err := tx.LockBankTransaction(ctx, txnID)
		if err != nil {
			return err
		}
		inv, err := tx.LockInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}

		if txn.Reconciled && txn.ReconciledWithInvoiceID != nil && *txn.ReconciledWithInvoiceID == invoiceID {
			out = txn
			return nil
		}
		if inv.Status == domain.InvoicePaid || inv.PaymentStatus == domain.PaymentPaid {
			return domain.NewConflict("invoice %d is already paid", invoiceID)
		}

		if txn.Reconciled && txn.ReconciledWithInvoiceID != nil {
			if err := release(ctx, tx, *txn.ReconciledWithInvoiceID, txnID, civil.DateOf(e.now())); err != nil {
				return err
			}
			log.Info().Int64("previous_invoice_id", *txn.ReconciledWithInvoiceID).Msg("Re-matching transaction")
		}

		if err := tx.SetTransactionReconciliation(ctx, txnID, invoiceID); err != nil {
			return err
		}
		if err := tx.SetInvoicePayment(ctx, invoiceID, domain.InvoicePaid, domain.PaymentPaid); err != nil {
			return err
		}

		txn.Reconciled = true
		txn.ReconciledWithInvoiceID = &invoiceID
		out = txn
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Msg("Reconciliation failed")
		return nil, err
	}
	log.Info().Msg("Transaction reconciled")
	return out, nil
}

// release returns an invoice to unpaid once no transaction other than
// txnID still settles it. An invoice due before today goes back to overdue.
func release(ctx context.Context, tx store.Tx, invoiceID, txnID int64, today civil.Date) error {
	inv, err := tx.LockInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	n, err := tx.CountReconciledAgainst(ctx, invoiceID, txnID)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	status := domain.InvoiceUnpaid
	if inv.DueDate != nil && inv.DueDate.Before(today) {
		status = domain.InvoiceOverdue
	}
	return tx.SetInvoicePayment(ctx, invoiceID, status, domain.PaymentUnpaid)
}
