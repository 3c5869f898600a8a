// Package store defines the persistence contracts for documents and the
// domain records derived from them.
package store

import (
	"context"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/finance-reconciler/internal/domain"
)

// DocumentStore persists uploaded files and their processing lifecycle.
type DocumentStore interface {
	// CreateDocument inserts a pending document and fills in its ID and timestamps.
	CreateDocument(ctx context.Context, doc *domain.Document) error
	GetDocument(ctx context.Context, id int64) (*domain.Document, error)
	// ListDocuments returns the newest documents first. limit <= 0 means no limit.
	ListDocuments(ctx context.Context, limit int) ([]*domain.Document, error)
	// TransitionDocument moves a document from one status to another. It fails
	// with a ConflictError when the document is not currently in from.
	TransitionDocument(ctx context.Context, id int64, from, to domain.ProcessingStatus, errMsg string) error
	// FailStaleDocuments moves documents left pending or processing since
	// before cutoff to error.
	FailStaleDocuments(ctx context.Context, cutoff time.Time, errMsg string) (int, error)
}

// ClientStore persists clients.
type ClientStore interface {
	// CreateClient fails with a ConflictError when the name is taken.
	CreateClient(ctx context.Context, c *domain.Client) error
	GetClient(ctx context.Context, id int64) (*domain.Client, error)
	// GetClientByName matches the name exactly, case included.
	GetClientByName(ctx context.Context, name string) (*domain.Client, error)
	ListClients(ctx context.Context) ([]*domain.Client, error)
	UpdateClient(ctx context.Context, id int64, patch domain.ClientPatch) (*domain.Client, error)
}

// InvoiceStore reads and edits invoices.
type InvoiceStore interface {
	GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error)
	// ListInvoices orders by issue date, newest first.
	ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]*domain.Invoice, error)
	// ListInvoiceItems returns items in extraction order.
	ListInvoiceItems(ctx context.Context, invoiceID int64) ([]*domain.InvoiceItem, error)
	UpdateInvoice(ctx context.Context, id int64, patch domain.InvoicePatch) (*domain.Invoice, error)
	// MarkOverdueInvoices flags unpaid invoices whose due date is before asOf.
	MarkOverdueInvoices(ctx context.Context, asOf civil.Date) (int, error)
}

// StatementStore reads bank statements and their transactions.
type StatementStore interface {
	GetBankStatement(ctx context.Context, id int64) (*domain.BankStatement, error)
	ListBankStatements(ctx context.Context) ([]*domain.BankStatement, error)
	ListBankTransactions(ctx context.Context, statementID int64) ([]*domain.BankTransaction, error)
	GetBankTransaction(ctx context.Context, id int64) (*domain.BankTransaction, error)
	// ListUnreconciledTransactions orders by date descending, then id descending.
	ListUnreconciledTransactions(ctx context.Context) ([]*domain.BankTransaction, error)
}

// ReportStore answers the aggregate queries.
type ReportStore interface {
	Stats(ctx context.Context) (*domain.Stats, error)
	TopClients(ctx context.Context, limit int) ([]*domain.ClientRevenue, error)
}

// Repository is the full persistence surface of the service.
type Repository interface {
	DocumentStore
	ClientStore
	InvoiceStore
	StatementStore
	ReportStore

	// WithTx runs fn inside one storage transaction. Every write made through
	// tx is rolled back when fn returns an error. fn must not call back into
	// the Repository itself.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
}

// Tx is the write side used inside WithTx.
type Tx interface {
	// ResolveClient returns the client with exactly this name, creating it
	// with only the name set when none exists.
	ResolveClient(ctx context.Context, name string) (*domain.Client, error)
	CreateInvoice(ctx context.Context, inv *domain.Invoice) error
	CreateInvoiceItems(ctx context.Context, invoiceID int64, items []*domain.InvoiceItem) error
	CreateBankStatement(ctx context.Context, stmt *domain.BankStatement) error
	CreateBankTransactions(ctx context.Context, statementID int64, txns []*domain.BankTransaction) error
	TransitionDocument(ctx context.Context, id int64, from, to domain.ProcessingStatus, errMsg string) error

	// LockBankTransaction and LockInvoice read a row and hold it until the
	// transaction ends.
	LockBankTransaction(ctx context.Context, id int64) (*domain.BankTransaction, error)
	LockInvoice(ctx context.Context, id int64) (*domain.Invoice, error)
	// SetTransactionReconciliation links a transaction to an invoice and marks it reconciled.
	SetTransactionReconciliation(ctx context.Context, txnID, invoiceID int64) error
	SetInvoicePayment(ctx context.Context, invoiceID int64, status domain.InvoiceStatus, payment domain.PaymentStatus) error
	// CountReconciledAgainst counts transactions other than excludeTxnID linked to the invoice.
	CountReconciledAgainst(ctx context.Context, invoiceID, excludeTxnID int64) (int, error)
}
