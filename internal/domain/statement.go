package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a bank transaction.
type TransactionType string

const (
	Debit  TransactionType = "debit"
	Credit TransactionType = "credit"
)

// ParseTransactionType accepts debit or credit.
func ParseTransactionType(s string) (TransactionType, error) {
	switch t := TransactionType(s); t {
	case Debit, Credit:
		return t, nil
	default:
		return "", &ValidationError{Field: "type", Message: "must be debit or credit"}
	}
}

// BankStatement is one statement period for one account.
type BankStatement struct {
	ID              int64           `json:"id"`
	DocumentID      *int64          `json:"documentId"`
	StatementDate   *civil.Date     `json:"statementDate"`
	AccountNumber   string          `json:"accountNumber"`
	BankName        string          `json:"bankName"`
	StartingBalance decimal.Decimal `json:"startingBalance"`
	EndingBalance   decimal.Decimal `json:"endingBalance"`
	Currency        string          `json:"currency"`
	Metadata        map[string]any  `json:"metadata"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// BankTransaction is one statement line. Reconciled is true exactly when
// ReconciledWithInvoiceID is set.
type BankTransaction struct {
	ID                      int64           `json:"id"`
	BankStatementID         int64           `json:"bankStatementId"`
	Date                    *civil.Date     `json:"date"`
	Description             string          `json:"description"`
	Amount                  decimal.Decimal `json:"amount"`
	Type                    TransactionType `json:"type"`
	Reference               *string         `json:"reference"`
	SenderReceiver          *string         `json:"senderReceiver"`
	Reconciled              bool            `json:"reconciled"`
	ReconciledWithInvoiceID *int64          `json:"reconciledWithInvoiceId"`
	Metadata                map[string]any  `json:"metadata"`
	CreatedAt               time.Time       `json:"createdAt"`
}

// Validate checks transaction invariants.
func (t *BankTransaction) Validate() error {
	if t.Amount.IsNegative() {
		return &ValidationError{Field: "amount", Message: "must not be negative"}
	}
	if _, err := ParseTransactionType(string(t.Type)); err != nil {
		return err
	}
	if t.Reconciled != (t.ReconciledWithInvoiceID != nil) {
		return &ValidationError{Field: "reconciled", Message: "must match reconciledWithInvoiceId"}
	}
	return nil
}

// StatementDetail is a statement with its transactions.
type StatementDetail struct {
	BankStatement
	Transactions []*BankTransaction `json:"transactions"`
}

// Stats are the dashboard aggregates.
type Stats struct {
	TotalRevenue       decimal.Decimal `json:"totalRevenue"`
	UnpaidTotal        decimal.Decimal `json:"unpaidTotal"`
	ClientCount        int             `json:"clientCount"`
	TransactionCount   int             `json:"transactionCount"`
	ReconciledCount    int             `json:"reconciledCount"`
	ReconciliationRate decimal.Decimal `json:"reconciliationRate"`
}

// ReconciliationRate returns reconciled/total as a percentage rounded to two places.
func ReconciliationRate(reconciled, total int) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(reconciled)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(2)
}
