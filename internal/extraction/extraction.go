// Package extraction turns raw document text into structured invoice and
// bank statement fields by calling a language model.
package extraction

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-reconciler/internal/domain"
)

// Oracle extracts structured fields from raw document text. Every failure is
// returned as a *domain.ExtractionError.
type Oracle interface {
	ExtractInvoice(ctx context.Context, text string) (*InvoiceExtraction, RawOutput, error)
	ExtractBankStatement(ctx context.Context, text string) (*StatementExtraction, RawOutput, error)
}

// RawOutput is the model response before normalisation.
type RawOutput struct {
	Model string
	Text  string
}

// InvoiceExtraction is the normalised invoice contract.
type InvoiceExtraction struct {
	ClientName    string
	InvoiceNumber string
	IssueDate     *civil.Date
	DueDate       *civil.Date
	TotalAmount   decimal.NullDecimal
	TaxAmount     decimal.NullDecimal
	Currency      string
	Items         []ItemExtraction
	Metadata      map[string]any
}

// ItemExtraction is one invoice line as extracted.
type ItemExtraction struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
}

// StatementExtraction is the normalised bank statement contract.
type StatementExtraction struct {
	BankName        string
	AccountNumber   string
	StatementDate   *civil.Date
	StartingBalance decimal.Decimal
	EndingBalance   decimal.Decimal
	Currency        string
	Transactions    []TransactionExtraction
	Metadata        map[string]any
}

// TransactionExtraction is one statement line as extracted. Amount is always a
// magnitude; Type carries the direction.
type TransactionExtraction struct {
	Date           *civil.Date
	Description    string
	Amount         decimal.Decimal
	Type           domain.TransactionType
	Reference      *string
	SenderReceiver *string
}
