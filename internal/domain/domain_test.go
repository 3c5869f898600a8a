package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	all := []ProcessingStatus{StatusPending, StatusProcessing, StatusProcessed, StatusError}
	allowed := map[[2]ProcessingStatus]bool{
		{StatusPending, StatusProcessing}:   true,
		{StatusProcessing, StatusProcessed}: true,
		{StatusProcessing, StatusError}:     true,
	}

	for _, from := range all {
		for _, to := range all {
			t.Run(fmt.Sprintf("%s->%s", from, to), func(t *testing.T) {
				assert.Equal(t, allowed[[2]ProcessingStatus{from, to}], CanTransition(from, to))
			})
		}
	}
}

func TestTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.True(t, StatusProcessed.Terminal())
	assert.True(t, StatusError.Terminal())
}

func TestParseDocumentKind(t *testing.T) {
	tests := []struct {
		in      string
		want    DocumentKind
		wantErr bool
	}{
		{"invoice", KindInvoice, false},
		{"bank_statement", KindBankStatement, false},
		{"receipt", "", true},
		{"", "", true},
		{"Invoice", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDocumentKind(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTruncateError(t *testing.T) {
	assert.Equal(t, "short", TruncateError("short"))
	long := strings.Repeat("x", MaxErrorMessageLen+10)
	assert.Len(t, TruncateError(long), MaxErrorMessageLen)
}

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"validation", &ValidationError{Field: "kind", Message: "bad"}, ErrValidation},
		{"extraction", &ExtractionError{Kind: KindInvoice, Err: cause}, ErrExtraction},
		{"persistence", &PersistenceError{Op: "insert invoice", Err: cause}, ErrPersistence},
		{"not found", NewNotFound("invoice", 7), ErrNotFound},
		{"conflict", NewConflict("invoice %d already paid", 7), ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
			assert.NotEmpty(t, wrapped.Error())
		})
	}

	var extErr *ExtractionError
	require.ErrorAs(t, fmt.Errorf("x: %w", &ExtractionError{Kind: KindBankStatement, Timeout: true, Err: cause}), &extErr)
	assert.True(t, extErr.Timeout)
	assert.ErrorIs(t, extErr, cause)
}

func TestInvoiceValidate(t *testing.T) {
	inv := &Invoice{InvoiceNumber: "INV-1", TotalAmount: decimal.NewNullDecimal(decimal.RequireFromString("10.00"))}
	require.NoError(t, inv.Validate())

	inv.TotalAmount = decimal.NewNullDecimal(decimal.RequireFromString("-1"))
	assert.ErrorIs(t, inv.Validate(), ErrValidation)

	assert.ErrorIs(t, (&Invoice{}).Validate(), ErrValidation)
}

func TestInvoiceUnpaid(t *testing.T) {
	assert.True(t, (&Invoice{}).Unpaid())
	assert.True(t, (&Invoice{PaymentStatus: PaymentUnpaid}).Unpaid())
	assert.False(t, (&Invoice{PaymentStatus: PaymentPaid}).Unpaid())
	assert.False(t, (&Invoice{PaymentStatus: PaymentPartiallyPaid}).Unpaid())
}

func TestBankTransactionValidate(t *testing.T) {
	id := int64(3)
	tests := []struct {
		name    string
		txn     BankTransaction
		wantErr bool
	}{
		{"unreconciled credit", BankTransaction{Amount: decimal.NewFromInt(5), Type: Credit}, false},
		{"reconciled with link", BankTransaction{Amount: decimal.NewFromInt(5), Type: Debit, Reconciled: true, ReconciledWithInvoiceID: &id}, false},
		{"negative amount", BankTransaction{Amount: decimal.NewFromInt(-5), Type: Credit}, true},
		{"bad type", BankTransaction{Amount: decimal.NewFromInt(5), Type: "transfer"}, true},
		{"flag without link", BankTransaction{Amount: decimal.NewFromInt(5), Type: Credit, Reconciled: true}, true},
		{"link without flag", BankTransaction{Amount: decimal.NewFromInt(5), Type: Credit, ReconciledWithInvoiceID: &id}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.txn.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestReconciliationRate(t *testing.T) {
	assert.True(t, ReconciliationRate(0, 0).IsZero())
	assert.Equal(t, "50", ReconciliationRate(1, 2).String())
	assert.Equal(t, "33.33", ReconciliationRate(1, 3).String())
}
