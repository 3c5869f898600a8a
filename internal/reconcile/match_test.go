package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/dvloznov/finance-reconciler/internal/domain"
)

func invoice(id int64, total string, payment domain.PaymentStatus) *domain.Invoice {
	inv := &domain.Invoice{ID: id, InvoiceNumber: "INV", PaymentStatus: payment}
	if total != "" {
		inv.TotalAmount = decimal.NewNullDecimal(decimal.RequireFromString(total))
	}
	return inv
}

func ids(invs []*domain.Invoice) []int64 {
	out := make([]int64, 0, len(invs))
	for _, inv := range invs {
		out = append(out, inv.ID)
	}
	return out
}

func TestSuggestMatchesBoundary(t *testing.T) {
	txn := &domain.BankTransaction{Amount: decimal.RequireFromString("1000.00")}

	tests := []struct {
		name  string
		total string
		want  bool
	}{
		{"exact", "1000.00", true},
		{"just under one percent above", "1009.99", true},
		{"exactly one percent above", "1010.00", false},
		{"just over one percent above", "1010.01", false},
		{"just inside below", "990.10", true},
		{"just outside below", "990.09", false},
		{"far off", "1200.00", false},
		{"zero total", "0", false},
		{"null total", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SuggestMatches(txn, []*domain.Invoice{invoice(1, tt.total, "")}, DefaultTolerance)
			assert.Equal(t, tt.want, len(got) == 1)
		})
	}
}

func TestSuggestMatchesFiltersPaymentStatus(t *testing.T) {
	txn := &domain.BankTransaction{Amount: decimal.RequireFromString("500")}
	candidates := []*domain.Invoice{
		invoice(4, "500", domain.PaymentUnpaid),
		invoice(2, "500", ""),
		invoice(3, "500", domain.PaymentPaid),
		invoice(1, "500", domain.PaymentPartiallyPaid),
		nil,
	}

	got := SuggestMatches(txn, candidates, DefaultTolerance)
	assert.Equal(t, []int64{2, 4}, ids(got))
}

func TestSuggestMatchesZeroTransaction(t *testing.T) {
	txn := &domain.BankTransaction{Amount: decimal.Zero}
	assert.Empty(t, SuggestMatches(txn, []*domain.Invoice{invoice(1, "0.001", "")}, DefaultTolerance))
	assert.Empty(t, SuggestMatches(nil, []*domain.Invoice{invoice(1, "10", "")}, DefaultTolerance))
}

func TestSuggestMatchesCustomTolerance(t *testing.T) {
	txn := &domain.BankTransaction{Amount: decimal.RequireFromString("1000")}
	got := SuggestMatches(txn, []*domain.Invoice{invoice(1, "1040", "")}, decimal.RequireFromString("0.05"))
	assert.Len(t, got, 1)
}
