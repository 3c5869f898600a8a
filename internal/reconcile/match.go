package reconcile

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-reconciler/internal/domain"
)

// DefaultTolerance is the relative amount difference below which an invoice
// is suggested for a transaction.
var DefaultTolerance = decimal.RequireFromString("0.01")

// SuggestMatches returns the unpaid candidates whose total is within
// tolerance of the transaction amount, sorted by invoice id. The difference
// is measured against the smaller of the two amounts and must be strictly
// below tolerance. Invoices without a positive total never match.
func SuggestMatches(txn *domain.BankTransaction, candidates []*domain.Invoice, tolerance decimal.Decimal) []*domain.Invoice {
	out := make([]*domain.Invoice, 0)
	if txn == nil {
		return out
	}
	for _, inv := range candidates {
		if inv != nil && inv.Unpaid() && withinTolerance(txn.Amount, inv.TotalAmount, tolerance) {
			out = append(out, inv)
		}
	}
	slices.SortFunc(out, func(a, b *domain.Invoice) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
	return out
}

func withinTolerance(amount decimal.Decimal, total decimal.NullDecimal, tolerance decimal.Decimal) bool {
	if !total.Valid || !total.Decimal.IsPositive() || !amount.IsPositive() {
		return false
	}
	base := decimal.Min(amount, total.Decimal)
	diff := amount.Sub(total.Decimal).Abs()
	return diff.LessThan(base.Mul(tolerance))
}
