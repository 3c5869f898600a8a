// Package storetest holds behavioural tests shared by every store.Repository
// implementation.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-reconciler/internal/domain"
	"github.com/dvloznov/finance-reconciler/internal/store"
)

// Factory returns an empty repository for one subtest.
type Factory func(t *testing.T) store.Repository

// Run executes the whole suite against repositories built by newRepo.
func Run(t *testing.T, newRepo Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, repo store.Repository)
	}{
		{"DocumentLifecycle", testDocumentLifecycle},
		{"DocumentTransitionConflict", testDocumentTransitionConflict},
		{"FailStaleDocuments", testFailStaleDocuments},
		{"ResolveClientDedup", testResolveClientDedup},
		{"ResolveClientConcurrent", testResolveClientConcurrent},
		{"CreateClientConflict", testCreateClientConflict},
		{"WithTxRollback", testWithTxRollback},
		{"InvoiceItemsOrder", testInvoiceItemsOrder},
		{"ListInvoicesFilter", testListInvoicesFilter},
		{"UnreconciledOrdering", testUnreconciledOrdering},
		{"ReconciliationWrites", testReconciliationWrites},
		{"MarkOverdue", testMarkOverdue},
		{"StatsAndTopClients", testStatsAndTopClients},
		{"NotFound", testNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newRepo(t))
		})
	}
}

func date(y int, m time.Month, d int) *civil.Date {
	cd := civil.Date{Year: y, Month: m, Day: d}
	return &cd
}

func amount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func newDocument(t *testing.T, repo store.Repository, kind domain.DocumentKind) *domain.Document {
	t.Helper()
	doc := &domain.Document{FileName: "upload.pdf", Kind: kind, OriginalText: "raw text"}
	require.NoError(t, repo.CreateDocument(context.Background(), doc))
	return doc
}

func newStatement(t *testing.T, repo store.Repository, txns ...*domain.BankTransaction) *domain.BankStatement {
	t.Helper()
	stmt := &domain.BankStatement{BankName: "First Bank", AccountNumber: "0001"}
	err := repo.WithTx(context.Background(), func(tx store.Tx) error {
		if err := tx.CreateBankStatement(context.Background(), stmt); err != nil {
			return err
		}
		return tx.CreateBankTransactions(context.Background(), stmt.ID, txns)
	})
	require.NoError(t, err)
	return stmt
}

func newInvoice(t *testing.T, repo store.Repository, inv *domain.Invoice) *domain.Invoice {
	t.Helper()
	require.NoError(t, repo.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.CreateInvoice(context.Background(), inv)
	}))
	return inv
}

func testDocumentLifecycle(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	doc := newDocument(t, repo, domain.KindInvoice)
	assert.NotZero(t, doc.ID)
	assert.Equal(t, domain.StatusPending, doc.Status)

	require.NoError(t, repo.TransitionDocument(ctx, doc.ID, domain.StatusPending, domain.StatusProcessing, ""))
	require.NoError(t, repo.TransitionDocument(ctx, doc.ID, domain.StatusProcessing, domain.StatusError, "oracle unavailable"))

	got, err := repo.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, got.Status)
	assert.Equal(t, "oracle unavailable", got.ProcessingError)
	assert.Equal(t, "raw text", got.OriginalText)

	docs, err := repo.ListDocuments(ctx, 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doc.ID, docs[0].ID)
}

func testDocumentTransitionConflict(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	doc := newDocument(t, repo, domain.KindBankStatement)

	err := repo.TransitionDocument(ctx, doc.ID, domain.StatusProcessing, domain.StatusProcessed, "")
	assert.ErrorIs(t, err, domain.ErrConflict)

	require.NoError(t, repo.TransitionDocument(ctx, doc.ID, domain.StatusPending, domain.StatusProcessing, ""))
	require.NoError(t, repo.TransitionDocument(ctx, doc.ID, domain.StatusProcessing, domain.StatusProcessed, ""))

	// Terminal states never move again.
	for _, to := range []domain.ProcessingStatus{domain.StatusPending, domain.StatusProcessing, domain.StatusError} {
		err := repo.TransitionDocument(ctx, doc.ID, domain.StatusProcessed, to, "")
		assert.ErrorIs(t, err, domain.ErrConflict, "processed -> %s", to)
	}

	got, err := repo.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessed, got.Status)
}

func testFailStaleDocuments(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	stuck := newDocument(t, repo, domain.KindInvoice)
	pending := newDocument(t, repo, domain.KindInvoice)
	done := newDocument(t, repo, domain.KindInvoice)
	require.NoError(t, repo.TransitionDocument(ctx, stuck.ID, domain.StatusPending, domain.StatusProcessing, ""))
	require.NoError(t, repo.TransitionDocument(ctx, done.ID, domain.StatusPending, domain.StatusProcessing, ""))
	require.NoError(t, repo.TransitionDocument(ctx, done.ID, domain.StatusProcessing, domain.StatusProcessed, ""))

	n, err := repo.FailStaleDocuments(ctx, time.Now().Add(-time.Hour), "processing timed out")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = repo.FailStaleDocuments(ctx, time.Now().Add(time.Hour), "processing timed out")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	tests := []struct {
		name    string
		id      int64
		want    domain.ProcessingStatus
		wantMsg string
	}{
		{"stuck in processing", stuck.ID, domain.StatusError, "processing timed out"},
		{"never dequeued", pending.ID, domain.StatusError, "processing timed out"},
		{"already processed", done.ID, domain.StatusProcessed, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.GetDocument(ctx, tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
			assert.Equal(t, tt.wantMsg, got.ProcessingError)
		})
	}
}

func testResolveClientDedup(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	var first, second, other, padded *domain.Client
	require.NoError(t, repo.WithTx(ctx, func(tx store.Tx) error {
		var err error
		first, err = tx.ResolveClient(ctx, "Acme Corp")
		return err
	}))
	require.NoError(t, repo.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if second, err = tx.ResolveClient(ctx, "Acme Corp"); err != nil {
			return err
		}
		if other, err = tx.ResolveClient(ctx, "acme corp"); err != nil {
			return err
		}
		padded, err = tx.ResolveClient(ctx, " Acme Corp ")
		return err
	}))

	assert.Equal(t, first.ID, second.ID)
	assert.NotEqual(t, first.ID, other.ID, "lookup is case sensitive")
	assert.NotEqual(t, first.ID, padded.ID, "lookup does not trim")
	assert.Equal(t, " Acme Corp ", padded.Name)
	assert.Nil(t, first.Email)

	clients, err := repo.ListClients(ctx)
	require.NoError(t, err)
	assert.Len(t, clients, 3)
}

func testResolveClientConcurrent(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	const workers = 8
	ids := make([]int64, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.WithTx(ctx, func(tx store.Tx) error {
				c, err := tx.ResolveClient(ctx, "Globex")
				if err != nil {
					return err
				}
				ids[i] = c.ID
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	clients, err := repo.ListClients(ctx)
	require.NoError(t, err)
	assert.Len(t, clients, 1)
}

func testCreateClientConflict(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	email := "billing@initech.test"
	require.NoError(t, repo.CreateClient(ctx, &domain.Client{Name: "Initech", Email: &email}))

	err := repo.CreateClient(ctx, &domain.Client{Name: "Initech"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	err = repo.CreateClient(ctx, &domain.Client{Name: "  "})
	assert.ErrorIs(t, err, domain.ErrValidation)

	got, err := repo.GetClientByName(ctx, "Initech")
	require.NoError(t, err)
	require.NotNil(t, got.Email)
	assert.Equal(t, email, *got.Email)

	phone := "555-0100"
	updated, err := repo.UpdateClient(ctx, got.ID, domain.ClientPatch{Phone: &phone})
	require.NoError(t, err)
	require.NotNil(t, updated.Phone)
	assert.Equal(t, phone, *updated.Phone)
}

func testWithTxRollback(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	doc := newDocument(t, repo, domain.KindInvoice)
	require.NoError(t, repo.TransitionDocument(ctx, doc.ID, domain.StatusPending, domain.StatusProcessing, ""))

	boom := errors.New("boom")
	err := repo.WithTx(ctx, func(tx store.Tx) error {
		c, err := tx.ResolveClient(ctx, "Rollback Ltd")
		if err != nil {
			return err
		}
		inv := &domain.Invoice{DocumentID: &doc.ID, ClientID: &c.ID, InvoiceNumber: "INV-R", TotalAmount: amount("10")}
		if err := tx.CreateInvoice(ctx, inv); err != nil {
			return err
		}
		if err := tx.CreateInvoiceItems(ctx, inv.ID, []*domain.InvoiceItem{{
			Description: "widget", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(10), TotalPrice: decimal.NewFromInt(10),
		}}); err != nil {
			return err
		}
		if err := tx.TransitionDocument(ctx, doc.ID, domain.StatusProcessing, domain.StatusProcessed, ""); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	invoices, err := repo.ListInvoices(ctx, domain.InvoiceFilter{})
	require.NoError(t, err)
	assert.Empty(t, invoices)

	_, err = repo.GetClientByName(ctx, "Rollback Ltd")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := repo.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, got.Status)
}

func testInvoiceItemsOrder(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	inv := newInvoice(t, repo, &domain.Invoice{InvoiceNumber: "INV-1", TotalAmount: amount("1200.00")})
	assert.Equal(t, domain.DefaultCurrency, inv.Currency)
	assert.Equal(t, domain.InvoiceUnpaid, inv.Status)

	items := []*domain.InvoiceItem{
		{Description: "consulting", Quantity: decimal.RequireFromString("2"), UnitPrice: decimal.RequireFromString("500.00"), TotalPrice: decimal.RequireFromString("1000.00")},
		{Description: "travel", Quantity: decimal.RequireFromString("1"), UnitPrice: decimal.RequireFromString("200.00"), TotalPrice: decimal.RequireFromString("200.00")},
		{Description: "adjustment", Quantity: decimal.RequireFromString("0.5"), UnitPrice: decimal.RequireFromString("0"), TotalPrice: decimal.RequireFromString("0")},
	}
	require.NoError(t, repo.WithTx(ctx, func(tx store.Tx) error {
		return tx.CreateInvoiceItems(ctx, inv.ID, items)
	}))

	got, err := repo.ListInvoiceItems(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range items {
		assert.Equal(t, items[i].Description, got[i].Description)
		assert.True(t, items[i].Quantity.Equal(got[i].Quantity))
		assert.True(t, items[i].UnitPrice.Equal(got[i].UnitPrice))
		assert.True(t, items[i].TotalPrice.Equal(got[i].TotalPrice))
	}

	err = repo.WithTx(ctx, func(tx store.Tx) error {
		return tx.CreateInvoiceItems(ctx, inv.ID, []*domain.InvoiceItem{{
			Description: "refund", Quantity: decimal.NewFromInt(-1), UnitPrice: decimal.Zero, TotalPrice: decimal.Zero,
		}})
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func testListInvoicesFilter(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	var client *domain.Client
	require.NoError(t, repo.WithTx(ctx, func(tx store.Tx) error {
		var err error
		client, err = tx.ResolveClient(ctx, "Filter Co")
		return err
	}))

	older := newInvoice(t, repo, &domain.Invoice{InvoiceNumber: "A", ClientID: &client.ID, IssueDate: date(2024, 1, 10), TotalAmount: amount("10")})
	newer := newInvoice(t, repo, &domain.Invoice{InvoiceNumber: "B", IssueDate: date(2024, 3, 1), TotalAmount: amount("20"), PaymentStatus: domain.PaymentPaid, Status: domain.InvoicePaid})

	all, err := repo.ListInvoices(ctx, domain.InvoiceFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID)
	assert.Equal(t, older.ID, all[1].ID)

	byClient, err := repo.ListInvoices(ctx, domain.InvoiceFilter{ClientID: &client.ID})
	require.NoError(t, err)
	require.Len(t, byClient, 1)
	assert.Equal(t, older.ID, byClient[0].ID)

	paid, err := repo.ListInvoices(ctx, domain.InvoiceFilter{Status: domain.InvoicePaid})
	require.NoError(t, err)
	require.Len(t, paid, 1)
	assert.Equal(t, newer.ID, paid[0].ID)

	unpaid, err := repo.ListInvoices(ctx, domain.InvoiceFilter{Unpaid: true})
	require.NoError(t, err)
	require.Len(t, unpaid, 1)
	assert.Equal(t, older.ID, unpaid[0].ID)

	ranged, err := repo.ListInvoices(ctx, domain.InvoiceFilter{StartDate: date(2024, 2, 1), EndDate: date(2024, 12, 31)})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, newer.ID, ranged[0].ID)
}

func testUnreconciledOrdering(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	newStatement(t, repo,
		&domain.BankTransaction{Date: date(2024, 1, 5), Description: "a", Amount: decimal.NewFromInt(1), Type: domain.Credit},
		&domain.BankTransaction{Date: date(2024, 2, 5), Description: "b", Amount: decimal.NewFromInt(2), Type: domain.Debit},
		&domain.BankTransaction{Date: date(2024, 2, 5), Description: "c", Amount: decimal.NewFromInt(3), Type: domain.Credit},
		&domain.BankTransaction{Description: "undated", Amount: decimal.NewFromInt(4), Type: domain.Credit},
	)

	got, err := repo.ListUnreconciledTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, []string{"c", "b", "a", "undated"}, []string{got[0].Description, got[1].Description, got[2].Description, got[3].Description})
	for _, bt := range got {
		assert.False(t, bt.Reconciled)
		assert.Nil(t, bt.ReconciledWithInvoiceID)
	}
}

func testReconciliationWrites(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	stmt := newStatement(t, repo, &domain.BankTransaction{Date: date(2024, 4, 1), Description: "payment", Amount: decimal.NewFromInt(50), Type: domain.Credit})
	inv := newInvoice(t, repo, &domain.Invoice{InvoiceNumber: "R-1", TotalAmount: amount("50"), PaymentStatus: domain.PaymentUnpaid})

	txns, err := repo.ListBankTransactions(ctx, stmt.ID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	txnID := txns[0].ID

	require.NoError(t, repo.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.LockBankTransaction(ctx, txnID); err != nil {
			return err
		}
		if _, err := tx.LockInvoice(ctx, inv.ID); err != nil {
			return err
		}
		if err := tx.SetTransactionReconciliation(ctx, txnID, inv.ID); err != nil {
			return err
		}
		return tx.SetInvoicePayment(ctx, inv.ID, domain.InvoicePaid, domain.PaymentPaid)
	}))

	bt, err := repo.GetBankTransaction(ctx, txnID)
	require.NoError(t, err)
	assert.True(t, bt.Reconciled)
	require.NotNil(t, bt.ReconciledWithInvoiceID)
	assert.Equal(t, inv.ID, *bt.ReconciledWithInvoiceID)

	gotInv, err := repo.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePaid, gotInv.Status)
	assert.Equal(t, domain.PaymentPaid, gotInv.PaymentStatus)

	require.NoError(t, repo.WithTx(ctx, func(tx store.Tx) error {
		n, err := tx.CountReconciledAgainst(ctx, inv.ID, 0)
		assert.Equal(t, 1, n)
		n, _ = tx.CountReconciledAgainst(ctx, inv.ID, txnID)
		assert.Equal(t, 0, n)
		return err
	}))

	unreconciled, err := repo.ListUnreconciledTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, unreconciled)
}

func testMarkOverdue(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	late := newInvoice(t, repo, &domain.Invoice{InvoiceNumber: "L", DueDate: date(2024, 1, 1), TotalAmount: amount("5")})
	future := newInvoice(t, repo, &domain.Invoice{InvoiceNumber: "F", DueDate: date(2030, 1, 1), TotalAmount: amount("5")})
	paid := newInvoice(t, repo, &domain.Invoice{InvoiceNumber: "P", DueDate: date(2024, 1, 1), TotalAmount: amount("5"), Status: domain.InvoicePaid})

	n, err := repo.MarkOverdueInvoices(ctx, civil.Date{Year: 2025, Month: 6, Day: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	for id, want := range map[int64]domain.InvoiceStatus{
		late.ID:   domain.InvoiceOverdue,
		future.ID: domain.InvoiceUnpaid,
		paid.ID:   domain.InvoicePaid,
	} {
		inv, err := repo.GetInvoice(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, inv.Status)
	}
}

func testStatsAndTopClients(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	var big, small *domain.Client
	require.NoError(t, repo.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if big, err = tx.ResolveClient(ctx, "Big"); err != nil {
			return err
		}
		small, err = tx.ResolveClient(ctx, "Small")
		return err
	}))
	newInvoice(t, repo, &domain.Invoice{InvoiceNumber: "1", ClientID: &big.ID, TotalAmount: amount("300")})
	newInvoice(t, repo, &domain.Invoice{InvoiceNumber: "2", ClientID: &big.ID, TotalAmount: amount("200"), Status: domain.InvoicePaid})
	newInvoice(t, repo, &domain.Invoice{InvoiceNumber: "3", ClientID: &small.ID, TotalAmount: amount("50")})
	newStatement(t, repo,
		&domain.BankTransaction{Description: "x", Amount: decimal.NewFromInt(1), Type: domain.Credit},
		&domain.BankTransaction{Description: "y", Amount: decimal.NewFromInt(1), Type: domain.Credit},
	)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "550", stats.TotalRevenue.String())
	assert.Equal(t, "350", stats.UnpaidTotal.String())
	assert.Equal(t, 2, stats.ClientCount)
	assert.Equal(t, 2, stats.TransactionCount)
	assert.True(t, stats.ReconciliationRate.IsZero())

	top, err := repo.TopClients(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, big.ID, top[0].ClientID)
	assert.Equal(t, 2, top[0].InvoiceCount)
	assert.Equal(t, "500", top[0].TotalAmount.String())
}

func testNotFound(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	_, err := repo.GetDocument(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.GetInvoice(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.GetClient(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.GetBankStatement(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.GetBankTransaction(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	err = repo.TransitionDocument(ctx, 999, domain.StatusPending, domain.StatusProcessing, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.UpdateInvoice(ctx, 999, domain.InvoicePatch{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	err = repo.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.LockBankTransaction(ctx, 999)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
