package scheduler

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-reconciler/internal/domain"
	"github.com/dvloznov/finance-reconciler/internal/store"
	"github.com/dvloznov/finance-reconciler/internal/store/memory"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestNewRejectsBadConfig(t *testing.T) {
	repo := memory.NewStore()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"bad overdue spec", Config{Overdue: "every tuesday"}},
		{"bad stale spec", Config{Stale: "* *", StaleAfter: time.Minute}},
		{"stale without cutoff", Config{Stale: "@every 1m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(repo, tt.cfg, zerolog.Nop())
			assert.Error(t, err)
		})
	}

	s, err := New(repo, Config{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, s.cron.Entries())
}

func TestMarkOverdue(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore()

	due := func(s string) *civil.Date {
		d, err := civil.ParseDate(s)
		require.NoError(t, err)
		return &d
	}
	seed := []*domain.Invoice{
		{InvoiceNumber: "past", DueDate: due("2024-05-31"), Status: domain.InvoiceUnpaid, PaymentStatus: domain.PaymentUnpaid},
		{InvoiceNumber: "today", DueDate: due("2024-06-01"), Status: domain.InvoiceUnpaid, PaymentStatus: domain.PaymentUnpaid},
		{InvoiceNumber: "paid", DueDate: due("2024-01-01"), Status: domain.InvoicePaid, PaymentStatus: domain.PaymentPaid},
		{InvoiceNumber: "no due date", Status: domain.InvoiceUnpaid},
	}
	require.NoError(t, repo.WithTx(ctx, func(tx store.Tx) error {
		for _, inv := range seed {
			if err := tx.CreateInvoice(ctx, inv); err != nil {
				return err
			}
		}
		return nil
	}))

	s, err := New(repo, Config{Overdue: "@hourly"}, zerolog.Nop())
	require.NoError(t, err)
	c := &clock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	s.now = c.now

	n, err := s.MarkOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	want := map[string]domain.InvoiceStatus{
		"past":        domain.InvoiceOverdue,
		"today":       domain.InvoiceUnpaid,
		"paid":        domain.InvoicePaid,
		"no due date": domain.InvoiceUnpaid,
	}
	for _, inv := range seed {
		got, err := repo.GetInvoice(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, want[inv.InvoiceNumber], got.Status, inv.InvoiceNumber)
	}

	past, err := repo.GetInvoice(ctx, seed[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentUnpaid, past.PaymentStatus)
}

func TestFailStale(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	repo := memory.NewStore(memory.WithClock(c.now))

	claim := func() *domain.Document {
		doc := &domain.Document{FileName: "a.pdf", Kind: domain.KindInvoice}
		require.NoError(t, repo.CreateDocument(ctx, doc))
		require.NoError(t, repo.TransitionDocument(ctx, doc.ID, domain.StatusPending, domain.StatusProcessing, ""))
		return doc
	}
	stale := claim()
	abandoned := &domain.Document{FileName: "c.pdf", Kind: domain.KindInvoice}
	require.NoError(t, repo.CreateDocument(ctx, abandoned))
	c.t = c.t.Add(9 * time.Minute)
	fresh := claim()
	pending := &domain.Document{FileName: "b.pdf", Kind: domain.KindInvoice}
	require.NoError(t, repo.CreateDocument(ctx, pending))

	c.t = c.t.Add(2 * time.Minute)
	s, err := New(repo, Config{Stale: "*/5 * * * *", StaleAfter: 10 * time.Minute}, zerolog.Nop())
	require.NoError(t, err)
	s.now = c.now

	n, err := s.FailStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := repo.GetDocument(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, got.Status)
	assert.Equal(t, StaleMessage, got.ProcessingError)

	got, err = repo.GetDocument(ctx, abandoned.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, got.Status)
	assert.Equal(t, StaleMessage, got.ProcessingError)

	got, err = repo.GetDocument(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, got.Status)

	got, err = repo.GetDocument(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
}

func TestStartStop(t *testing.T) {
	s, err := New(memory.NewStore(), Config{Overdue: "@hourly", Stale: "@every 1m", StaleAfter: time.Minute}, zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 2)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
