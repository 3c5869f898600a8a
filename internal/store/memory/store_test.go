package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-reconciler/internal/domain"
	"github.com/dvloznov/finance-reconciler/internal/store"
	"github.com/dvloznov/finance-reconciler/internal/store/storetest"
)

func TestRepository(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Repository {
		return NewStore()
	})
}

func TestWithTxCancelledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.WithTx(ctx, func(tx store.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestFailStaleRespectsCutoff(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	doc := &domain.Document{FileName: "a.pdf", Kind: domain.KindInvoice, OriginalText: "x"}
	require.NoError(t, s.CreateDocument(ctx, doc))
	require.NoError(t, s.TransitionDocument(ctx, doc.ID, domain.StatusPending, domain.StatusProcessing, ""))

	n, err := s.FailStaleDocuments(ctx, now.Add(-time.Minute), "processing timed out")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.FailStaleDocuments(ctx, now.Add(time.Minute), "processing timed out")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReadsReturnCopies(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	doc := &domain.Document{FileName: "a.pdf", Kind: domain.KindInvoice, OriginalText: "x"}
	require.NoError(t, s.CreateDocument(ctx, doc))

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	got.Status = domain.StatusProcessed

	again, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, again.Status)
}
