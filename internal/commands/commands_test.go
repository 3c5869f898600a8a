package commands_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-reconciler/internal/commands"
	"github.com/dvloznov/finance-reconciler/internal/config"
	"github.com/dvloznov/finance-reconciler/internal/domain"
	"github.com/dvloznov/finance-reconciler/internal/extraction"
	"github.com/dvloznov/finance-reconciler/internal/pipeline"
	"github.com/dvloznov/finance-reconciler/internal/reconcile"
	"github.com/dvloznov/finance-reconciler/internal/store/memory"
)

type fakeOracle struct {
	invoice   *extraction.InvoiceExtraction
	statement *extraction.StatementExtraction
	err       error
}

func (f *fakeOracle) ExtractInvoice(context.Context, string) (*extraction.InvoiceExtraction, extraction.RawOutput, error) {
	return f.invoice, extraction.RawOutput{Model: "fake"}, f.err
}

func (f *fakeOracle) ExtractBankStatement(context.Context, string) (*extraction.StatementExtraction, extraction.RawOutput, error) {
	return f.statement, extraction.RawOutput{Model: "fake"}, f.err
}

type fakeFetcher map[string][]byte

func (f fakeFetcher) Fetch(_ context.Context, uri string) ([]byte, error) {
	data, ok := f[uri]
	if !ok {
		return nil, fmt.Errorf("no object at %s", uri)
	}
	return data, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func defaultOracle() *fakeOracle {
	due := civil.Date{Year: 2020, Month: 1, Day: 31}
	return &fakeOracle{
		invoice: &extraction.InvoiceExtraction{
			ClientName:    "Acme Corp",
			InvoiceNumber: "INV-1",
			DueDate:       &due,
			TotalAmount:   decimal.NewNullDecimal(dec("1200.00")),
			Currency:      "USD",
			Items: []extraction.ItemExtraction{
				{Description: "Consulting", Quantity: dec("2"), UnitPrice: dec("500"), TotalPrice: dec("1000")},
				{Description: "Support", Quantity: dec("1"), UnitPrice: dec("200"), TotalPrice: dec("200")},
			},
		},
		statement: &extraction.StatementExtraction{
			BankName:        "First Bank",
			AccountNumber:   "0001",
			StartingBalance: dec("0"),
			EndingBalance:   dec("1200.00"),
			Currency:        "USD",
			Transactions: []extraction.TransactionExtraction{
				{Description: "Acme Corp payment", Amount: dec("1200.00"), Type: domain.Credit},
			},
		},
	}
}

type env struct {
	repo *memory.Store
	open commands.Opener
}

func newEnv(oracle extraction.Oracle, fetcher commands.Fetcher) *env {
	repo := memory.NewStore()
	return &env{
		repo: repo,
		open: func(context.Context, *config.Config, zerolog.Logger) (*commands.Services, error) {
			return &commands.Services{
				Repo:       repo,
				Ingester:   pipeline.NewIngester(repo, oracle),
				Reconciler: reconcile.NewEngine(repo),
				Fetcher:    fetcher,
			}, nil
		},
	}
}

func (e *env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := commands.NewRootCommand(e.open)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--store", "memory", "--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestIngestAndReconcileFlow(t *testing.T) {
	ctx := context.Background()
	e := newEnv(defaultOracle(), nil)

	out, err := e.run(t, "ingest", "--kind", "invoice", "--file", writeFile(t, "inv-1.txt", []byte("INVOICE INV-1")))
	require.NoError(t, err)
	assert.Contains(t, out, "with 2 item(s)")

	out, err = e.run(t, "ingest", "--kind", "bank_statement", "--file", writeFile(t, "stmt.txt", []byte("STATEMENT")))
	require.NoError(t, err)
	assert.Contains(t, out, "with 1 transaction(s)")

	docs, err := e.repo.ListDocuments(ctx, 0)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	for _, d := range docs {
		assert.Equal(t, domain.StatusProcessed, d.Status)
	}

	out, err = e.run(t, "unreconciled")
	require.NoError(t, err)
	assert.Contains(t, out, "Acme Corp payment")
	assert.Contains(t, out, "1200.00")

	txns, err := e.repo.ListUnreconciledTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	invoices, err := e.repo.ListInvoices(ctx, domain.InvoiceFilter{})
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	txnID := fmt.Sprint(txns[0].ID)
	invID := fmt.Sprint(invoices[0].ID)

	out, err = e.run(t, "suggest", txnID)
	require.NoError(t, err)
	assert.Contains(t, out, "Suggested:")
	assert.Contains(t, out, "INV-1")

	out, err = e.run(t, "reconcile", txnID, invID)
	require.NoError(t, err)
	assert.Contains(t, out, "reconciled with invoice "+invID)

	inv, err := e.repo.GetInvoice(ctx, invoices[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePaid, inv.Status)

	out, err = e.run(t, "unreconciled")
	require.NoError(t, err)
	assert.Contains(t, out, "No unreconciled transactions")

	out, err = e.run(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Reconciliation rate: 100.00%")
	assert.Contains(t, out, "Acme Corp")
}

func TestIngestFromGCS(t *testing.T) {
	uri := "gs://uploads/invoices/inv-1.txt"
	e := newEnv(defaultOracle(), fakeFetcher{uri: []byte("INVOICE INV-1")})

	_, err := e.run(t, "ingest", "--kind", "invoice", "--gcs-uri", uri)
	require.NoError(t, err)

	docs, err := e.repo.ListDocuments(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "inv-1.txt", docs[0].FileName)
	assert.Equal(t, uri, docs[0].SourceURI)
}

func TestIngestRejectsBadInput(t *testing.T) {
	textFile := writeFile(t, "doc.txt", []byte("text"))
	binFile := writeFile(t, "doc.pdf", []byte{0xff, 0xfe, 0x00, 0x81})

	tests := []struct {
		name string
		args []string
	}{
		{"missing kind", []string{"ingest", "--file", textFile}},
		{"unknown kind", []string{"ingest", "--kind", "receipt", "--file", textFile}},
		{"no source", []string{"ingest", "--kind", "invoice"}},
		{"two sources", []string{"ingest", "--kind", "invoice", "--file", textFile, "--gcs-uri", "gs://b/o"}},
		{"gcs without bucket", []string{"ingest", "--kind", "invoice", "--gcs-uri", "gs://b/o"}},
		{"binary file", []string{"ingest", "--kind", "invoice", "--file", binFile}},
		{"missing file", []string{"ingest", "--kind", "invoice", "--file", filepath.Join(t.TempDir(), "nope.txt")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(defaultOracle(), nil)
			_, err := e.run(t, tt.args...)
			require.Error(t, err)

			docs, err := e.repo.ListDocuments(context.Background(), 0)
			require.NoError(t, err)
			assert.Empty(t, docs)
		})
	}
}

func TestIngestOracleFailureMarksDocument(t *testing.T) {
	e := newEnv(&fakeOracle{err: errors.New("model unavailable")}, nil)

	_, err := e.run(t, "ingest", "--kind", "invoice", "--file", writeFile(t, "inv.txt", []byte("INVOICE")))
	require.Error(t, err)

	docs, err := e.repo.ListDocuments(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, domain.StatusError, docs[0].Status)
	assert.NotEmpty(t, docs[0].ProcessingError)

	invoices, err := e.repo.ListInvoices(context.Background(), domain.InvoiceFilter{})
	require.NoError(t, err)
	assert.Empty(t, invoices)
}

func TestSuggestAndReconcileArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"suggest without id", []string{"suggest"}},
		{"suggest non numeric", []string{"suggest", "abc"}},
		{"suggest unknown transaction", []string{"suggest", "42"}},
		{"reconcile one arg", []string{"reconcile", "1"}},
		{"reconcile zero id", []string{"reconcile", "0", "1"}},
		{"reconcile unknown rows", []string{"reconcile", "1", "2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newEnv(defaultOracle(), nil).run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestSweepMarksOverdue(t *testing.T) {
	e := newEnv(defaultOracle(), nil)
	_, err := e.run(t, "ingest", "--kind", "invoice", "--file", writeFile(t, "inv.txt", []byte("INVOICE")))
	require.NoError(t, err)

	out, err := e.run(t, "sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "Marked 1 invoice(s) overdue, failed 0 stale document(s)")

	invoices, err := e.repo.ListInvoices(context.Background(), domain.InvoiceFilter{})
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, domain.InvoiceOverdue, invoices[0].Status)
}

func TestMigrateRequiresPostgres(t *testing.T) {
	out, err := newEnv(defaultOracle(), nil).run(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, out, "requires the postgres store")
}
