package pipeline

import (
	"context"
	"strings"

	"github.com/dvloznov/finance-reconciler/internal/domain"
	"github.com/dvloznov/finance-reconciler/internal/extraction"
	"github.com/dvloznov/finance-reconciler/internal/store"
)

// Step is a single step in the ingestion pipeline.
type Step interface {
	Name() string
	Execute(ctx context.Context, state *State) error
}

// State holds the shared state across all pipeline steps of one document.
type State struct {
	DocumentID int64
	Kind       domain.DocumentKind
	Text       string

	Raw       extraction.RawOutput
	Invoice   *extraction.InvoiceExtraction
	Statement *extraction.StatementExtraction

	Result Result

	archived bool
}

// ValidateStep rejects unsupported kinds and empty text.
type ValidateStep struct{}

func (s *ValidateStep) Name() string { return "validate" }

func (s *ValidateStep) Execute(ctx context.Context, state *State) error {
	if state.DocumentID <= 0 {
		return &domain.ValidationError{Field: "documentId", Message: "is required"}
	}
	kind, err := domain.ParseDocumentKind(string(state.Kind))
	if err != nil {
		return err
	}
	state.Kind = kind
	if strings.TrimSpace(state.Text) == "" {
		return &domain.ValidationError{Field: "text", Message: "must not be empty"}
	}
	return nil
}

// MarkProcessingStep claims a pending document. It commits on its own so
// the processing state is visible while the oracle runs.
type MarkProcessingStep struct {
	docs store.DocumentStore
}

func (s *MarkProcessingStep) Name() string { return "mark processing" }

func (s *MarkProcessingStep) Execute(ctx context.Context, state *State) error {
	return s.docs.TransitionDocument(ctx, state.DocumentID, domain.StatusPending, domain.StatusProcessing, "")
}

// ExtractStep calls the extraction oracle for the document kind.
type ExtractStep struct {
	oracle extraction.Oracle
}

func (s *ExtractStep) Name() string { return "extract" }

func (s *ExtractStep) Execute(ctx context.Context, state *State) error {
	var err error
	switch state.Kind {
	case domain.KindInvoice:
		state.Invoice, state.Raw, err = s.oracle.ExtractInvoice(ctx, state.Text)
	case domain.KindBankStatement:
		state.Statement, state.Raw, err = s.oracle.ExtractBankStatement(ctx, state.Text)
	}
	return err
}

// ArchiveOutputStep sends the raw oracle output to the output sink. Sink
// failures are logged and never fail the run.
type ArchiveOutputStep struct {
	archive func(ctx context.Context, state *State, errMsg string)
}

func (s *ArchiveOutputStep) Name() string { return "archive output" }

func (s *ArchiveOutputStep) Execute(ctx context.Context, state *State) error {
	s.archive(ctx, state, "")
	return nil
}

// PersistStep writes every derived record and marks the document processed
// in one storage transaction.
type PersistStep struct {
	repo store.Repository
}

func (s *PersistStep) Name() string { return "persist" }

func (s *PersistStep) Execute(ctx context.Context, state *State) error {
	return s.repo.WithTx(ctx, func(tx store.Tx) error {
		var err error
		switch state.Kind {
		case domain.KindInvoice:
			err = persistInvoice(ctx, tx, state)
		case domain.KindBankStatement:
			err = persistStatement(ctx, tx, state)
		}
		if err != nil {
			return err
		}
		return tx.TransitionDocument(ctx, state.DocumentID, domain.StatusProcessing, domain.StatusProcessed, "")
	})
}

func persistInvoice(ctx context.Context, tx store.Tx, state *State) error {
	client, err := tx.ResolveClient(ctx, state.Invoice.ClientName)
	if err != nil {
		return err
	}

	inv := invoiceFromExtraction(state.DocumentID, client.ID, state.Invoice)
	if err := tx.CreateInvoice(ctx, inv); err != nil {
		return err
	}
	items := itemsFromExtraction(state.Invoice.Items)
	if err := tx.CreateInvoiceItems(ctx, inv.ID, items); err != nil {
		return err
	}

	state.Result = Result{
		DocumentID: state.DocumentID,
		Kind:       state.Kind,
		ClientID:   &client.ID,
		InvoiceID:  &inv.ID,
		ItemCount:  len(items),
	}
	return nil
}

func persistStatement(ctx context.Context, tx store.Tx, state *State) error {
	stmt := statementFromExtraction(state.DocumentID, state.Statement)
	if err := tx.CreateBankStatement(ctx, stmt); err != nil {
		return err
	}
	txns := transactionsFromExtraction(state.Statement.Transactions)
	if err := tx.CreateBankTransactions(ctx, stmt.ID, txns); err != nil {
		return err
	}

	state.Result = Result{
		DocumentID:       state.DocumentID,
		Kind:             state.Kind,
		StatementID:      &stmt.ID,
		TransactionCount: len(txns),
	}
	return nil
}
