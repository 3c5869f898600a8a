// Package pipeline turns an uploaded document into persisted domain records.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-reconciler/internal/domain"
	"github.com/dvloznov/finance-reconciler/internal/extraction"
	"github.com/dvloznov/finance-reconciler/internal/logger"
	"github.com/dvloznov/finance-reconciler/internal/store"
)

// failureMarkTimeout bounds the write that records a failed run, which must
// happen even when the run's own context is already done.
const failureMarkTimeout = 10 * time.Second

// Result summarises one successful ingestion.
type Result struct {
	DocumentID       int64               `json:"documentId"`
	Kind             domain.DocumentKind `json:"kind"`
	ClientID         *int64              `json:"clientId,omitempty"`
	InvoiceID        *int64              `json:"invoiceId,omitempty"`
	StatementID      *int64              `json:"bankStatementId,omitempty"`
	ItemCount        int                 `json:"itemCount"`
	TransactionCount int                 `json:"transactionCount"`
}

// Ingester runs the ingestion pipeline for single documents. It holds no
// per-document state, so one Ingester serves any number of concurrent runs.
type Ingester struct {
	repo   store.Repository
	oracle extraction.Oracle
	sink   OutputSink
	log    zerolog.Logger
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithOutputSink archives raw oracle output to sink.
func WithOutputSink(sink OutputSink) Option {
	return func(in *Ingester) { in.sink = sink }
}

// WithLogger sets the logger used for runs whose context carries none.
func WithLogger(log zerolog.Logger) Option {
	return func(in *Ingester) { in.log = log }
}

// NewIngester creates an Ingester.
func NewIngester(repo store.Repository, oracle extraction.Oracle, opts ...Option) *Ingester {
	in := &Ingester{
		repo:   repo,
		oracle: oracle,
		sink:   NopSink{},
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Ingest processes one pending document. Invalid input is rejected before the
// document is touched. Once the document is processing, every failure leaves
// it in error with the failure described and no derived records.
func (in *Ingester) Ingest(ctx context.Context, documentID int64, kind domain.DocumentKind, text string) (*Result, error) {
	state := &State{DocumentID: documentID, Kind: kind, Text: text}
	if err := (&ValidateStep{}).Execute(ctx, state); err != nil {
		return nil, err
	}

	log := logger.ForDocument(in.logger(ctx), documentID, string(kind))
	ctx = logger.WithContext(ctx, log)
	log.Info().Msg("Starting ingestion")

	if err := (&MarkProcessingStep{docs: in.repo}).Execute(ctx, state); err != nil {
		log.Warn().Err(err).Msg("Document not claimed")
		return nil, err
	}

	err := newIngestionPipeline(in).Execute(ctx, state)
	if err != nil {
		in.fail(ctx, state, err)
		return nil, err
	}

	log.Info().
		Int("items", state.Result.ItemCount).
		Int("transactions", state.Result.TransactionCount).
		Msg("Document processed")
	return &state.Result, nil
}

func (in *Ingester) logger(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(logger.LoggerKey).(zerolog.Logger); ok {
		return l
	}
	return in.log
}

// fail records err on the document. A persist failure has already rolled back
// every derived row, so only the status is left to write.
func (in *Ingester) fail(ctx context.Context, state *State, err error) {
	log := in.logger(ctx)
	msg := failureMessage(err)
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureMarkTimeout)
	defer cancel()

	if !state.archived && state.Raw.Text != "" {
		in.archive(markCtx, state, msg)
	}
	if markErr := in.repo.TransitionDocument(markCtx, state.DocumentID, domain.StatusProcessing, domain.StatusError, msg); markErr != nil {
		log.Error().Err(markErr).Str("cause", msg).Msg("Failed to record ingestion failure")
		return
	}
	log.Error().Err(err).Msg("Ingestion failed")
}

func (in *Ingester) archive(ctx context.Context, state *State, errMsg string) {
	out := &ModelOutput{
		DocumentID:   state.DocumentID,
		Kind:         state.Kind,
		ModelName:    state.Raw.Model,
		RawText:      state.Raw.Text,
		ErrorMessage: errMsg,
		CreatedAt:    time.Now().UTC(),
	}
	state.archived = true
	if err := in.sink.RecordModelOutput(ctx, out); err != nil {
		log := in.logger(ctx)
		log.Warn().Err(err).Msg("Failed to archive model output")
	}
}

// failureMessage is the human readable cause without the step prefix.
func failureMessage(err error) string {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		err = stepErr.Err
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		msg = "ingestion failed"
	}
	return domain.TruncateError(msg)
}

// StepError identifies the pipeline step that failed.
type StepError struct {
	Step int
	Name string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("pipeline step %d (%s) failed: %v", e.Step, e.Name, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []Step
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially and stops at the first failure.
func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return &StepError{Step: i + 1, Name: step.Name(), Err: err}
		}
	}
	return nil
}

func newIngestionPipeline(in *Ingester) *Pipeline {
	return NewPipeline(
		&ExtractStep{oracle: in.oracle},
		&ArchiveOutputStep{archive: in.archive},
		&PersistStep{repo: in.repo},
	)
}
