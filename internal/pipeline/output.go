package pipeline

import (
	"context"
	"time"

	"github.com/dvloznov/finance-reconciler/internal/domain"
)

// ModelOutput is one raw oracle response kept for audit and prompt tuning.
type ModelOutput struct {
	DocumentID   int64
	Kind         domain.DocumentKind
	ModelName    string
	RawText      string
	ErrorMessage string
	CreatedAt    time.Time
}

// OutputSink receives raw oracle output.
type OutputSink interface {
	RecordModelOutput(ctx context.Context, out *ModelOutput) error
}

// NopSink discards model output.
type NopSink struct{}

func (NopSink) RecordModelOutput(context.Context, *ModelOutput) error { return nil }
