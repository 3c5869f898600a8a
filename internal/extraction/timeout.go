package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/finance-reconciler/internal/domain"
)

// WithTimeout bounds every call to next by d. A call that outlives d fails
// with an ExtractionError whose Timeout flag is set.
func WithTimeout(next Oracle, d time.Duration) Oracle {
	if d <= 0 {
		return next
	}
	return &timeoutOracle{next: next, timeout: d}
}

type timeoutOracle struct {
	next    Oracle
	timeout time.Duration
}

func (o *timeoutOracle) ExtractInvoice(ctx context.Context, text string) (*InvoiceExtraction, RawOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	inv, raw, err := runBounded(ctx, func() (*InvoiceExtraction, RawOutput, error) {
		return o.next.ExtractInvoice(ctx, text)
	})
	return inv, raw, o.mapErr(ctx, domain.KindInvoice, err)
}

func (o *timeoutOracle) ExtractBankStatement(ctx context.Context, text string) (*StatementExtraction, RawOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	stmt, raw, err := runBounded(ctx, func() (*StatementExtraction, RawOutput, error) {
		return o.next.ExtractBankStatement(ctx, text)
	})
	return stmt, raw, o.mapErr(ctx, domain.KindBankStatement, err)
}

func (o *timeoutOracle) mapErr(ctx context.Context, kind domain.DocumentKind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &domain.ExtractionError{
			Kind:    kind,
			Timeout: true,
			Err:     fmt.Errorf("extraction timed out after %s", o.timeout),
		}
	}
	var extErr *domain.ExtractionError
	if errors.As(err, &extErr) {
		return err
	}
	return &domain.ExtractionError{Kind: kind, Err: err}
}

type result[T any] struct {
	val *T
	raw RawOutput
	err error
}

// runBounded returns when fn does or when ctx ends, whichever comes first, so
// an oracle that ignores its context still cannot hang the caller.
func runBounded[T any](ctx context.Context, fn func() (*T, RawOutput, error)) (*T, RawOutput, error) {
	done := make(chan result[T], 1)
	go func() {
		v, raw, err := fn()
		done <- result[T]{val: v, raw: raw, err: err}
	}()
	select {
	case r := <-done:
		return r.val, r.raw, r.err
	case <-ctx.Done():
		return nil, RawOutput{}, ctx.Err()
	}
}
