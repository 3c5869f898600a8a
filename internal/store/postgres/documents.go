package postgres

import (
	"context"
	"time"

	"github.com/dvloznov/finance-reconciler/internal/domain"
)

const documentColumns = `id, file_name, file_type, original_text, COALESCE(source_uri, ''),
	processing_status, COALESCE(processing_error, ''), created_at, updated_at`

func scanDocument(row scanner) (*domain.Document, error) {
	var d domain.Document
	if err := row.Scan(&d.ID, &d.FileName, &d.Kind, &d.OriginalText, &d.SourceURI,
		&d.Status, &d.ProcessingError, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repository) CreateDocument(ctx context.Context, doc *domain.Document) error {
	if _, err := domain.ParseDocumentKind(string(doc.Kind)); err != nil {
		return err
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO documents (file_name, file_type, original_text, source_uri)
		VALUES ($1, $2, $3, $4)
		RETURNING id, processing_status, created_at, updated_at
	`, doc.FileName, string(doc.Kind), doc.OriginalText, nullString(doc.SourceURI)).
		Scan(&doc.ID, &doc.Status, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return persistenceErr("insert document", err)
	}
	doc.ProcessingError = ""
	return nil
}

func (r *Repository) GetDocument(ctx context.Context, id int64) (*domain.Document, error) {
	doc, err := scanDocument(r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr("get document", "document", id, err)
	}
	return doc, nil
}

func (r *Repository) ListDocuments(ctx context.Context, limit int) ([]*domain.Document, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, lim)
	if err != nil {
		return nil, persistenceErr("list documents", err)
	}
	defer rows.Close()

	out := make([]*domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, persistenceErr("scan document", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("list documents", err)
	}
	return out, nil
}

func (r *Repository) TransitionDocument(ctx context.Context, id int64, from, to domain.ProcessingStatus, errMsg string) error {
	return transitionDocument(ctx, r.pool, id, from, to, errMsg)
}

// transitionDocument is a compare-and-set on processing_status.
func transitionDocument(ctx context.Context, q querier, id int64, from, to domain.ProcessingStatus, errMsg string) error {
	if !domain.CanTransition(from, to) {
		return domain.NewConflict("document %d cannot move from %s to %s", id, from, to)
	}
	var msg *string
	if to == domain.StatusError {
		m := domain.TruncateError(errMsg)
		msg = &m
	}
	tag, err := q.Exec(ctx, `
		UPDATE documents
		SET processing_status = $3,
		    processing_error = COALESCE($4, processing_error),
		    updated_at = now()
		WHERE id = $1 AND processing_status = $2
	`, id, string(from), string(to), msg)
	if err != nil {
		return persistenceErr("transition document", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var current domain.ProcessingStatus
	err = q.QueryRow(ctx, `SELECT processing_status FROM documents WHERE id = $1`, id).Scan(&current)
	if err != nil {
		return notFoundOr("transition document", "document", id, err)
	}
	return domain.NewConflict("document %d is %s, not %s", id, current, from)
}

func (r *Repository) FailStaleDocuments(ctx context.Context, cutoff time.Time, errMsg string) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE documents
		SET processing_status = 'error',
		    processing_error = $2,
		    updated_at = now()
		WHERE processing_status IN ('pending', 'processing') AND updated_at < $1
	`, cutoff, domain.TruncateError(errMsg))
	if err != nil {
		return 0, persistenceErr("fail stale documents", err)
	}
	return int(tag.RowsAffected()), nil
}
