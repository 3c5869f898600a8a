package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-reconciler/internal/api/middleware"
	"github.com/dvloznov/finance-reconciler/internal/domain"
	"github.com/dvloznov/finance-reconciler/internal/jobs"
	"github.com/dvloznov/finance-reconciler/internal/store"
)

const (
	// DefaultMaxUploadSize is the largest accepted upload.
	DefaultMaxUploadSize = 10 << 20

	recentDocuments = 10

	// multipartOverhead leaves room for form fields and boundaries.
	multipartOverhead = 1 << 20
)

// Archiver stores the original bytes of an upload and returns their URI.
type Archiver interface {
	Archive(ctx context.Context, kind domain.DocumentKind, fileName string, data []byte) (string, error)
}

// DocumentsHandler handles document-related endpoints.
type DocumentsHandler struct {
	docs      store.DocumentStore
	publisher jobs.Publisher
	archiver  Archiver
	maxUpload int64
	log       zerolog.Logger
}

// NewDocumentsHandler creates a new documents handler. archiver may be nil.
func NewDocumentsHandler(docs store.DocumentStore, publisher jobs.Publisher, archiver Archiver, maxUpload int64, log zerolog.Logger) *DocumentsHandler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadSize
	}
	return &DocumentsHandler{
		docs:      docs,
		publisher: publisher,
		archiver:  archiver,
		maxUpload: maxUpload,
		log:       log,
	}
}

type upload struct {
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	Text     string `json:"text"`
	data     []byte
}

// Upload handles POST /api/documents/upload
func (h *DocumentsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := requestLogger(r, h.log)

	up, err := h.readUpload(w, r)
	if err != nil {
		middleware.WriteDomainError(w, log, err, "Failed to read upload")
		return
	}
	kind, err := domain.ParseDocumentKind(up.FileType)
	if err != nil {
		middleware.WriteDomainError(w, log, err, "Invalid file type")
		return
	}
	text, err := documentText(up)
	if err != nil {
		middleware.WriteDomainError(w, log, err, "Invalid upload")
		return
	}

	doc := &domain.Document{
		FileName:     cleanFileName(up.FileName),
		Kind:         kind,
		OriginalText: text,
	}
	if h.archiver != nil && len(up.data) > 0 {
		uri, err := h.archiver.Archive(ctx, kind, doc.FileName, up.data)
		if err != nil {
			log.Warn().Err(err).Str("file_name", doc.FileName).Msg("Failed to archive upload")
		} else {
			doc.SourceURI = uri
		}
	}

	if err := h.docs.CreateDocument(ctx, doc); err != nil {
		middleware.WriteDomainError(w, log, err, "Failed to save document")
		return
	}

	job := &jobs.IngestDocumentJob{DocumentID: doc.ID, Kind: kind, Text: text}
	if err := h.publisher.PublishIngest(ctx, job); err != nil {
		log.Error().Err(err).Int64("document_id", doc.ID).Msg("Failed to enqueue ingestion job")
		h.abandon(ctx, log, doc, err)
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to start processing")
		return
	}

	log.Info().
		Int64("document_id", doc.ID).
		Str("job_id", job.JobID).
		Str("kind", string(kind)).
		Msg("Document uploaded")

	middleware.WriteJSON(w, http.StatusCreated, map[string]any{
		"message":  "File uploaded successfully. Processing started.",
		"document": doc,
		"jobId":    job.JobID,
	})
}

// abandon moves a document that could not be queued to error so it does not
// sit in pending forever.
func (h *DocumentsHandler) abandon(ctx context.Context, log zerolog.Logger, doc *domain.Document, cause error) {
	ctx = context.WithoutCancel(ctx)
	msg := domain.TruncateError(fmt.Sprintf("could not queue document: %v", cause))
	if err := h.docs.TransitionDocument(ctx, doc.ID, domain.StatusPending, domain.StatusProcessing, ""); err != nil {
		log.Error().Err(err).Int64("document_id", doc.ID).Msg("Failed to mark unqueued document")
		return
	}
	if err := h.docs.TransitionDocument(ctx, doc.ID, domain.StatusProcessing, domain.StatusError, msg); err != nil {
		log.Error().Err(err).Int64("document_id", doc.ID).Msg("Failed to mark unqueued document")
	}
}

func (h *DocumentsHandler) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var up upload
		if err := decodeJSONLimit(w, r, &up, h.maxUpload+multipartOverhead); err != nil {
			return nil, err
		}
		return &up, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, err
		}
		return nil, &domain.ValidationError{Message: fmt.Sprintf("invalid multipart form: %v", err)}
	}
	up := &upload{
		FileType: r.FormValue("fileType"),
		Text:     r.FormValue("text"),
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, &domain.ValidationError{Field: "file", Message: "is required"}
	}
	defer file.Close()
	if header.Size > h.maxUpload {
		return nil, &http.MaxBytesError{Limit: h.maxUpload}
	}
	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > h.maxUpload {
		return nil, &http.MaxBytesError{Limit: h.maxUpload}
	}
	up.FileName = header.Filename
	up.data = data
	return up, nil
}

// documentText returns the text to extract from. Plain text files stand in
// for their own text; binary files such as PDFs need it supplied.
func documentText(up *upload) (string, error) {
	if strings.TrimSpace(up.Text) != "" {
		return up.Text, nil
	}
	if len(up.data) > 0 && utf8.Valid(up.data) && !bytes.HasPrefix(up.data, []byte("%PDF")) {
		if text := string(up.data); strings.TrimSpace(text) != "" {
			return text, nil
		}
	}
	return "", &domain.ValidationError{Field: "text", Message: "is required"}
}

func cleanFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "document"
	}
	return name
}

// Recent handles GET /api/documents/recent
func (h *DocumentsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	docs, err := h.docs.ListDocuments(r.Context(), recentDocuments)
	if err != nil {
		middleware.WriteDomainError(w, requestLogger(r, h.log), err, "Failed to list documents")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"count":     len(docs),
	})
}

// Get handles GET /api/documents/{id}
func (h *DocumentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.log)
	id, err := pathID(r, "id")
	if err != nil {
		middleware.WriteDomainError(w, log, err, "Invalid document id")
		return
	}
	doc, err := h.docs.GetDocument(r.Context(), id)
	if err != nil {
		middleware.WriteDomainError(w, log, err, "Failed to get document")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, doc)
}
