package domain

import (
	"time"
)

// DocumentKind identifies what an uploaded file contains.
type DocumentKind string

const (
	KindInvoice       DocumentKind = "invoice"
	KindBankStatement DocumentKind = "bank_statement"
)

// ParseDocumentKind validates a kind tag coming from the upload boundary.
func ParseDocumentKind(s string) (DocumentKind, error) {
	switch k := DocumentKind(s); k {
	case KindInvoice, KindBankStatement:
		return k, nil
	default:
		return "", &ValidationError{Field: "fileType", Message: "must be invoice or bank_statement"}
	}
}

// ProcessingStatus is the lifecycle state of a Document.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusProcessed  ProcessingStatus = "processed"
	StatusError      ProcessingStatus = "error"
)

// Terminal reports whether no further transition is possible.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusProcessed || s == StatusError
}

// CanTransition reports whether a document may move from one status to another.
// Statuses only move forward: pending -> processing -> processed | error.
func CanTransition(from, to ProcessingStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusProcessed || to == StatusError
	default:
		return false
	}
}

// MaxErrorMessageLen caps the processing error stored on a document.
const MaxErrorMessageLen = 2000

// TruncateError shortens an error message to MaxErrorMessageLen bytes.
func TruncateError(msg string) string {
	if len(msg) > MaxErrorMessageLen {
		return msg[:MaxErrorMessageLen]
	}
	return msg
}

// Document is one uploaded source file and its processing state.
type Document struct {
	ID              int64            `json:"id"`
	FileName        string           `json:"fileName"`
	Kind            DocumentKind     `json:"fileType"`
	OriginalText    string           `json:"originalText,omitempty"`
	SourceURI       string           `json:"sourceUri,omitempty"`
	Status          ProcessingStatus `json:"processingStatus"`
	ProcessingError string           `json:"processingError,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}
