// Package jobs defines asynchronous document ingestion jobs and the queue
// contracts that carry them.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/finance-reconciler/internal/domain"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
)

// ErrQueueClosed is returned when publishing to or starting a stopped queue.
var ErrQueueClosed = errors.New("queue is closed")

// IngestDocumentJob runs the ingestion pipeline for one uploaded document.
// Jobs are attempted once; a failure is recorded on the document itself.
type IngestDocumentJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"jobId"`

	// DocumentID is the document to ingest.
	DocumentID int64 `json:"documentId"`

	// Kind is the declared document kind.
	Kind domain.DocumentKind `json:"fileType"`

	// Text is the document text handed to the extraction oracle.
	Text string `json:"-"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"createdAt"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"startedAt,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishIngest enqueues an ingestion job. It fills in JobID, Status and
	// CreatedAt when they are unset.
	PublishIngest(ctx context.Context, job *IngestDocumentJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler Handler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// Handler processes one job. A returned error marks the job failed.
type Handler func(ctx context.Context, job *IngestDocumentJob) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *IngestDocumentJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*IngestDocumentJob, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*IngestDocumentJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// DocumentID filters jobs by document ID.
	DocumentID int64

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
