package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/option"

	"github.com/dvloznov/finance-reconciler/internal/pipeline"
)

// OutputSink writes model outputs to BigQuery. It implements pipeline.OutputSink.
type OutputSink struct {
	client  *bigquery.Client
	project string
	dataset string
}

// NewOutputSink creates a BigQuery client for project. An empty
// credentialsFile uses Application Default Credentials.
func NewOutputSink(ctx context.Context, project, dataset, credentialsFile string) (*OutputSink, error) {
	if project == "" || dataset == "" {
		return nil, fmt.Errorf("NewOutputSink: project and dataset are required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewOutputSink: creating client: %w", err)
	}
	return &OutputSink{client: client, project: project, dataset: dataset}, nil
}

// Close closes the BigQuery client connection.
func (s *OutputSink) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// RecordModelOutput implements pipeline.OutputSink.
func (s *OutputSink) RecordModelOutput(ctx context.Context, out *pipeline.ModelOutput) error {
	return InsertModelOutputWithClient(ctx, s.client, s.tableRef(), rowFromOutput(out))
}

func (s *OutputSink) tableRef() string {
	return tableRef(s.project, s.dataset, modelOutputsTable)
}

func tableRef(project, dataset, table string) string {
	return "`" + project + "." + dataset + "." + table + "`"
}

func insertModelOutputSQL(table string) string {
	return `
		INSERT INTO ` + table + ` (
			output_id, document_id, file_type, model_name,
			raw_json, extracted_text, created_ts, error_message
		)
		VALUES (
			@output_id, @document_id, @file_type, @model_name,
			@raw_json, @extracted_text, @created_ts, @error_message
		)
	`
}

func modelOutputParams(row *ModelOutputRow) []bigquery.QueryParameter {
	return []bigquery.QueryParameter{
		{Name: "output_id", Value: row.OutputID},
		{Name: "document_id", Value: row.DocumentID},
		{Name: "file_type", Value: row.FileType},
		{Name: "model_name", Value: row.ModelName},
		{Name: "raw_json", Value: row.RawJSON},
		{Name: "extracted_text", Value: row.ExtractedText},
		{Name: "created_ts", Value: row.CreatedTS},
		{Name: "error_message", Value: row.ErrorMessage},
	}
}

// InsertModelOutputWithClient inserts a single ModelOutputRow into table
// using the provided BigQuery client. Uses DML INSERT to avoid streaming buffer issues.
func InsertModelOutputWithClient(ctx context.Context, client *bigquery.Client, table string, row *ModelOutputRow) error {
	q := client.Query(insertModelOutputSQL(table))
	q.Parameters = modelOutputParams(row)

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("InsertModelOutput: running insert query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("InsertModelOutput: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("InsertModelOutput: job error: %w", err)
	}
	return nil
}

var _ pipeline.OutputSink = (*OutputSink)(nil)
