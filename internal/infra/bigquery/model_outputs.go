// Package bigquery archives raw extraction model output in BigQuery.
package bigquery

import (
	"encoding/json"
	"strconv"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	"github.com/dvloznov/finance-reconciler/internal/pipeline"
)

const modelOutputsTable = "model_outputs"

// ModelOutputRow is one row of <dataset>.model_outputs.
type ModelOutputRow struct {
	OutputID   string `bigquery:"output_id"`   // REQUIRED
	DocumentID string `bigquery:"document_id"` // REQUIRED
	FileType   string `bigquery:"file_type"`   // REQUIRED

	ModelName string `bigquery:"model_name"` // REQUIRED

	RawJSON       bigquery.NullJSON   `bigquery:"raw_json"`       // NULLABLE (JSON)
	ExtractedText bigquery.NullString `bigquery:"extracted_text"` // NULLABLE

	CreatedTS    bigquery.NullTimestamp `bigquery:"created_ts"`    // REQUIRED
	ErrorMessage bigquery.NullString    `bigquery:"error_message"` // NULLABLE
}

// rowFromOutput keeps the raw text verbatim and also stores it as JSON when
// it parses as JSON.
func rowFromOutput(out *pipeline.ModelOutput) *ModelOutputRow {
	row := &ModelOutputRow{
		OutputID:      uuid.New().String(),
		DocumentID:    strconv.FormatInt(out.DocumentID, 10),
		FileType:      string(out.Kind),
		ModelName:     out.ModelName,
		ExtractedText: bigquery.NullString{StringVal: out.RawText, Valid: out.RawText != ""},
		CreatedTS:     bigquery.NullTimestamp{Timestamp: out.CreatedAt, Valid: !out.CreatedAt.IsZero()},
		ErrorMessage:  bigquery.NullString{StringVal: out.ErrorMessage, Valid: out.ErrorMessage != ""},
	}
	if out.RawText != "" && json.Valid([]byte(out.RawText)) {
		row.RawJSON = bigquery.NullJSON{JSONVal: out.RawText, Valid: true}
	}
	if row.ModelName == "" {
		row.ModelName = "unknown"
	}
	return row
}
