package bigquery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-reconciler/internal/domain"
	"github.com/dvloznov/finance-reconciler/internal/pipeline"
)

func TestRowFromOutput(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		out       pipeline.ModelOutput
		wantJSON  bool
		wantError bool
		wantModel string
	}{
		{
			name:      "valid json",
			out:       pipeline.ModelOutput{DocumentID: 7, Kind: domain.KindInvoice, ModelName: "gemini-2.5-flash", RawText: `{"invoiceNumber":"INV-1"}`, CreatedAt: created},
			wantJSON:  true,
			wantModel: "gemini-2.5-flash",
		},
		{
			name:      "unparseable output with error",
			out:       pipeline.ModelOutput{DocumentID: 7, Kind: domain.KindBankStatement, ModelName: "m", RawText: "not json", ErrorMessage: "bad output", CreatedAt: created},
			wantError: true,
			wantModel: "m",
		},
		{
			name:      "missing model",
			out:       pipeline.ModelOutput{DocumentID: 7, Kind: domain.KindInvoice, RawText: "{}", CreatedAt: created},
			wantJSON:  true,
			wantModel: "unknown",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := rowFromOutput(&tt.out)
			require.NotEmpty(t, row.OutputID)
			assert.Equal(t, "7", row.DocumentID)
			assert.Equal(t, string(tt.out.Kind), row.FileType)
			assert.Equal(t, tt.wantModel, row.ModelName)
			assert.Equal(t, tt.wantJSON, row.RawJSON.Valid)
			assert.True(t, row.ExtractedText.Valid)
			assert.Equal(t, tt.out.RawText, row.ExtractedText.StringVal)
			assert.Equal(t, tt.wantError, row.ErrorMessage.Valid)
			assert.True(t, row.CreatedTS.Timestamp.Equal(created))
		})
	}
}

func TestInsertModelOutputSQL(t *testing.T) {
	table := tableRef("proj", "finance", modelOutputsTable)
	assert.Equal(t, "`proj.finance.model_outputs`", table)

	sql := insertModelOutputSQL(table)
	row := rowFromOutput(&pipeline.ModelOutput{DocumentID: 1, Kind: domain.KindInvoice, RawText: "{}"})
	for _, p := range modelOutputParams(row) {
		assert.Contains(t, sql, "@"+p.Name)
	}
}
