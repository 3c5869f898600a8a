package extraction

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/dvloznov/finance-reconciler/internal/domain"
)

type fakeGenerator struct {
	text   string
	err    error
	model  string
	prompt string
	config *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(f.text, genai.RoleModel)}},
	}, nil
}

func TestGeminiOracleExtractInvoice(t *testing.T) {
	gen := &fakeGenerator{text: "```json\n{\"clientName\":\"Acme Corp\",\"invoiceNumber\":\"INV-1\",\"totalAmount\":1200,\"items\":[]}\n```"}
	oracle := newGeminiOracle(gen, "")

	inv, raw, err := oracle.ExtractInvoice(context.Background(), "INVOICE INV-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", inv.ClientName)
	assert.Equal(t, DefaultModelName, gen.model)
	assert.Equal(t, DefaultModelName, raw.Model)
	assert.Contains(t, raw.Text, "INV-1")
	assert.Contains(t, gen.prompt, "INVOICE INV-1")
	assert.Equal(t, "application/json", gen.config.ResponseMIMEType)
}

func TestGeminiOracleExtractBankStatement(t *testing.T) {
	gen := &fakeGenerator{text: `{"bankName":"B","startingBalance":0,"endingBalance":5,"transactions":[{"description":"x","amount":5,"type":"credit"}]}`}
	oracle := newGeminiOracle(gen, "gemini-test")

	stmt, _, err := oracle.ExtractBankStatement(context.Background(), "STATEMENT")
	require.NoError(t, err)
	assert.Len(t, stmt.Transactions, 1)
	assert.Equal(t, "gemini-test", gen.model)
}

func TestGeminiOracleFailures(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"transport", &fakeGenerator{err: errors.New("connection reset")}},
		{"empty", &fakeGenerator{text: ""}},
		{"malformed", &fakeGenerator{text: "I could not read this document"}},
		{"contract", &fakeGenerator{text: `{"invoiceNumber":"1"}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := newGeminiOracle(tt.gen, "").ExtractInvoice(context.Background(), "text")
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrExtraction)

			var extErr *domain.ExtractionError
			require.ErrorAs(t, err, &extErr)
			assert.Equal(t, domain.KindInvoice, extErr.Kind)
			assert.False(t, extErr.Timeout)
		})
	}
}
