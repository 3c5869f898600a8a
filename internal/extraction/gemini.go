package extraction

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/dvloznov/finance-reconciler/internal/domain"
)

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.5-flash"

// generator is the subset of *genai.Models the oracle calls.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiOracle is the Oracle backed by the Gemini API.
type GeminiOracle struct {
	models generator
	model  string
}

// NewGeminiOracle creates a Gemini client. An empty apiKey falls back to the
// GOOGLE_API_KEY / GEMINI_API_KEY environment variables read by genai.
func NewGeminiOracle(ctx context.Context, model, apiKey string) (*GeminiOracle, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1beta"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiOracle: create genai client: %w", err)
	}
	return newGeminiOracle(client.Models, model), nil
}

func newGeminiOracle(models generator, model string) *GeminiOracle {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiOracle{models: models, model: model}
}

func (o *GeminiOracle) ExtractInvoice(ctx context.Context, text string) (*InvoiceExtraction, RawOutput, error) {
	raw, obj, err := o.generate(ctx, invoicePrompt+text)
	if err != nil {
		return nil, raw, &domain.ExtractionError{Kind: domain.KindInvoice, Err: err}
	}
	inv, err := ParseInvoice(obj)
	if err != nil {
		return nil, raw, &domain.ExtractionError{Kind: domain.KindInvoice, Err: err}
	}
	return inv, raw, nil
}

func (o *GeminiOracle) ExtractBankStatement(ctx context.Context, text string) (*StatementExtraction, RawOutput, error) {
	raw, obj, err := o.generate(ctx, statementPrompt+text)
	if err != nil {
		return nil, raw, &domain.ExtractionError{Kind: domain.KindBankStatement, Err: err}
	}
	stmt, err := ParseStatement(obj)
	if err != nil {
		return nil, raw, &domain.ExtractionError{Kind: domain.KindBankStatement, Err: err}
	}
	return stmt, raw, nil
}

func (o *GeminiOracle) generate(ctx context.Context, prompt string) (RawOutput, map[string]any, error) {
	raw := RawOutput{Model: o.model}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.1),
		ResponseMIMEType: "application/json",
	}

	resp, err := o.models.GenerateContent(ctx, o.model, contents, config)
	if err != nil {
		return raw, nil, fmt.Errorf("generate content: %w", err)
	}
	raw.Text = resp.Text()
	if raw.Text == "" {
		return raw, nil, fmt.Errorf("empty response from model")
	}

	obj, err := decodeObject(raw.Text)
	if err != nil {
		return raw, nil, err
	}
	return raw, obj, nil
}

var _ Oracle = (*GeminiOracle)(nil)
