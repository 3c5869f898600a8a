package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-reconciler/internal/domain"
)

// cleanModelJSON strips Markdown fences and any text around the outermost
// JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}

// decodeObject parses model output into a generic object. Numbers are kept
// as json.Number so amounts survive without float rounding.
func decodeObject(raw string) (map[string]any, error) {
	clean := cleanModelJSON(raw)
	if clean == "" {
		return nil, fmt.Errorf("empty response from model")
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(clean)))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}
	if obj == nil {
		return nil, fmt.Errorf("response is not a JSON object")
	}
	return obj, nil
}

// ParseInvoice normalises a decoded invoice object.
func ParseInvoice(obj map[string]any) (*InvoiceExtraction, error) {
	var (
		out InvoiceExtraction
		err error
	)
	if out.ClientName, err = getStringField(obj, "clientName", true); err != nil {
		return nil, err
	}
	if out.InvoiceNumber, err = getStringField(obj, "invoiceNumber", true); err != nil {
		return nil, err
	}
	out.InvoiceNumber = strings.TrimSpace(out.InvoiceNumber)
	if out.IssueDate, err = getOptionalDateField(obj, "issueDate"); err != nil {
		return nil, err
	}
	if out.DueDate, err = getOptionalDateField(obj, "dueDate"); err != nil {
		return nil, err
	}
	if out.TotalAmount, err = getOptionalDecimalField(obj, "totalAmount"); err != nil {
		return nil, err
	}
	if out.TaxAmount, err = getOptionalDecimalField(obj, "taxAmount"); err != nil {
		return nil, err
	}
	if out.Currency, err = getCurrencyField(obj); err != nil {
		return nil, err
	}
	if out.Metadata, err = getMetadataField(obj); err != nil {
		return nil, err
	}

	items, err := getArrayField(obj, "items")
	if err != nil {
		return nil, err
	}
	out.Items = make([]ItemExtraction, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("item %d is %T, want object", i, item)
		}
		var it ItemExtraction
		if it.Description, err = getStringField(m, "description", true); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if it.Quantity, err = getDecimalField(m, "quantity"); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if it.UnitPrice, err = getDecimalField(m, "unitPrice"); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if it.TotalPrice, err = getDecimalField(m, "totalPrice"); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out.Items = append(out.Items, it)
	}
	return &out, nil
}

// ParseStatement normalises a decoded bank statement object. Negative
// transaction amounts are folded to their magnitude.
func ParseStatement(obj map[string]any) (*StatementExtraction, error) {
	var (
		out StatementExtraction
		err error
	)
	if out.BankName, err = getStringField(obj, "bankName", false); err != nil {
		return nil, err
	}
	if out.AccountNumber, err = getStringField(obj, "accountNumber", false); err != nil {
		return nil, err
	}
	if out.StatementDate, err = getOptionalDateField(obj, "statementDate"); err != nil {
		return nil, err
	}
	if out.StartingBalance, err = getDecimalField(obj, "startingBalance"); err != nil {
		return nil, err
	}
	if out.EndingBalance, err = getDecimalField(obj, "endingBalance"); err != nil {
		return nil, err
	}
	if out.Currency, err = getCurrencyField(obj); err != nil {
		return nil, err
	}
	if out.Metadata, err = getMetadataField(obj); err != nil {
		return nil, err
	}

	txns, err := getArrayField(obj, "transactions")
	if err != nil {
		return nil, err
	}
	out.Transactions = make([]TransactionExtraction, 0, len(txns))
	for i, item := range txns {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("transaction %d is %T, want object", i, item)
		}
		var t TransactionExtraction
		if t.Date, err = getOptionalDateField(m, "date"); err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		if t.Description, err = getStringField(m, "description", true); err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		if t.Amount, err = getDecimalField(m, "amount"); err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		t.Amount = t.Amount.Abs()

		typ, err := getStringField(m, "type", true)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		if t.Type, err = domain.ParseTransactionType(strings.ToLower(strings.TrimSpace(typ))); err != nil {
			return nil, fmt.Errorf("transaction %d: invalid type %q", i, typ)
		}
		if t.Reference, err = getOptionalStringField(m, "reference"); err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		if t.SenderReceiver, err = getOptionalStringField(m, "senderReceiver"); err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		out.Transactions = append(out.Transactions, t)
	}
	return &out, nil
}

func getStringField(m map[string]any, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	val, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
	if required && strings.TrimSpace(val) == "" {
		return "", fmt.Errorf("required field %q is empty", key)
	}
	return val, nil
}

func getOptionalStringField(m map[string]any, key string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	val, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("field %q has type %T, want string or null", key, v)
	}
	s := strings.TrimSpace(val)
	if s == "" {
		return nil, nil
	}
	return &s, nil
}

func toDecimal(key string, v any) (decimal.Decimal, error) {
	switch val := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %q: invalid number %q", key, val)
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(val), nil
	case string:
		d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(val), ",", ""))
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %q: invalid number %q", key, val)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("field %q has type %T, want number", key, v)
	}
}

func getDecimalField(m map[string]any, key string) (decimal.Decimal, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return decimal.Zero, fmt.Errorf("missing required field %q", key)
	}
	return toDecimal(key, v)
}

func getOptionalDecimalField(m map[string]any, key string) (decimal.NullDecimal, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := toDecimal(key, v)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

// getOptionalDateField accepts YYYY-MM-DD and full RFC 3339 timestamps.
func getOptionalDateField(m map[string]any, key string) (*civil.Date, error) {
	s, err := getOptionalStringField(m, key)
	if err != nil || s == nil {
		return nil, err
	}
	if d, err := civil.ParseDate(*s); err == nil {
		return &d, nil
	}
	ts, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil, fmt.Errorf("field %q: invalid date %q", key, *s)
	}
	d := civil.DateOf(ts)
	return &d, nil
}

func getCurrencyField(m map[string]any) (string, error) {
	c, err := getOptionalStringField(m, "currency")
	if err != nil {
		return "", err
	}
	if c == nil {
		return domain.DefaultCurrency, nil
	}
	return strings.ToUpper(*c), nil
}

func getMetadataField(m map[string]any) (map[string]any, error) {
	v, ok := m["metadata"]
	if !ok || v == nil {
		return map[string]any{}, nil
	}
	md, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("field %q has type %T, want object", "metadata", v)
	}
	return md, nil
}

func getArrayField(m map[string]any, key string) ([]any, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("field %q has type %T, want array", key, v)
	}
	return arr, nil
}
