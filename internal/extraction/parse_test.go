package extraction

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-reconciler/internal/domain"
)

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding prose", "Here you go:\n{\"a\":{\"b\":2}}\nThanks", `{"a":{"b":2}}`},
		{"whitespace", "  \n{\"a\":1}\n  ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanModelJSON(tt.raw))
		})
	}
}

func TestDecodeObject(t *testing.T) {
	_, err := decodeObject("")
	assert.Error(t, err)

	_, err = decodeObject("not json at all")
	assert.Error(t, err)

	_, err = decodeObject("null")
	assert.Error(t, err)

	obj, err := decodeObject(`{"totalAmount": 1200.10}`)
	require.NoError(t, err)
	d, err := getDecimalField(obj, "totalAmount")
	require.NoError(t, err)
	assert.Equal(t, "1200.1", d.String())
}

func TestParseInvoice(t *testing.T) {
	obj, err := decodeObject(`{
		"clientName": "Acme Corp",
		"invoiceNumber": "INV-1",
		"issueDate": "2025-03-01",
		"dueDate": "2025-03-31T00:00:00Z",
		"totalAmount": 1200.00,
		"taxAmount": null,
		"items": [
			{"description": "Consulting", "quantity": 2, "unitPrice": 500, "totalPrice": 1000},
			{"description": "Support", "quantity": 1, "unitPrice": "200.00", "totalPrice": 200}
		],
		"metadata": {"po": "PO-7"}
	}`)
	require.NoError(t, err)

	inv, err := ParseInvoice(obj)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", inv.ClientName)
	assert.Equal(t, "INV-1", inv.InvoiceNumber)
	assert.Equal(t, civil.Date{Year: 2025, Month: 3, Day: 1}, *inv.IssueDate)
	assert.Equal(t, civil.Date{Year: 2025, Month: 3, Day: 31}, *inv.DueDate)
	assert.True(t, inv.TotalAmount.Valid)
	assert.Equal(t, "1200", inv.TotalAmount.Decimal.String())
	assert.False(t, inv.TaxAmount.Valid)
	assert.Equal(t, "USD", inv.Currency)
	assert.Equal(t, "PO-7", inv.Metadata["po"])

	require.Len(t, inv.Items, 2)
	assert.Equal(t, "Consulting", inv.Items[0].Description)
	assert.Equal(t, "2", inv.Items[0].Quantity.String())
	assert.Equal(t, "1000", inv.Items[0].TotalPrice.String())
	assert.Equal(t, "Support", inv.Items[1].Description)
	assert.Equal(t, "200", inv.Items[1].UnitPrice.String())
}

func TestParseInvoiceKeepsClientNameVerbatim(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"plain", "Acme Corp"},
		{"surrounding spaces", " Acme Corp "},
		{"lower case", "acme corp"},
		{"trailing tab", "Acme Corp\t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := ParseInvoice(map[string]any{
				"clientName":    tt.raw,
				"invoiceNumber": "INV-1",
				"items":         []any{},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.raw, inv.ClientName)
		})
	}
}

func TestParseInvoiceErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing client", `{"invoiceNumber": "1"}`},
		{"empty number", `{"clientName": "A", "invoiceNumber": "  "}`},
		{"bad date", `{"clientName": "A", "invoiceNumber": "1", "issueDate": "March 1st"}`},
		{"bad amount", `{"clientName": "A", "invoiceNumber": "1", "totalAmount": "lots"}`},
		{"items not array", `{"clientName": "A", "invoiceNumber": "1", "items": {}}`},
		{"item missing price", `{"clientName": "A", "invoiceNumber": "1", "items": [{"description": "x", "quantity": 1, "unitPrice": 1}]}`},
		{"metadata not object", `{"clientName": "A", "invoiceNumber": "1", "metadata": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := decodeObject(tt.raw)
			require.NoError(t, err)
			_, err = ParseInvoice(obj)
			assert.Error(t, err)
		})
	}
}

func TestParseStatement(t *testing.T) {
	obj, err := decodeObject(`{
		"bankName": "First Bank",
		"accountNumber": "0001",
		"statementDate": "2025-04-30",
		"startingBalance": 100.50,
		"endingBalance": 1300.50,
		"currency": "eur",
		"transactions": [
			{"date": "2025-04-02", "description": "Acme payment", "amount": 1200.00, "type": "credit", "senderReceiver": "Acme Corp"},
			{"date": null, "description": "Fee", "amount": -2.5, "type": "DEBIT", "reference": ""}
		]
	}`)
	require.NoError(t, err)

	stmt, err := ParseStatement(obj)
	require.NoError(t, err)
	assert.Equal(t, "First Bank", stmt.BankName)
	assert.Equal(t, "EUR", stmt.Currency)
	assert.Equal(t, "100.5", stmt.StartingBalance.String())
	assert.Empty(t, stmt.Metadata)
	require.Len(t, stmt.Transactions, 2)

	first := stmt.Transactions[0]
	assert.Equal(t, domain.Credit, first.Type)
	assert.Equal(t, "1200", first.Amount.String())
	require.NotNil(t, first.SenderReceiver)
	assert.Equal(t, "Acme Corp", *first.SenderReceiver)

	second := stmt.Transactions[1]
	assert.Nil(t, second.Date)
	assert.Equal(t, domain.Debit, second.Type)
	assert.Equal(t, "2.5", second.Amount.String())
	assert.Nil(t, second.Reference)
}

func TestParseStatementErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing balances", `{"bankName": "B"}`},
		{"invalid type", `{"startingBalance": 0, "endingBalance": 0, "transactions": [{"description": "x", "amount": 1, "type": "transfer"}]}`},
		{"missing amount", `{"startingBalance": 0, "endingBalance": 0, "transactions": [{"description": "x", "type": "debit"}]}`},
		{"transaction not object", `{"startingBalance": 0, "endingBalance": 0, "transactions": ["x"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := decodeObject(tt.raw)
			require.NoError(t, err)
			_, err = ParseStatement(obj)
			assert.Error(t, err)
		})
	}
}
