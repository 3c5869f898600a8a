package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// InvoiceStatus is the billing state of an invoice.
type InvoiceStatus string

const (
	InvoiceUnpaid  InvoiceStatus = "unpaid"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceOverdue InvoiceStatus = "overdue"
)

// PaymentStatus mirrors InvoiceStatus for settlement. The zero value means unset.
type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "unpaid"
	PaymentPartiallyPaid PaymentStatus = "partially_paid"
	PaymentPaid          PaymentStatus = "paid"
)

// DefaultCurrency applies when an extraction carries no currency.
const DefaultCurrency = "USD"

// Invoice is one billing document, optionally owned by a Client.
type Invoice struct {
	ID            int64               `json:"id"`
	DocumentID    *int64              `json:"documentId"`
	ClientID      *int64              `json:"clientId"`
	InvoiceNumber string              `json:"invoiceNumber"`
	IssueDate     *civil.Date         `json:"issueDate"`
	DueDate       *civil.Date         `json:"dueDate"`
	TotalAmount   decimal.NullDecimal `json:"totalAmount"`
	TaxAmount     decimal.NullDecimal `json:"taxAmount"`
	Currency      string              `json:"currency"`
	Status        InvoiceStatus       `json:"status"`
	PaymentStatus PaymentStatus       `json:"paymentStatus,omitempty"`
	Notes         *string             `json:"notes"`
	Metadata      map[string]any      `json:"metadata"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

// Validate checks invoice invariants.
func (inv *Invoice) Validate() error {
	if inv.InvoiceNumber == "" {
		return &ValidationError{Field: "invoiceNumber", Message: "is required"}
	}
	if inv.TotalAmount.Valid && inv.TotalAmount.Decimal.IsNegative() {
		return &ValidationError{Field: "totalAmount", Message: "must not be negative"}
	}
	if inv.TaxAmount.Valid && inv.TaxAmount.Decimal.IsNegative() {
		return &ValidationError{Field: "taxAmount", Message: "must not be negative"}
	}
	return nil
}

// Unpaid reports whether the invoice can still be settled by a transaction.
func (inv *Invoice) Unpaid() bool {
	return inv.PaymentStatus == "" || inv.PaymentStatus == PaymentUnpaid
}

// InvoiceItem is one line item, owned by exactly one Invoice.
type InvoiceItem struct {
	ID          int64           `json:"id"`
	InvoiceID   int64           `json:"invoiceId"`
	Position    int             `json:"position"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Validate checks that numeric fields are non-negative.
func (it *InvoiceItem) Validate() error {
	if it.Description == "" {
		return &ValidationError{Field: "description", Message: "is required"}
	}
	for field, v := range map[string]decimal.Decimal{
		"quantity":   it.Quantity,
		"unitPrice":  it.UnitPrice,
		"totalPrice": it.TotalPrice,
	} {
		if v.IsNegative() {
			return &ValidationError{Field: field, Message: "must not be negative"}
		}
	}
	return nil
}

// InvoiceFilter narrows invoice listings. Zero fields are ignored.
type InvoiceFilter struct {
	ClientID  *int64
	Status    InvoiceStatus
	StartDate *civil.Date
	EndDate   *civil.Date
	Unpaid    bool
	Limit     int
}

// InvoicePatch holds optional updates for an invoice.
type InvoicePatch struct {
	Status        *InvoiceStatus `json:"status"`
	PaymentStatus *PaymentStatus `json:"paymentStatus"`
	Notes         *string        `json:"notes"`
	DueDate       *civil.Date    `json:"dueDate"`
}

// Apply copies the set fields of p onto inv.
func (p InvoicePatch) Apply(inv *Invoice) {
	if p.Status != nil {
		inv.Status = *p.Status
	}
	if p.PaymentStatus != nil {
		inv.PaymentStatus = *p.PaymentStatus
	}
	if p.Notes != nil {
		inv.Notes = p.Notes
	}
	if p.DueDate != nil {
		inv.DueDate = p.DueDate
	}
}

// Validate rejects unknown status values.
func (p InvoicePatch) Validate() error {
	if p.Status != nil {
		switch *p.Status {
		case InvoiceUnpaid, InvoicePaid, InvoiceOverdue:
		default:
			return &ValidationError{Field: "status", Message: "must be unpaid, paid or overdue"}
		}
	}
	if p.PaymentStatus != nil {
		switch *p.PaymentStatus {
		case PaymentUnpaid, PaymentPartiallyPaid, PaymentPaid:
		default:
			return &ValidationError{Field: "paymentStatus", Message: "must be unpaid, partially_paid or paid"}
		}
	}
	return nil
}

// InvoiceDetail is an invoice with its client and line items.
type InvoiceDetail struct {
	Invoice
	Client *Client        `json:"client,omitempty"`
	Items  []*InvoiceItem `json:"items"`
}
