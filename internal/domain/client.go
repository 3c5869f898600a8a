package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Client is a billable counterparty. Name is the dedup key.
type Client struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     *string   `json:"email"`
	Phone     *string   `json:"phone"`
	Address   *string   `json:"address"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validate checks the fields required on every client.
func (c *Client) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	return nil
}

// ClientPatch holds optional updates for a client. Nil fields are left alone.
type ClientPatch struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

// Apply copies the set fields of p onto c.
func (p ClientPatch) Apply(c *Client) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Email != nil {
		c.Email = p.Email
	}
	if p.Phone != nil {
		c.Phone = p.Phone
	}
	if p.Address != nil {
		c.Address = p.Address
	}
}

// ClientRevenue is one row of the top clients report.
type ClientRevenue struct {
	ClientID     int64           `json:"clientId"`
	Name         string          `json:"name"`
	InvoiceCount int             `json:"invoiceCount"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
}
