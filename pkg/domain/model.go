package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when an invoice is issued without a currency.
const DefaultCurrency = "FCFA"

// DefaultIssuerName is used when an invoice is issued without an issuer name.
const DefaultIssuerName = "Mon Entreprise"

// LineItem is one product line of an invoice, in entry order.
type LineItem struct {
	Name        string          `json:"name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	Description string          `json:"description,omitempty"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// NewLineItem builds a line whose total is always UnitPrice * Quantity.
func NewLineItem(name string, unitPrice decimal.Decimal, quantity int, description string) LineItem {
	return LineItem{
		Name:        name,
		UnitPrice:   unitPrice,
		Quantity:    quantity,
		Description: description,
		LineTotal:   unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// Issuer describes the company printed on the invoice header.
type Issuer struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Logo    string `json:"logo,omitempty"`
}

// Tax holds the rate in percent and the rounded amount it produced.
type Tax struct {
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

// Invoice is an issued invoice. It is never mutated once persisted.
type Invoice struct {
	ID         string          `json:"id"`
	Number     string          `json:"number"`
	IssuedAt   time.Time       `json:"issued_at"`
	Issuer     Issuer          `json:"issuer"`
	Lines      []LineItem      `json:"lines"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        Tax             `json:"tax"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	Currency   string          `json:"currency"`
	Notes      string          `json:"notes,omitempty"`
}

// Clone returns a copy that shares no slices with inv.
func (inv *Invoice) Clone() *Invoice {
	if inv == nil {
		return nil
	}
	c := *inv
	c.Lines = append([]LineItem(nil), inv.Lines...)
	return &c
}

// CatalogEntry is a known product with its usage statistics.
type CatalogEntry struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Description string          `json:"description,omitempty"`
	UsageCount  int             `json:"usage_count"`
	LastUsedAt  time.Time       `json:"last_used_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Key returns the case-insensitive identity of the entry.
func (e *CatalogEntry) Key() string {
	return ProductKey(e.Name)
}

// ProductKey normalizes a product name into its catalog identity.
func ProductKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

type InvoiceEventType string

const (
	InvoiceIssued  InvoiceEventType = "invoice.issued"
	InvoiceDeleted InvoiceEventType = "invoice.deleted"
)

// InvoiceEvent is the notification emitted after an invoice changes state.
type InvoiceEvent struct {
	Type       InvoiceEventType `json:"type"`
	InvoiceID  string           `json:"invoice_id"`
	Number     string           `json:"number"`
	GrandTotal decimal.Decimal  `json:"grand_total"`
	Currency   string           `json:"currency"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// NewInvoiceEvent describes inv for the given event type.
func NewInvoiceEvent(t InvoiceEventType, inv *Invoice, at time.Time) InvoiceEvent {
	return InvoiceEvent{
		Type:       t,
		InvoiceID:  inv.ID,
		Number:     inv.Number,
		GrandTotal: inv.GrandTotal,
		Currency:   inv.Currency,
		OccurredAt: at,
	}
}
