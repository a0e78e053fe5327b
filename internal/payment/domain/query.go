package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

// SummaryFilter narrows the ledger by partner, status and creation time.
// Nil fields are unconstrained. From is inclusive, To exclusive.
type SummaryFilter struct {
	PartnerID *int64
	Status    *Status
	From      *time.Time
	To        *time.Time
}

// Matches reports whether the payment satisfies the filter.
func (f SummaryFilter) Matches(p *Payment) bool {
	if p == nil {
		return false
	}
	if f.PartnerID != nil && p.PartnerID != *f.PartnerID {
		return false
	}
	if f.Status != nil && p.Status != *f.Status {
		return false
	}
	if f.From != nil && p.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !p.CreatedAt.Before(*f.To) {
		return false
	}
	return true
}

// CursorPosition is the (created_at, id) keyset of the last row seen.
type CursorPosition struct {
	CreatedAt time.Time
	ID        int64
}

// After reports whether p sorts strictly after the position in
// (created_at DESC, id DESC) order.
func (c CursorPosition) After(p *Payment) bool {
	if p.CreatedAt.Before(c.CreatedAt) {
		return true
	}
	return p.CreatedAt.Equal(c.CreatedAt) && p.ID < c.ID
}

// PageQuery asks the repository for at most Limit rows after Cursor.
type PageQuery struct {
	SummaryFilter
	Cursor *CursorPosition
	Limit  int
}

// Page is one window of the ledger.
type Page struct {
	Items         []Payment
	HasNext       bool
	NextCreatedAt time.Time
	NextID        int64
}

// Summary aggregates the whole filtered set, ignoring pagination.
type Summary struct {
	Count          int64           `json:"count"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	TotalNetAmount decimal.Decimal `json:"totalNetAmount"`
}
