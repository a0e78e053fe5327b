package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	payment "payment-gateway/internal/payment/domain"
)

// PaymentRepository is an in-memory payment ledger for demo/testing.
type PaymentRepository struct {
	mu     sync.RWMutex
	nextID int64
	rows   []*payment.Payment
}

// NewPaymentRepository constructs a repository.
func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{nextID: 1}
}

// Save stores a copy of the payment and assigns the next id.
func (r *PaymentRepository) Save(ctx context.Context, p *payment.Payment) (*payment.Payment, error) {
	_ = ctx
	if p == nil {
		return nil, payment.ErrNilPayment
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := p.Clone()
	if stored.ID == 0 {
		stored.ID = r.nextID
	}
	if stored.ID >= r.nextID {
		r.nextID = stored.ID + 1
	}
	r.rows = append(r.rows, stored)
	return stored.Clone(), nil
}

// PageBy returns rows ordered by (created_at DESC, id DESC) after the cursor.
func (r *PaymentRepository) PageBy(ctx context.Context, query payment.PageQuery) ([]payment.Payment, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]payment.Payment, 0, len(r.rows))
	for _, row := range r.rows {
		if !query.Matches(row) {
			continue
		}
		if query.Cursor != nil && !query.Cursor.After(row) {
			continue
		}
		matched = append(matched, *row)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if query.Limit > 0 && len(matched) > query.Limit {
		matched = matched[:query.Limit]
	}
	return matched, nil
}

// Summary aggregates every row matching the filter.
func (r *PaymentRepository) Summary(ctx context.Context, filter payment.SummaryFilter) (payment.Summary, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	summary := payment.Summary{TotalAmount: decimal.Zero, TotalNetAmount: decimal.Zero}
	for _, row := range r.rows {
		if !filter.Matches(row) {
			continue
		}
		summary.Count++
		summary.TotalAmount = summary.TotalAmount.Add(row.Amount)
		summary.TotalNetAmount = summary.TotalNetAmount.Add(row.NetAmount)
	}
	return summary, nil
}
