package payment

import (
	"context"
	"time"
)

// PaymentRepository persists payments.
type PaymentRepository interface {
	// Save stores a new payment and returns it with its assigned ID.
	Save(ctx context.Context, payment *Payment) (*Payment, error)
	// PageBy returns up to query.Limit rows ordered by (created_at DESC, id DESC).
	PageBy(ctx context.Context, query PageQuery) ([]Payment, error)
	Summary(ctx context.Context, filter SummaryFilter) (Summary, error)
}

// PartnerRepository loads partners. A missing partner is (nil, nil).
type PartnerRepository interface {
	FindByID(ctx context.Context, id int64) (*Partner, error)
}

// FeePolicyRepository resolves the policy effective at a given instant.
// No effective policy is (nil, nil).
type FeePolicyRepository interface {
	FindEffective(ctx context.Context, partnerID int64, at time.Time) (*FeePolicy, error)
}
