package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	payment "payment-gateway/internal/payment/domain"
)

// FeePolicyRepository resolves partner fee policies.
type FeePolicyRepository struct {
	db *sql.DB
}

// NewFeePolicyRepository constructs a repository.
func NewFeePolicyRepository(db *sql.DB) *FeePolicyRepository {
	return &FeePolicyRepository{db: db}
}

// FindEffective returns the latest policy with effective_from <= at.
func (r *FeePolicyRepository) FindEffective(ctx context.Context, partnerID int64, at time.Time) (*payment.FeePolicy, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("fee policy repo: nil db")
	}
	var p payment.FeePolicy
	err := r.db.QueryRowContext(ctx, `
SELECT id, partner_id, effective_from, percentage, fixed_fee
FROM fee_policies
WHERE partner_id = $1 AND effective_from <= $2
ORDER BY effective_from DESC
LIMIT 1`, partnerID, at.UTC()).Scan(&p.ID, &p.PartnerID, &p.EffectiveFrom, &p.Percentage, &p.FixedFee)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.EffectiveFrom = p.EffectiveFrom.UTC()
	return &p, nil
}
