package memory

import (
	"context"
	"sync"
	"time"

	payment "payment-gateway/internal/payment/domain"
)

// FeePolicyRepository holds fee policies in memory.
type FeePolicyRepository struct {
	mu       sync.RWMutex
	nextID   int64
	policies []payment.FeePolicy
}

// NewFeePolicyRepository constructs a repository seeded with policies.
func NewFeePolicyRepository(policies ...payment.FeePolicy) *FeePolicyRepository {
	r := &FeePolicyRepository{nextID: 1}
	for _, p := range policies {
		r.Add(p)
	}
	return r
}

// Add stores a policy, assigning an id when missing.
func (r *FeePolicyRepository) Add(p payment.FeePolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == 0 {
		p.ID = r.nextID
	}
	if p.ID >= r.nextID {
		r.nextID = p.ID + 1
	}
	r.policies = append(r.policies, p)
}

// FindEffective returns the latest policy with EffectiveFrom <= at.
func (r *FeePolicyRepository) FindEffective(ctx context.Context, partnerID int64, at time.Time) (*payment.FeePolicy, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *payment.FeePolicy
	for i := range r.policies {
		p := r.policies[i]
		if p.PartnerID != partnerID || p.EffectiveFrom.After(at) {
			continue
		}
		if best == nil || p.EffectiveFrom.After(best.EffectiveFrom) {
			candidate := p
			best = &candidate
		}
	}
	return best, nil
}
