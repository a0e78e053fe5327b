package memory

import (
	"context"
	"sync"

	payment "payment-gateway/internal/payment/domain"
)

// PartnerRepository holds partners in memory.
type PartnerRepository struct {
	mu       sync.RWMutex
	partners map[int64]payment.Partner
}

// NewPartnerRepository constructs a repository seeded with partners.
func NewPartnerRepository(partners ...payment.Partner) *PartnerRepository {
	r := &PartnerRepository{partners: make(map[int64]payment.Partner, len(partners))}
	for _, p := range partners {
		r.partners[p.ID] = p
	}
	return r
}

// Put inserts or replaces a partner.
func (r *PartnerRepository) Put(p payment.Partner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.partners[p.ID] = p
}

// FindByID returns the partner, or nil when missing.
func (r *PartnerRepository) FindByID(ctx context.Context, id int64) (*payment.Partner, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.partners[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}
