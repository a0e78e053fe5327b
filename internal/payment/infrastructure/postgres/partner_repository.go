package postgres

import (
	"context"
	"database/sql"
	"errors"

	payment "payment-gateway/internal/payment/domain"
)

// PartnerRepository loads partners.
type PartnerRepository struct {
	db *sql.DB
}

// NewPartnerRepository constructs a repository.
func NewPartnerRepository(db *sql.DB) *PartnerRepository {
	return &PartnerRepository{db: db}
}

// FindByID returns the partner, or nil when missing.
func (r *PartnerRepository) FindByID(ctx context.Context, id int64) (*payment.Partner, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("partner repo: nil db")
	}
	var p payment.Partner
	err := r.db.QueryRowContext(ctx, `
SELECT id, code, name, active
FROM partners
WHERE id = $1`, id).Scan(&p.ID, &p.Code, &p.Name, &p.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}
