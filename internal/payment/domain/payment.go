package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a payment.
type Status string

const (
	StatusApproved Status = "APPROVED"
	// StatusCanceled is reserved; nothing produces it yet.
	StatusCanceled Status = "CANCELED"
)

// ParseStatus validates a status string.
func ParseStatus(value string) (Status, bool) {
	switch Status(value) {
	case StatusApproved, StatusCanceled:
		return Status(value), true
	default:
		return "", false
	}
}

// Partner is an affiliated merchant that payments are charged for.
type Partner struct {
	ID     int64  `json:"id"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// FeePolicy is a partner's fee schedule starting at EffectiveFrom.
type FeePolicy struct {
	ID            int64
	PartnerID     int64
	EffectiveFrom time.Time
	Percentage    decimal.Decimal
	FixedFee      decimal.Decimal
}

// Payment is a persisted ledger entry. ID is zero until saved.
type Payment struct {
	ID             int64
	PartnerID      int64
	Amount         decimal.Decimal
	AppliedFeeRate decimal.Decimal
	FeeAmount      decimal.Decimal
	NetAmount      decimal.Decimal
	CardBIN        string
	CardLast4      string
	ApprovalCode   string
	ApprovedAt     time.Time
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Clone returns a copy of the payment.
func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	copy := *p
	return &copy
}
