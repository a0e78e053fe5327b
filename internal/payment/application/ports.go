package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	payment "payment-gateway/internal/payment/domain"
)

// ApprovalGateway authorizes a card charge with a provider.
type ApprovalGateway interface {
	Name() string
	Supports(partnerID int64) bool
	Approve(ctx context.Context, req payment.ApprovalRequest) (payment.ApprovalResult, error)
}

// PaymentApproved is emitted once a payment has been approved and stored.
type PaymentApproved struct {
	PaymentID    int64           `json:"paymentId"`
	PartnerID    int64           `json:"partnerId"`
	Amount       decimal.Decimal `json:"amount"`
	FeeAmount    decimal.Decimal `json:"feeAmount"`
	NetAmount    decimal.Decimal `json:"netAmount"`
	CardLast4    string          `json:"cardLast4"`
	ApprovalCode string          `json:"approvalCode"`
	ApprovedAt   time.Time       `json:"approvedAt"`
	Mocked       bool            `json:"mocked"`
	OccurredAt   time.Time       `json:"occurredAt"`
}

// PaymentPublisher emits payment events.
type PaymentPublisher interface {
	PublishPaymentApproved(ctx context.Context, event PaymentApproved) error
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
