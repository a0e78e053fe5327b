package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"payment-gateway/internal/observability/metrics"
	payment "payment-gateway/internal/payment/domain"
)

// PayCommand requests approval and recording of a single payment.
type PayCommand struct {
	PartnerID   int64
	Amount      decimal.Decimal
	CardBIN     string
	CardLast4   string
	ProductName string
}

// PaymentService approves a payment with the first supporting gateway,
// applies the partner's effective fee policy and records the result.
type PaymentService struct {
	partners  payment.PartnerRepository
	policies  payment.FeePolicyRepository
	payments  payment.PaymentRepository
	gateways  []ApprovalGateway
	publisher PaymentPublisher
	clock     Clock
	logger    *zap.Logger
}

// NewPaymentService constructs the service. Gateways are consulted in order.
func NewPaymentService(
	partners payment.PartnerRepository,
	policies payment.FeePolicyRepository,
	payments payment.PaymentRepository,
	gateways []ApprovalGateway,
	publisher PaymentPublisher,
	clock Clock,
	logger *zap.Logger,
) (*PaymentService, error) {
	if partners == nil {
		return nil, errors.New("payment service: nil partner repository")
	}
	if policies == nil {
		return nil, errors.New("payment service: nil fee policy repository")
	}
	if payments == nil {
		return nil, errors.New("payment service: nil payment repository")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		partners:  partners,
		policies:  policies,
		payments:  payments,
		gateways:  append([]ApprovalGateway(nil), gateways...),
		publisher: publisher,
		clock:     clock,
		logger:    logger,
	}, nil
}

// Pay runs one approval end to end. Nothing is stored unless the gateway approved.
func (s *PaymentService) Pay(ctx context.Context, cmd PayCommand) (*payment.Payment, error) {
	start := time.Now()
	saved, err := s.pay(ctx, cmd)
	metrics.ObserveApproval(approvalResult(err), time.Since(start))
	return saved, err
}

func (s *PaymentService) pay(ctx context.Context, cmd PayCommand) (*payment.Payment, error) {
	if !cmd.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s", payment.ErrInvalidAmount, cmd.Amount.String())
	}

	partner, err := s.partners.FindByID(ctx, cmd.PartnerID)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, fmt.Errorf("%w: Partner not found: %d", payment.ErrPartnerNotFound, cmd.PartnerID)
	}
	if !partner.Active {
		return nil, fmt.Errorf("%w: Partner is inactive: %d", payment.ErrInactivePartner, partner.ID)
	}

	gw := s.selectGateway(partner.ID)
	if gw == nil {
		return nil, fmt.Errorf("%w: No approval gateway for partner %d", payment.ErrConfiguration, partner.ID)
	}

	approval, err := gw.Approve(ctx, payment.ApprovalRequest{
		PartnerID:   partner.ID,
		Amount:      cmd.Amount,
		CardBIN:     cmd.CardBIN,
		CardLast4:   cmd.CardLast4,
		ProductName: cmd.ProductName,
	})
	if err != nil {
		s.logger.Warn("payment approval failed",
			zap.Int64("partner_id", partner.ID),
			zap.String("gateway", gw.Name()),
			zap.Error(err))
		return nil, mapApprovalError(partner.ID, err)
	}

	// Cursor tokens carry millisecond precision, so timestamps are stored at that precision.
	now := s.clock.Now().UTC().Truncate(time.Millisecond)
	policy, err := s.policies.FindEffective(ctx, partner.ID, now)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return nil, fmt.Errorf("%w: Policy not found: %d", payment.ErrPolicyNotFound, partner.ID)
	}

	fee, net := payment.CalculateFee(cmd.Amount, policy.Percentage, policy.FixedFee)
	saved, err := s.payments.Save(ctx, &payment.Payment{
		PartnerID:      partner.ID,
		Amount:         cmd.Amount,
		AppliedFeeRate: policy.Percentage,
		FeeAmount:      fee,
		NetAmount:      net,
		CardBIN:        cmd.CardBIN,
		CardLast4:      cmd.CardLast4,
		ApprovalCode:   approval.ApprovalCode,
		ApprovedAt:     approval.ApprovedAt.UTC(),
		Status:         payment.StatusApproved,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment approved",
		zap.Int64("payment_id", saved.ID),
		zap.Int64("partner_id", saved.PartnerID),
		zap.String("gateway", gw.Name()),
		zap.String("approval_code", saved.ApprovalCode),
		zap.Bool("mocked", approval.Mocked))
	s.publish(ctx, saved, approval.Mocked, now)
	return saved, nil
}

func (s *PaymentService) selectGateway(partnerID int64) ApprovalGateway {
	for _, gw := range s.gateways {
		if gw != nil && gw.Supports(partnerID) {
			return gw
		}
	}
	return nil
}

func (s *PaymentService) publish(ctx context.Context, saved *payment.Payment, mocked bool, now time.Time) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishPaymentApproved(ctx, PaymentApproved{
		PaymentID:    saved.ID,
		PartnerID:    saved.PartnerID,
		Amount:       saved.Amount,
		FeeAmount:    saved.FeeAmount,
		NetAmount:    saved.NetAmount,
		CardLast4:    saved.CardLast4,
		ApprovalCode: saved.ApprovalCode,
		ApprovedAt:   saved.ApprovedAt,
		Mocked:       mocked,
		OccurredAt:   now,
	})
	if err != nil {
		s.logger.Error("publish payment approved failed",
			zap.Int64("payment_id", saved.ID),
			zap.Error(err))
	}
}

// mapApprovalError translates gateway failures. A validation error anywhere
// in the chain wins over an auth error, which wins over everything else.
func mapApprovalError(partnerID int64, err error) error {
	var verr *payment.ValidationError
	if errors.As(err, &verr) {
		return &payment.ApprovalRejectedError{
			PartnerID:   partnerID,
			Code:        verr.Code,
			ErrorCode:   verr.ErrorCode,
			Message:     verr.Message,
			ReferenceID: verr.ReferenceID,
		}
	}
	var authErr *payment.AuthError
	if errors.As(err, &authErr) {
		return fmt.Errorf("%w: %s", payment.ErrAuthenticationFailed, authErr.Error())
	}
	return fmt.Errorf("%w: %s", payment.ErrProviderUnavailable, err.Error())
}

func approvalResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, payment.ErrApprovalRejected):
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}
