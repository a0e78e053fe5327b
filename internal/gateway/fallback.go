package gateway

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"payment-gateway/internal/observability/metrics"
	payment "payment-gateway/internal/payment/domain"
)

const fallbackName = "fallback"

// Approver is a single approval provider.
type Approver interface {
	Name() string
	Supports(partnerID int64) bool
	Approve(ctx context.Context, req payment.ApprovalRequest) (payment.ApprovalResult, error)
}

// FallbackGateway tries the primary provider first and the simulator only
// after the primary has failed. The two attempts never overlap.
type FallbackGateway struct {
	primary   Approver
	simulator Approver
	logger    *zap.Logger
}

// NewFallbackGateway chains primary and simulator.
func NewFallbackGateway(primary, simulator Approver, logger *zap.Logger) (*FallbackGateway, error) {
	if primary == nil {
		return nil, errors.New("fallback gateway: nil primary")
	}
	if simulator == nil {
		return nil, errors.New("fallback gateway: nil simulator")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackGateway{primary: primary, simulator: simulator, logger: logger}, nil
}

func (g *FallbackGateway) Name() string { return fallbackName }

// Supports is true when either provider supports the partner.
func (g *FallbackGateway) Supports(partnerID int64) bool {
	return g.primary.Supports(partnerID) || g.simulator.Supports(partnerID)
}

// Approve returns the primary result, or the simulator result when the
// primary failed. When both fail the error is a single ProviderError
// wrapping both failures.
func (g *FallbackGateway) Approve(ctx context.Context, req payment.ApprovalRequest) (payment.ApprovalResult, error) {
	result, primaryErr := g.primary.Approve(ctx, req)
	if primaryErr == nil {
		return result, nil
	}
	g.logger.Warn("primary gateway failed, trying simulator",
		zap.String("primary", g.primary.Name()),
		zap.Int64("partner_id", req.PartnerID),
		zap.Error(primaryErr))

	result, simulatorErr := g.simulator.Approve(ctx, req)
	if simulatorErr == nil {
		metrics.IncGatewayFallback(metrics.ResultSuccess)
		g.logger.Info("simulator approved after primary failure",
			zap.Int64("partner_id", req.PartnerID),
			zap.String("approval_code", result.ApprovalCode))
		return result, nil
	}

	metrics.IncGatewayFallback(metrics.ResultError)
	g.logger.Error("all approval gateways failed",
		zap.Int64("partner_id", req.PartnerID),
		zap.NamedError("primary_error", primaryErr),
		zap.NamedError("simulator_error", simulatorErr))
	return payment.ApprovalResult{}, &payment.ProviderError{
		Message: "all approval gateways failed: primary=" + primaryErr.Error() + ", simulator=" + simulatorErr.Error(),
		Errs:    []error{primaryErr, simulatorErr},
	}
}
