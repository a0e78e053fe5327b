package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"payment-gateway/internal/observability/metrics"
	payment "payment-gateway/internal/payment/domain"
)

const simulatorName = "simulator"

// Partner ids the simulator treats as misconfigured credentials.
const (
	simPartnerMissingKey int64 = -1
	simPartnerBadKey     int64 = -2
	simPartnerRevokedKey int64 = -3
)

const (
	simDefaultKey = "11111111-1111-4111-8111-111111111111"
	simDefaultIV  = "dGVzdC1wZy1pdi0xMg"
	simRevokedKey = "00000000-0000-4000-8000-000000000000"
)

const (
	simCardAlwaysApproved = "1111"
	simCardLimited        = "2222"
)

var simApprovalLimit = decimal.NewFromInt(50000)

// simulatedRejection is a fixed decline for a specific amount on the limited card.
type simulatedRejection struct {
	code      int
	errorCode string
	message   string
}

var simRejectionsByAmount = map[int64]simulatedRejection{
	51000: {1001, "STOLEN_OR_LOST", "Card reported stolen or lost."},
	52000: {1003, "EXPIRED_OR_BLOCKED", "Card is expired or blocked."},
	53000: {1004, "TAMPERED_CARD", "Card is counterfeit or tampered."},
	54000: {1005, "TAMPERED_CARD", "Card is counterfeit or tampered. (card not allowed)"},
}

var simInsufficientLimit = simulatedRejection{1002, "INSUFFICIENT_LIMIT", "Card limit exceeded."}

// SimulatorGateway approves payments locally, reproducing TestPG's
// credential and card outcomes without network access.
type SimulatorGateway struct {
	cipher *PayloadCipher
	logger *zap.Logger
	now    func() time.Time
}

// SimulatorOption configures the simulator.
type SimulatorOption func(*SimulatorGateway)

// WithSimulatorLogger sets the logger.
func WithSimulatorLogger(logger *zap.Logger) SimulatorOption {
	return func(g *SimulatorGateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithSimulatorClock overrides the time source.
func WithSimulatorClock(now func() time.Time) SimulatorOption {
	return func(g *SimulatorGateway) {
		if now != nil {
			g.now = now
		}
	}
}

// NewSimulatorGateway constructs the simulator.
func NewSimulatorGateway(cipher *PayloadCipher, opts ...SimulatorOption) *SimulatorGateway {
	if cipher == nil {
		cipher = NewPayloadCipher()
	}
	g := &SimulatorGateway{
		cipher: cipher,
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name identifies the gateway in logs and metrics.
func (g *SimulatorGateway) Name() string { return simulatorName }

// Supports reports whether the simulator serves the partner (even ids only).
func (g *SimulatorGateway) Supports(partnerID int64) bool {
	return partnerID%2 == 0
}

// Approve applies the simulated card rules.
func (g *SimulatorGateway) Approve(ctx context.Context, req payment.ApprovalRequest) (payment.ApprovalResult, error) {
	if err := ctx.Err(); err != nil {
		metrics.IncGatewayCall(simulatorName, metrics.ResultError)
		return payment.ApprovalResult{}, &payment.ProviderError{Message: "simulator: " + err.Error(), Errs: []error{err}}
	}

	switch req.PartnerID {
	case simPartnerMissingKey, simPartnerBadKey, simPartnerRevokedKey:
		metrics.IncGatewayCall(simulatorName, metrics.ResultRejected)
		g.logger.Warn("simulator credential rejected", zap.Int64("partner_id", req.PartnerID))
		return payment.ApprovalResult{}, &payment.AuthError{Reason: fmt.Sprintf("simulated credential failure for partner %d", req.PartnerID)}
	}

	key, iv := simulatorCredentials(req.PartnerID)
	if _, err := g.encryptRequest(req, key, iv); err != nil {
		metrics.IncGatewayCall(simulatorName, metrics.ResultError)
		return payment.ApprovalResult{}, &payment.ProviderError{Message: "simulator: encrypt request: " + err.Error(), Errs: []error{err}}
	}

	if rejection, rejected := evaluateCard(req); rejected {
		metrics.IncGatewayCall(simulatorName, metrics.ResultRejected)
		verr := &payment.ValidationError{
			Code:        rejection.code,
			ErrorCode:   rejection.errorCode,
			Message:     rejection.message,
			ReferenceID: uuid.NewString(),
		}
		g.logger.Info("simulator approval rejected",
			zap.Int64("partner_id", req.PartnerID),
			zap.String("error_code", verr.ErrorCode),
			zap.String("reference_id", verr.ReferenceID))
		return payment.ApprovalResult{}, verr
	}

	now := g.now()
	code := approvalCodeFrom(now)
	metrics.IncGatewayCall(simulatorName, metrics.ResultSuccess)
	g.logger.Info("simulator approval succeeded",
		zap.Int64("partner_id", req.PartnerID),
		zap.String("approval_code", code))
	return payment.ApprovalResult{
		ApprovalCode: code,
		ApprovedAt:   now,
		Status:       payment.StatusApproved,
	}, nil
}

func (g *SimulatorGateway) encryptRequest(req payment.ApprovalRequest, key, iv string) (string, error) {
	plain, err := json.Marshal(testPGPlainRequest{
		CardNumber: cardNumber(req.CardBIN, req.CardLast4),
		BirthDate:  defaultBirthDate,
		Expiry:     defaultExpiry,
		Password:   defaultPassword,
		Amount:     req.Amount.IntPart(),
	})
	if err != nil {
		return "", err
	}
	return g.cipher.Encrypt(string(plain), key, iv)
}

func simulatorCredentials(partnerID int64) (key, iv string) {
	switch partnerID {
	case simPartnerMissingKey:
		return "", ""
	case simPartnerBadKey:
		return "INVALID-FORMAT", ""
	case simPartnerRevokedKey:
		return simRevokedKey, ""
	default:
		return simDefaultKey, simDefaultIV
	}
}

// evaluateCard returns the rejection for the request, if any.
// The card BIN and last4 must match (1111/1111 or 2222/2222).
func evaluateCard(req payment.ApprovalRequest) (simulatedRejection, bool) {
	if req.CardBIN != req.CardLast4 {
		return simulatedRejection{message: "Invalid card number."}, true
	}
	switch req.CardLast4 {
	case simCardAlwaysApproved:
		return simulatedRejection{}, false
	case simCardLimited:
		if req.Amount.LessThanOrEqual(simApprovalLimit) {
			return simulatedRejection{}, false
		}
		if req.Amount.IsInteger() {
			if rejection, ok := simRejectionsByAmount[req.Amount.IntPart()]; ok {
				return rejection, true
			}
		}
		return simInsufficientLimit, true
	default:
		return simulatedRejection{message: "Invalid card number."}, true
	}
}
