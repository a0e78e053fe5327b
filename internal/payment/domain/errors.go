package payment

import (
	"errors"
	"fmt"
)

var (
	// ErrPartnerNotFound is returned when the partner does not exist.
	ErrPartnerNotFound = errors.New("payment: partner not found")
	// ErrInactivePartner is returned when the partner is not active.
	ErrInactivePartner = errors.New("payment: inactive partner")
	// ErrConfiguration is returned when no approval gateway supports the partner.
	ErrConfiguration = errors.New("payment: no approval gateway configured")
	// ErrAuthenticationFailed is returned when the gateway rejected our credentials.
	ErrAuthenticationFailed = errors.New("payment: gateway authentication failed")
	// ErrApprovalRejected is returned when the gateway declined the card.
	ErrApprovalRejected = errors.New("payment: approval rejected")
	// ErrProviderUnavailable is returned when every approval gateway failed.
	ErrProviderUnavailable = errors.New("payment: approval provider unavailable")
	// ErrPolicyNotFound is returned when no fee policy is effective.
	ErrPolicyNotFound = errors.New("payment: fee policy not found")
	// ErrInvalidAmount is returned for non-positive amounts.
	ErrInvalidAmount = errors.New("payment: invalid amount")
	// ErrNilPayment is returned when saving a nil payment.
	ErrNilPayment = errors.New("payment: nil payment")
)

// ApprovalRejectedError carries the provider's rejection details.
type ApprovalRejectedError struct {
	PartnerID   int64
	Code        int
	ErrorCode   string
	Message     string
	ReferenceID string
}

func (e *ApprovalRejectedError) Error() string {
	if e.ErrorCode == "" {
		return fmt.Sprintf("Approval rejected for partner %d: %s", e.PartnerID, e.Message)
	}
	return fmt.Sprintf("Approval rejected for partner %d: %d %s - %s", e.PartnerID, e.Code, e.ErrorCode, e.Message)
}

// Unwrap lets errors.Is match ErrApprovalRejected.
func (e *ApprovalRejectedError) Unwrap() error { return ErrApprovalRejected }
