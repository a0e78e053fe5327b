package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ApprovalRequest is sent to an approval gateway.
type ApprovalRequest struct {
	PartnerID   int64
	Amount      decimal.Decimal
	CardBIN     string
	CardLast4   string
	ProductName string
}

// ApprovalResult is a successful gateway authorization.
type ApprovalResult struct {
	ApprovalCode string
	ApprovedAt   time.Time
	Status       Status
	// Mocked is set when the result was synthesized locally instead of
	// coming from the remote provider.
	Mocked bool
}

// AuthError reports that the provider refused our credentials. It carries no body.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	if e.Reason == "" {
		return "approval gateway: unauthorized"
	}
	return "approval gateway: unauthorized: " + e.Reason
}

// ValidationError is a structured provider rejection (HTTP 422).
type ValidationError struct {
	Code        int    `json:"code"`
	ErrorCode   string `json:"errorCode"`
	Message     string `json:"message"`
	ReferenceID string `json:"referenceId"`
}

func (e *ValidationError) Error() string {
	if e.ErrorCode == "" {
		return "approval gateway: " + e.Message
	}
	return fmt.Sprintf("approval gateway: %d %s: %s", e.Code, e.ErrorCode, e.Message)
}

// ProviderError is any other gateway failure. When Errs holds more than one
// error it is the aggregate failure of a gateway chain.
type ProviderError struct {
	Message string
	Errs    []error
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	parts := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		parts = append(parts, err.Error())
	}
	return "approval gateway: " + strings.Join(parts, "; ")
}

func (e *ProviderError) Unwrap() []error { return e.Errs }
