package auth

import "errors"

var (
	ErrUnauthorized = errors.New("auth: unauthorized")
	ErrForbidden    = errors.New("auth: forbidden")
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrPartnerMismatch is returned when a partner-scoped caller targets another partner.
	ErrPartnerMismatch = errors.New("auth: partner mismatch")
)
