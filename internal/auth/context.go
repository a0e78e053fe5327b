package auth

import "context"

type contextKey string

const (
	contextKeyIdentity contextKey = "auth.identity"
)

// Identity is the authenticated caller.
type Identity struct {
	Subject string
	Role    Role
	// PartnerID is set for partner-scoped tokens.
	PartnerID *int64
}

// WithIdentity stores auth identity details in context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, contextKeyIdentity, identity)
}

// IdentityFromContext extracts the caller identity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	identity, ok := ctx.Value(contextKeyIdentity).(Identity)
	return identity, ok
}

// RoleFromContext extracts role from context.
func RoleFromContext(ctx context.Context) Role {
	identity, _ := IdentityFromContext(ctx)
	return identity.Role
}

// SubjectFromContext extracts subject from context.
func SubjectFromContext(ctx context.Context) string {
	identity, _ := IdentityFromContext(ctx)
	return identity.Subject
}

// PartnerScope returns the partner a scoped caller is restricted to.
func PartnerScope(ctx context.Context) (int64, bool) {
	identity, ok := IdentityFromContext(ctx)
	if !ok || identity.PartnerID == nil {
		return 0, false
	}
	return *identity.PartnerID, true
}

// AuthorizePartner checks that the caller may act for partnerID.
func AuthorizePartner(ctx context.Context, partnerID int64) error {
	scoped, ok := PartnerScope(ctx)
	if !ok || scoped == partnerID {
		return nil
	}
	return ErrPartnerMismatch
}
