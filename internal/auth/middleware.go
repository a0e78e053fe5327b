package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Middleware validates bearer JWTs and enforces the role each payment
// route requires.
type Middleware struct {
	Secret []byte
	Policy Policy
	logger *zap.Logger
}

// Option configures the middleware.
type Option func(*Middleware)

// WithLogger logs rejected requests.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Middleware) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMiddleware constructs an auth middleware.
func NewMiddleware(secret []byte, policy Policy, opts ...Option) *Middleware {
	m := &Middleware{Secret: secret, Policy: policy, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Wrap authenticates the request and stores the caller's Identity in the
// context. A token carrying partner_id scopes the caller to that partner;
// handlers enforce the scope with AuthorizePartner and PartnerScope.
// A scope that is not a positive partner id is rejected here.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		required, ok := m.Policy.RequiredRole(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := ParseJWT(extractBearer(r), m.Secret)
		if err != nil {
			m.reject(w, r, http.StatusUnauthorized, "unauthorized", zap.Error(err))
			return
		}
		if claims.PartnerID != nil && *claims.PartnerID <= 0 {
			m.reject(w, r, http.StatusUnauthorized, "unauthorized", zap.Int64("partner_id", *claims.PartnerID))
			return
		}
		role, _ := NormalizeRole(claims.Role)
		if !RoleAtLeast(role, required) {
			m.reject(w, r, http.StatusForbidden, "forbidden",
				zap.String("role", string(role)),
				zap.String("required", string(required)))
			return
		}

		ctx := WithIdentity(r.Context(), Identity{
			Subject:   claims.Subject,
			Role:      role,
			PartnerID: claims.PartnerID,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) reject(w http.ResponseWriter, r *http.Request, status int, message string, fields ...zap.Field) {
	fields = append(fields,
		zap.Int("status", status),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path))
	m.logger.Warn("auth rejected", fields...)

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="payments"`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func extractBearer(r *http.Request) string {
	if r == nil {
		return ""
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
