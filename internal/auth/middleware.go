package auth

import (
	"errors"
	"log"
	"net/http"
	"strings"
)

// Middleware validates bearer JWTs and enforces the role policy.
type Middleware struct {
	secret []byte
	policy Policy
	logger *log.Logger
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*Middleware)

// WithDenyLogger logs every rejected request.
func WithDenyLogger(logger *log.Logger) MiddlewareOption {
	return func(m *Middleware) {
		m.logger = logger
	}
}

// NewMiddleware constructs an auth middleware.
func NewMiddleware(secret []byte, policy Policy, opts ...MiddlewareOption) *Middleware {
	m := &Middleware{secret: secret, policy: policy}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Wrap applies auth and RBAC to the handler.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		required, ok := m.policy.RequiredRole(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := ParseJWT(extractBearer(r), m.secret)
		if err != nil {
			m.deny(r, http.StatusUnauthorized, err)
			w.Header().Set("WWW-Authenticate", challenge(err))
			message := "unauthorized"
			if errors.Is(err, ErrTokenExpired) {
				message = "token expired"
			}
			http.Error(w, message, http.StatusUnauthorized)
			return
		}
		role, valid := NormalizeRole(claims.Role)
		if !valid || !RoleAtLeast(role, required) {
			m.deny(r, http.StatusForbidden, ErrInvalidRole)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		ctx := WithIdentity(r.Context(), role, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) deny(r *http.Request, status int, err error) {
	if m.logger == nil {
		return
	}
	m.logger.Printf("event=auth_denied method=%s path=%s status=%d error=%v", r.Method, r.URL.Path, status, err)
}

func challenge(err error) string {
	if errors.Is(err, ErrEmptyToken) {
		return `Bearer realm="stats-indexer"`
	}
	return `Bearer realm="stats-indexer", error="invalid_token"`
}

func extractBearer(r *http.Request) string {
	if r == nil {
		return ""
	}
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
