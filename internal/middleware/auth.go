package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"imagetag/internal/service/auth"
)

// SessionCookie holds the signed session token.
const SessionCookie = "session"

// TokenParser validates session tokens.
type TokenParser interface {
	ParseToken(token string) (*auth.Principal, error)
}

type principalKey struct{}

// WithPrincipal stores the principal in context.
func WithPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the logged-in user, if any.
func PrincipalFromContext(ctx context.Context) (*auth.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*auth.Principal)
	return p, ok && p != nil
}

// isPublic reports whether anonymous visitors may reach r.
func isPublic(r *http.Request) bool {
	path := r.URL.Path
	if strings.HasPrefix(path, "/auth/") {
		return true
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	return path == "/" ||
		path == "/api/images" ||
		path == "/api/events" ||
		strings.HasPrefix(path, "/images/")
}

// AuthMiddleware resolves the session cookie into a principal and rejects
// anonymous requests to everything that is not public.
func AuthMiddleware(parser TokenParser, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
			if p, err := parser.ParseToken(cookie.Value); err == nil {
				r = r.WithContext(WithPrincipal(r.Context(), p))
			}
		}

		if _, ok := PrincipalFromContext(r.Context()); ok || isPublic(r) {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "login required"})
	})
}
