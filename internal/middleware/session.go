package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/strandpine/warden/internal/models"
	"github.com/strandpine/warden/internal/session"
	pkghttp "github.com/strandpine/warden/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// SessionContextKey is the key for storing the validated session in context
	SessionContextKey contextKey = "security_session"
)

// SessionValidator checks a session id and bumps its activity.
type SessionValidator interface {
	ValidateSession(ctx context.Context, id string) session.ValidationResult
}

// RequireSession validates the caller's session id and injects the
// session into the request context. The id is read from the
// X-Session-ID header, then a Bearer Authorization header, then the
// session cookie. Callers with a pending second factor pass; use
// RequireVerifiedSession to keep them out.
func RequireSession(validator SessionValidator) func(next http.Handler) http.Handler {
	return requireSession(validator, false)
}

// RequireVerifiedSession is RequireSession plus a second-factor gate:
// sessions still awaiting MFA verification are rejected with 403.
func RequireVerifiedSession(validator SessionValidator) func(next http.Handler) http.Handler {
	return requireSession(validator, true)
}

func requireSession(validator SessionValidator, enforceVerified bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ExtractSessionID(r)
			if id == "" {
				pkghttp.WriteUnauthorized(w, "Missing session")
				return
			}

			result := validator.ValidateSession(r.Context(), id)
			if !result.Valid {
				pkghttp.WriteUnauthorized(w, "Invalid or expired session")
				return
			}

			if enforceVerified && result.Session.MFAPending {
				pkghttp.WriteError(w, http.StatusForbidden, "mfa_required", "Second factor verification required")
				return
			}

			ctx := context.WithValue(r.Context(), SessionContextKey, result.Session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext retrieves the validated session injected by
// RequireSession.
func SessionFromContext(ctx context.Context) (*models.SecuritySession, bool) {
	sess, ok := ctx.Value(SessionContextKey).(*models.SecuritySession)
	return sess, ok
}

// ExtractSessionID pulls the session id from the request, preferring
// the explicit header over the Authorization header over the cookie.
func ExtractSessionID(r *http.Request) string {
	if id := r.Header.Get("X-Session-ID"); id != "" {
		return id
	}

	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" && parts[1] != "" {
			return parts[1]
		}
	}

	if id, err := GetSessionCookie(r); err == nil {
		return id
	}
	return ""
}
