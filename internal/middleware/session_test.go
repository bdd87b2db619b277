package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/strandpine/warden/internal/models"
	"github.com/strandpine/warden/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubValidator returns a canned result and records the id it saw.
type stubValidator struct {
	result session.ValidationResult
	seenID string
}

func (v *stubValidator) ValidateSession(_ context.Context, id string) session.ValidationResult {
	v.seenID = id
	return v.result
}

func validResult(mfaPending bool) session.ValidationResult {
	return session.ValidationResult{
		Valid: true,
		Session: &models.SecuritySession{
			ID:         "sess-1",
			Identity:   "u1@example.com",
			Active:     true,
			MFAPending: mfaPending,
		},
	}
}

func sessionEcho(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFromContext(r.Context())
		require.True(t, ok, "session missing from context")
		w.Header().Set("X-Identity", sess.Identity)
		w.WriteHeader(http.StatusOK)
	}
}

func TestRequireSession_HeaderTransport(t *testing.T) {
	validator := &stubValidator{result: validResult(false)}
	handler := RequireSession(validator)(sessionEcho(t))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Session-ID", "sess-1")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sess-1", validator.seenID)
	assert.Equal(t, "u1@example.com", w.Header().Get("X-Identity"))
}

func TestRequireSession_BearerTransport(t *testing.T) {
	validator := &stubValidator{result: validResult(false)}
	handler := RequireSession(validator)(sessionEcho(t))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer sess-1")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sess-1", validator.seenID)
}

func TestRequireSession_CookieTransport(t *testing.T) {
	validator := &stubValidator{result: validResult(false)}
	handler := RequireSession(validator)(sessionEcho(t))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: "warden_session", Value: "sess-1"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sess-1", validator.seenID)
}

func TestRequireSession_HeaderWinsOverCookie(t *testing.T) {
	validator := &stubValidator{result: validResult(false)}
	handler := RequireSession(validator)(sessionEcho(t))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Session-ID", "header-id")
	req.AddCookie(&http.Cookie{Name: "warden_session", Value: "cookie-id"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, "header-id", validator.seenID)
}

func TestRequireSession_MissingID(t *testing.T) {
	validator := &stubValidator{result: validResult(false)}
	handler := RequireSession(validator)(sessionEcho(t))

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, validator.seenID)
}

func TestRequireSession_InvalidSession(t *testing.T) {
	validator := &stubValidator{result: session.ValidationResult{
		Valid:  false,
		Reason: models.ValidationSessionTimeout,
	}}
	handler := RequireSession(validator)(sessionEcho(t))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Session-ID", "sess-1")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireSession_AllowsPendingMFA(t *testing.T) {
	validator := &stubValidator{result: validResult(true)}
	handler := RequireSession(validator)(sessionEcho(t))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Session-ID", "sess-1")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireVerifiedSession_RejectsPendingMFA(t *testing.T) {
	validator := &stubValidator{result: validResult(true)}
	handler := RequireVerifiedSession(validator)(sessionEcho(t))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Session-ID", "sess-1")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "mfa_required")
}

func TestRequireVerifiedSession_AllowsVerified(t *testing.T) {
	validator := &stubValidator{result: validResult(false)}
	handler := RequireVerifiedSession(validator)(sessionEcho(t))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Session-ID", "sess-1")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionCookieRoundTrip(t *testing.T) {
	w := httptest.NewRecorder()
	SetSessionCookie(w, "sess-1", 3600, CookieConfig{Secure: true, SameSite: "strict"})

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, "warden_session", cookie.Name)
	assert.Equal(t, "sess-1", cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(cookie)
	got, err := GetSessionCookie(req)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", got)
}

func TestClearSessionCookie(t *testing.T) {
	w := httptest.NewRecorder()
	ClearSessionCookie(w, CookieConfig{})

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "warden_session", cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}
