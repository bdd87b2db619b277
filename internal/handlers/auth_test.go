package handlers_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/strandpine/warden/internal/config"
	"github.com/strandpine/warden/internal/handlers"
	"github.com/strandpine/warden/internal/middleware"
	"github.com/strandpine/warden/internal/models"
	"github.com/strandpine/warden/internal/security"
	"github.com/strandpine/warden/internal/session"
)

func testConfigSource() *handlers.StaticConfigSource {
	return &handlers.StaticConfigSource{
		Config: config.SecurityConfig{
			MaxLoginAttempts:            5,
			LockoutDuration:             30 * time.Minute,
			SessionTimeout:              time.Hour,
			MaxConcurrentSessions:       3,
			MinPasswordLength:           12,
			SuspiciousActivityThreshold: 7,
		},
	}
}

func TestLogin_Success(t *testing.T) {
	mockService := &handlers.MockSecurityService{
		SecureLoginFunc: func(ctx context.Context, principal, secret string, reqCtx security.RequestContext) security.LoginResult {
			return security.LoginResult{
				Success:   true,
				Identity:  principal,
				SessionID: "sess_123",
				Token:     "token_123",
				RiskScore: 2,
			}
		},
	}

	handler := handlers.NewAuthHandler(mockService, testConfigSource(), nil, middleware.CookieConfig{})
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Identity: "user@example.com",
		Secret:   "correct horse battery staple",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp security.LoginResult
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "sess_123", resp.SessionID)
	assert.Equal(t, "token_123", resp.Token)
	assert.False(t, resp.RequiresMFA)
}

func TestLogin_Success_SetsSessionCookie(t *testing.T) {
	mockService := &handlers.MockSecurityService{
		SecureLoginFunc: func(ctx context.Context, principal, secret string, reqCtx security.RequestContext) security.LoginResult {
			return security.LoginResult{Success: true, SessionID: "sess_cookie"}
		},
	}

	handler := handlers.NewAuthHandler(mockService, testConfigSource(), nil, middleware.CookieConfig{})
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Identity: "user@example.com",
		Secret:   "correct horse battery staple",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	cookies := w.Result().Cookies()
	found := false
	for _, c := range cookies {
		if c.Name == "warden_session" {
			found = true
			assert.Equal(t, "sess_cookie", c.Value)
			assert.True(t, c.HttpOnly)
			assert.Equal(t, 3600, c.MaxAge)
		}
	}
	assert.True(t, found, "session cookie should be set on successful login")
}

func TestLogin_Failure_GenericUnauthorized(t *testing.T) {
	mockService := &handlers.MockSecurityService{
		SecureLoginFunc: func(ctx context.Context, principal, secret string, reqCtx security.RequestContext) security.LoginResult {
			return security.LoginResult{Error: "Authentication failed", RiskScore: 4}
		},
	}

	handler := handlers.NewAuthHandler(mockService, testConfigSource(), nil, middleware.CookieConfig{})
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Identity: "user@example.com",
		Secret:   "wrong",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
	assert.Empty(t, w.Result().Cookies(), "no session cookie on failed login")
}

func TestLogin_InvalidBody(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockSecurityService{}, testConfigSource(), nil, middleware.CookieConfig{})

	req := httptest.NewRequest("POST", "/auth/login", nil)
	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestLogin_MissingFields(t *testing.T) {
	called := false
	mockService := &handlers.MockSecurityService{
		SecureLoginFunc: func(ctx context.Context, principal, secret string, reqCtx security.RequestContext) security.LoginResult {
			called = true
			return security.LoginResult{Success: true}
		},
	}

	handler := handlers.NewAuthHandler(mockService, testConfigSource(), nil, middleware.CookieConfig{})
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Identity: "user@example.com",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
	assert.False(t, called, "service should not be called for invalid requests")
}

func TestLogin_PassesRequestContext(t *testing.T) {
	var captured security.RequestContext
	mockService := &handlers.MockSecurityService{
		SecureLoginFunc: func(ctx context.Context, principal, secret string, reqCtx security.RequestContext) security.LoginResult {
			captured = reqCtx
			return security.LoginResult{Success: true, SessionID: "sess"}
		},
	}

	handler := handlers.NewAuthHandler(mockService, testConfigSource(), nil, middleware.CookieConfig{})
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Identity: "user@example.com",
		Secret:   "correct horse battery staple",
	})
	req.RemoteAddr = "198.51.100.7:51234"
	req.Header.Set("User-Agent", "warden-test/1.0")

	w := httptest.NewRecorder()
	handler.Login(w, req)

	assert.Equal(t, "198.51.100.7", captured.Address)
	assert.Equal(t, "warden-test/1.0", captured.ClientSignature)
}

func TestValidate_ValidSession(t *testing.T) {
	sess := handlers.NewTestSession("sess_valid", "user@example.com")
	mockService := &handlers.MockSecurityService{
		ValidateSessionFunc: func(ctx context.Context, id string) session.ValidationResult {
			assert.Equal(t, "sess_valid", id)
			return session.ValidationResult{Valid: true, Session: sess}
		},
	}

	handler := handlers.NewAuthHandler(mockService, testConfigSource(), nil, middleware.CookieConfig{})
	req := handlers.NewTestRequest(t, "POST", "/auth/validate", handlers.ValidateSessionRequest{
		SessionID: "sess_valid",
	})

	w := httptest.NewRecorder()
	handler.Validate(w, req)

	var resp handlers.ValidateSessionResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.True(t, resp.Valid)
	assert.Empty(t, resp.Reason)
	if assert.NotNil(t, resp.Session) {
		assert.Equal(t, "sess_valid", resp.Session.ID)
		assert.Equal(t, "user@example.com", resp.Session.Identity)
	}
}

func TestValidate_InvalidSession_Returns200WithReason(t *testing.T) {
	mockService := &handlers.MockSecurityService{
		ValidateSessionFunc: func(ctx context.Context, id string) session.ValidationResult {
			return session.ValidationResult{Reason: models.ValidationSessionTimeout}
		},
	}

	handler := handlers.NewAuthHandler(mockService, testConfigSource(), nil, middleware.CookieConfig{})
	req := handlers.NewTestRequest(t, "POST", "/auth/validate", handlers.ValidateSessionRequest{
		SessionID: "sess_expired",
	})

	w := httptest.NewRecorder()
	handler.Validate(w, req)

	var resp handlers.ValidateSessionResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.False(t, resp.Valid)
	assert.Equal(t, "session_timeout", resp.Reason)
	assert.Nil(t, resp.Session)
}

func TestValidate_FallsBackToHeader(t *testing.T) {
	var requested string
	mockService := &handlers.MockSecurityService{
		ValidateSessionFunc: func(ctx context.Context, id string) session.ValidationResult {
			requested = id
			return session.ValidationResult{Valid: true, Session: handlers.NewTestSession(id, "user@example.com")}
		},
	}

	handler := handlers.NewAuthHandler(mockService, testConfigSource(), nil, middleware.CookieConfig{})
	req := httptest.NewRequest("POST", "/auth/validate", nil)
	req.Header.Set("X-Session-ID", "sess_from_header")

	w := httptest.NewRecorder()
	handler.Validate(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "sess_from_header", requested)
}

func TestValidate_MissingSessionID(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockSecurityService{}, testConfigSource(), nil, middleware.CookieConfig{})

	req := httptest.NewRequest("POST", "/auth/validate", nil)
	w := httptest.NewRecorder()
	handler.Validate(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestLogout_Success(t *testing.T) {
	var terminatedID string
	var terminatedReason models.TerminationReason
	mockService := &handlers.MockSecurityService{
		TerminateSessionFunc: func(ctx context.Context, id string, reason models.TerminationReason) (*models.SecuritySession, bool) {
			terminatedID = id
			terminatedReason = reason
			return &models.SecuritySession{ID: id, Active: false}, true
		},
	}

	handler := handlers.NewAuthHandler(mockService, testConfigSource(), nil, middleware.CookieConfig{})
	req := handlers.NewTestRequest(t, "POST", "/auth/logout", nil)
	req = handlers.WithSessionContext(req, handlers.NewTestSession("sess_out", "user@example.com"))

	w := httptest.NewRecorder()
	handler.Logout(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "sess_out", terminatedID)
	assert.Equal(t, models.TerminationLogout, terminatedReason)

	cleared := false
	for _, c := range w.Result().Cookies() {
		if c.Name == "warden_session" && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "session cookie should be cleared on logout")
}

func TestLogout_NoSessionContext(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockSecurityService{}, testConfigSource(), nil, middleware.CookieConfig{})

	req := handlers.NewTestRequest(t, "POST", "/auth/logout", nil)
	w := httptest.NewRecorder()
	handler.Logout(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestListSessions_ReturnsCallerSessions(t *testing.T) {
	mockService := &handlers.MockSecurityService{
		ActiveSessionsFunc: func(identity string) []models.SecuritySession {
			assert.Equal(t, "user@example.com", identity)
			return []models.SecuritySession{
				*handlers.NewTestSession("sess_a", identity),
				*handlers.NewTestSession("sess_b", identity),
			}
		},
	}

	handler := handlers.NewAuthHandler(mockService, testConfigSource(), nil, middleware.CookieConfig{})
	req := handlers.NewTestRequest(t, "GET", "/auth/sessions", nil)
	req = handlers.WithSessionContext(req, handlers.NewTestSession("sess_a", "user@example.com"))

	w := httptest.NewRecorder()
	handler.ListSessions(w, req)

	var resp struct {
		Sessions []handlers.SessionView `json:"sessions"`
		Count    int                    `json:"count"`
	}
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, 2, resp.Count)
	assert.Len(t, resp.Sessions, 2)
	assert.Equal(t, "sess_a", resp.Sessions[0].ID)

	// Session views never leak device or client signatures.
	assert.NotContains(t, w.Body.String(), "device_signature")
	assert.NotContains(t, w.Body.String(), "client_signature")
}
