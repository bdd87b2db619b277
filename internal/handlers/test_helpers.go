package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/strandpine/warden/internal/config"
	"github.com/strandpine/warden/internal/mfa"
	"github.com/strandpine/warden/internal/middleware"
	"github.com/strandpine/warden/internal/models"
	"github.com/strandpine/warden/internal/security"
	"github.com/strandpine/warden/internal/session"
	pkghttp "github.com/strandpine/warden/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithSessionContext injects a validated session into the request
// context, standing in for the RequireSession middleware.
func WithSessionContext(req *http.Request, sess *models.SecuritySession) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.SessionContextKey, sess)
	return req.WithContext(ctx)
}

// NewTestSession builds an active session for handler tests.
func NewTestSession(id, identity string) *models.SecuritySession {
	now := time.Now().UTC()
	return &models.SecuritySession{
		ID:              id,
		Identity:        identity,
		DeviceSignature: "device-sig",
		Address:         "203.0.113.10",
		ClientSignature: "test-agent",
		LoginTime:       now.Add(-time.Minute),
		LastActivity:    now,
		Active:          true,
	}
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// WithChiRouteContext adds chi URL parameters to request context for testing
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// StaticConfigSource serves a fixed config for testing
type StaticConfigSource struct {
	Config config.SecurityConfig
}

func (s *StaticConfigSource) Current() config.SecurityConfig {
	return s.Config
}

// MockSecurityService implements SecurityService for testing
type MockSecurityService struct {
	SecureLoginFunc      func(ctx context.Context, principal, secret string, reqCtx security.RequestContext) security.LoginResult
	ValidateSessionFunc  func(ctx context.Context, id string) session.ValidationResult
	TerminateSessionFunc func(ctx context.Context, id string, reason models.TerminationReason) (*models.SecuritySession, bool)
	ActiveSessionsFunc   func(identity string) []models.SecuritySession
}

func (m *MockSecurityService) SecureLogin(ctx context.Context, principal, secret string, reqCtx security.RequestContext) security.LoginResult {
	if m.SecureLoginFunc == nil {
		return security.LoginResult{Error: "Authentication failed"}
	}
	return m.SecureLoginFunc(ctx, principal, secret, reqCtx)
}

func (m *MockSecurityService) ValidateSession(ctx context.Context, id string) session.ValidationResult {
	if m.ValidateSessionFunc == nil {
		return session.ValidationResult{Reason: models.ValidationSessionNotFound}
	}
	return m.ValidateSessionFunc(ctx, id)
}

func (m *MockSecurityService) TerminateSession(ctx context.Context, id string, reason models.TerminationReason) (*models.SecuritySession, bool) {
	if m.TerminateSessionFunc == nil {
		return nil, false
	}
	return m.TerminateSessionFunc(ctx, id, reason)
}

func (m *MockSecurityService) ActiveSessions(identity string) []models.SecuritySession {
	if m.ActiveSessionsFunc == nil {
		return []models.SecuritySession{}
	}
	return m.ActiveSessionsFunc(identity)
}

// MockEnroller implements Enroller for testing
type MockEnroller struct {
	EnrollFunc func(ctx context.Context, identity string) (*mfa.EnrollmentResult, error)
}

func (m *MockEnroller) Enroll(ctx context.Context, identity string) (*mfa.EnrollmentResult, error) {
	if m.EnrollFunc == nil {
		return &mfa.EnrollmentResult{Secret: "SECRET", URL: "otpauth://totp/test"}, nil
	}
	return m.EnrollFunc(ctx, identity)
}

// MockMFAVerifier implements MFAVerifier for testing
type MockMFAVerifier struct {
	VerifyMFAFunc func(ctx context.Context, sessionID, code string) (*models.SecuritySession, error)
}

func (m *MockMFAVerifier) VerifyMFA(ctx context.Context, sessionID, code string) (*models.SecuritySession, error) {
	if m.VerifyMFAFunc == nil {
		return nil, models.ErrMFACodeInvalid
	}
	return m.VerifyMFAFunc(ctx, sessionID, code)
}

// MockAdminService implements AdminService for testing
type MockAdminService struct {
	SecurityStatsFunc        func() security.Stats
	RecentSecurityEventsFunc func() []models.LoginAttempt
	UpdateConfigFunc         func(patch config.SecurityPatch) (config.SecurityConfig, error)
	TerminateSessionFunc     func(ctx context.Context, id string, reason models.TerminationReason) (*models.SecuritySession, bool)
}

func (m *MockAdminService) SecurityStats() security.Stats {
	if m.SecurityStatsFunc == nil {
		return security.Stats{}
	}
	return m.SecurityStatsFunc()
}

func (m *MockAdminService) RecentSecurityEvents() []models.LoginAttempt {
	if m.RecentSecurityEventsFunc == nil {
		return []models.LoginAttempt{}
	}
	return m.RecentSecurityEventsFunc()
}

func (m *MockAdminService) UpdateConfig(patch config.SecurityPatch) (config.SecurityConfig, error) {
	if m.UpdateConfigFunc == nil {
		return config.SecurityConfig{}, nil
	}
	return m.UpdateConfigFunc(patch)
}

func (m *MockAdminService) TerminateSession(ctx context.Context, id string, reason models.TerminationReason) (*models.SecuritySession, bool) {
	if m.TerminateSessionFunc == nil {
		return nil, false
	}
	return m.TerminateSessionFunc(ctx, id, reason)
}
