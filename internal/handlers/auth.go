package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/strandpine/warden/internal/config"
	"github.com/strandpine/warden/internal/middleware"
	"github.com/strandpine/warden/internal/models"
	"github.com/strandpine/warden/internal/security"
	"github.com/strandpine/warden/internal/session"
	pkghttp "github.com/strandpine/warden/pkg/http"
)

// SecurityService defines the security manager operations the auth
// endpoints depend on
type SecurityService interface {
	SecureLogin(ctx context.Context, principal, secret string, reqCtx security.RequestContext) security.LoginResult
	ValidateSession(ctx context.Context, id string) session.ValidationResult
	TerminateSession(ctx context.Context, id string, reason models.TerminationReason) (*models.SecuritySession, bool)
	ActiveSessions(identity string) []models.SecuritySession
}

// ConfigSource supplies the active security config
type ConfigSource interface {
	Current() config.SecurityConfig
}

// AuthHandler handles login, session validation and logout
type AuthHandler struct {
	service  SecurityService
	cfg      ConfigSource
	ipConfig *pkghttp.IPConfig
	cookies  middleware.CookieConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service SecurityService, cfg ConfigSource, ipConfig *pkghttp.IPConfig, cookies middleware.CookieConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		cfg:      cfg,
		ipConfig: ipConfig,
		cookies:  cookies,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Identity string `json:"identity" validate:"required"`
	Secret   string `json:"secret" validate:"required"`
}

// ValidateSessionRequest represents the request body for session
// validation. The body is optional; without it the session id is read
// from the usual transports.
type ValidateSessionRequest struct {
	SessionID string `json:"session_id"`
}

// ValidateSessionResponse reports the validation outcome. Invalid
// sessions still answer 200: the endpoint's job is to report state,
// not to gate access.
type ValidateSessionResponse struct {
	Valid   bool         `json:"valid"`
	Reason  string       `json:"reason,omitempty"`
	Session *SessionView `json:"session,omitempty"`
}

// SessionView is the caller-facing projection of a session record.
type SessionView struct {
	ID           string    `json:"id"`
	Identity     string    `json:"identity"`
	Address      string    `json:"address"`
	Location     string    `json:"location,omitempty"`
	LoginTime    time.Time `json:"login_time"`
	LastActivity time.Time `json:"last_activity"`
	RiskScore    int       `json:"risk_score"`
	MFAPending   bool      `json:"mfa_pending"`
}

// NewSessionView projects a session record for API responses.
func NewSessionView(sess *models.SecuritySession) *SessionView {
	return &SessionView{
		ID:           sess.ID,
		Identity:     sess.Identity,
		Address:      sess.Address,
		Location:     sess.Location,
		LoginTime:    sess.LoginTime,
		LastActivity: sess.LastActivity,
		RiskScore:    sess.RiskScore,
		MFAPending:   sess.MFAPending,
	}
}

// Login handles POST /auth/login. Every failure answers 401 with the
// same generic body, so callers cannot distinguish bad credentials
// from a blocked address.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result := h.service.SecureLogin(r.Context(), req.Identity, req.Secret, security.RequestContext{
		Address:         pkghttp.ExtractClientIP(r, h.ipConfig),
		ClientSignature: pkghttp.ClientSignature(r),
	})
	if !result.Success {
		pkghttp.WriteUnauthorized(w, result.Error)
		return
	}

	maxAge := int(h.cfg.Current().SessionTimeout.Seconds())
	middleware.SetSessionCookie(w, result.SessionID, maxAge, h.cookies)

	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// Validate handles POST /auth/validate. Accepts the session id in the
// body or via the usual transports and reports whether it is still
// valid, bumping activity when it is.
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateSessionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			pkghttp.WriteBadRequest(w, "Invalid request body")
			return
		}
	}

	id := req.SessionID
	if id == "" {
		id = middleware.ExtractSessionID(r)
	}
	if id == "" {
		pkghttp.WriteBadRequest(w, "session_id is required")
		return
	}

	result := h.service.ValidateSession(r.Context(), id)
	resp := ValidateSessionResponse{Valid: result.Valid}
	if result.Valid {
		resp.Session = NewSessionView(result.Session)
	} else {
		resp.Reason = string(result.Reason)
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Logout handles POST /auth/logout for the authenticated session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	h.service.TerminateSession(r.Context(), sess.ID, models.TerminationLogout)
	middleware.ClearSessionCookie(w, h.cookies)

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// ListSessions handles GET /auth/sessions, returning the caller's
// active sessions oldest login first.
func (h *AuthHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	active := h.service.ActiveSessions(sess.Identity)
	views := make([]*SessionView, 0, len(active))
	for i := range active {
		views = append(views, NewSessionView(&active[i]))
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"sessions": views,
		"count":    len(views),
	})
}
