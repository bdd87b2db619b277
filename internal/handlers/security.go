package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/strandpine/warden/internal/config"
	"github.com/strandpine/warden/internal/models"
	"github.com/strandpine/warden/internal/security"
	pkghttp "github.com/strandpine/warden/pkg/http"
)

// AdminService defines the security manager operations the operator
// endpoints depend on
type AdminService interface {
	SecurityStats() security.Stats
	RecentSecurityEvents() []models.LoginAttempt
	UpdateConfig(patch config.SecurityPatch) (config.SecurityConfig, error)
	TerminateSession(ctx context.Context, id string, reason models.TerminationReason) (*models.SecuritySession, bool)
}

// SecurityHandler handles the operator surface: stats, recent events,
// live config updates and forced session termination
type SecurityHandler struct {
	service AdminService
}

// NewSecurityHandler creates a new SecurityHandler
func NewSecurityHandler(service AdminService) *SecurityHandler {
	return &SecurityHandler{service: service}
}

// SecurityConfigRequest represents the request body for a config
// update. Absent fields keep their current values.
type SecurityConfigRequest struct {
	MaxLoginAttempts            *int  `json:"max_login_attempts" validate:"omitempty,gte=1"`
	LockoutDurationMinutes      *int  `json:"lockout_duration_minutes" validate:"omitempty,gte=1"`
	SessionTimeoutMinutes       *int  `json:"session_timeout_minutes" validate:"omitempty,gte=1"`
	MaxConcurrentSessions       *int  `json:"max_concurrent_sessions" validate:"omitempty,gte=1"`
	RequireMFA                  *bool `json:"require_mfa"`
	MinPasswordLength           *int  `json:"min_password_length" validate:"omitempty,gte=1"`
	RequirePasswordComplexity   *bool `json:"require_password_complexity"`
	SuspiciousActivityThreshold *int  `json:"suspicious_activity_threshold" validate:"omitempty,gte=0"`
}

// SecurityConfigView renders the active config with durations in
// minutes, mirroring the request shape.
type SecurityConfigView struct {
	MaxLoginAttempts            int  `json:"max_login_attempts"`
	LockoutDurationMinutes      int  `json:"lockout_duration_minutes"`
	SessionTimeoutMinutes       int  `json:"session_timeout_minutes"`
	MaxConcurrentSessions       int  `json:"max_concurrent_sessions"`
	RequireMFA                  bool `json:"require_mfa"`
	MinPasswordLength           int  `json:"min_password_length"`
	RequirePasswordComplexity   bool `json:"require_password_complexity"`
	SuspiciousActivityThreshold int  `json:"suspicious_activity_threshold"`
}

// NewSecurityConfigView projects a config for API responses.
func NewSecurityConfigView(cfg config.SecurityConfig) SecurityConfigView {
	return SecurityConfigView{
		MaxLoginAttempts:            cfg.MaxLoginAttempts,
		LockoutDurationMinutes:      int(cfg.LockoutDuration.Minutes()),
		SessionTimeoutMinutes:       int(cfg.SessionTimeout.Minutes()),
		MaxConcurrentSessions:       cfg.MaxConcurrentSessions,
		RequireMFA:                  cfg.RequireMFA,
		MinPasswordLength:           cfg.MinPasswordLength,
		RequirePasswordComplexity:   cfg.RequirePasswordComplexity,
		SuspiciousActivityThreshold: cfg.SuspiciousActivityThreshold,
	}
}

// Stats handles GET /security/stats.
func (h *SecurityHandler) Stats(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, h.service.SecurityStats())
}

// Events handles GET /security/events, returning the last day of
// login attempts newest first.
func (h *SecurityHandler) Events(w http.ResponseWriter, r *http.Request) {
	events := h.service.RecentSecurityEvents()

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// UpdateConfig handles PATCH /security/config. The patch is applied
// atomically; a merge that fails validation changes nothing.
func (h *SecurityHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req SecurityConfigRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	patch := config.SecurityPatch{
		MaxLoginAttempts:            req.MaxLoginAttempts,
		MaxConcurrentSessions:       req.MaxConcurrentSessions,
		RequireMFA:                  req.RequireMFA,
		MinPasswordLength:           req.MinPasswordLength,
		RequirePasswordComplexity:   req.RequirePasswordComplexity,
		SuspiciousActivityThreshold: req.SuspiciousActivityThreshold,
	}
	if req.LockoutDurationMinutes != nil {
		d := time.Duration(*req.LockoutDurationMinutes) * time.Minute
		patch.LockoutDuration = &d
	}
	if req.SessionTimeoutMinutes != nil {
		d := time.Duration(*req.SessionTimeoutMinutes) * time.Minute
		patch.SessionTimeout = &d
	}

	applied, err := h.service.UpdateConfig(patch)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, NewSecurityConfigView(applied))
}

// TerminateSession handles POST /security/sessions/{id}/terminate.
func (h *SecurityHandler) TerminateSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		pkghttp.WriteBadRequest(w, "Session ID is required")
		return
	}

	sess, performed := h.service.TerminateSession(r.Context(), id, models.TerminationLogout)
	if sess == nil {
		pkghttp.WriteNotFound(w, "Session not found")
		return
	}
	if !performed {
		// Terminating twice is a success, not an error
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Session already terminated"})
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Session terminated"})
}
