package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/strandpine/warden/internal/mfa"
	"github.com/strandpine/warden/internal/middleware"
	"github.com/strandpine/warden/internal/models"
	pkghttp "github.com/strandpine/warden/pkg/http"
)

// Enroller issues a new second factor secret for an identity
type Enroller interface {
	Enroll(ctx context.Context, identity string) (*mfa.EnrollmentResult, error)
}

// MFAVerifier completes a pending second factor challenge on a session
type MFAVerifier interface {
	VerifyMFA(ctx context.Context, sessionID, code string) (*models.SecuritySession, error)
}

// MFAHandler handles second factor enrollment and verification. The
// enroller is nil when no encryption key is configured; enrollment
// then answers 503 while verification of already pending sessions
// still works through the manager.
type MFAHandler struct {
	enroller Enroller
	verifier MFAVerifier
}

// NewMFAHandler creates a new MFAHandler
func NewMFAHandler(enroller Enroller, verifier MFAVerifier) *MFAHandler {
	return &MFAHandler{
		enroller: enroller,
		verifier: verifier,
	}
}

// VerifyMFARequest represents the request body for MFA verification
type VerifyMFARequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// Enroll handles POST /auth/mfa/enroll for the authenticated session.
func (h *MFAHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	if h.enroller == nil {
		pkghttp.WriteError(w, http.StatusServiceUnavailable, "mfa_unavailable", "Second factor enrollment is not configured")
		return
	}

	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	result, err := h.enroller.Enroll(r.Context(), sess.Identity)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to enroll second factor")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// VerifyMFA handles POST /auth/mfa/verify, clearing the session's
// pending flag when the code checks out.
func (h *MFAHandler) VerifyMFA(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req VerifyMFARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	verified, err := h.verifier.VerifyMFA(r.Context(), sess.ID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrMFANotPending):
			pkghttp.WriteBadRequest(w, "Session has no pending second factor")
		case errors.Is(err, models.ErrMFANotEnrolled):
			pkghttp.WriteBadRequest(w, "No second factor enrolled")
		case errors.Is(err, models.ErrMFACodeInvalid):
			pkghttp.WriteUnauthorized(w, "Invalid code")
		case errors.Is(err, models.ErrSessionNotFound):
			pkghttp.WriteUnauthorized(w, "Unauthorized")
		default:
			pkghttp.WriteInternalError(w, "Failed to verify second factor")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, NewSessionView(verified))
}
