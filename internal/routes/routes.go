package routes

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/strandpine/warden/internal/handlers"
	"github.com/strandpine/warden/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	mfaHandler *handlers.MFAHandler,
	securityHandler *handlers.SecurityHandler,
	validator middleware.SessionValidator,
	operatorKeyHash string,
	logger *slog.Logger,
) {
	// Rate limiting config for the login endpoint
	rateLimitConfig := middleware.DefaultLoginRateLimit()

	// Public routes - no session required
	router.With(middleware.RateLimitByAddress(rateLimitConfig)).Post("/auth/login", authHandler.Login)
	router.Post("/auth/validate", authHandler.Validate)

	// Session-holder routes. Sessions with a pending second factor may
	// log out and complete verification, nothing else.
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(validator))

		r.Post("/auth/logout", authHandler.Logout)
		r.Post("/auth/mfa/enroll", mfaHandler.Enroll)
		r.Post("/auth/mfa/verify", mfaHandler.VerifyMFA)
	})

	// Verified-session routes
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireVerifiedSession(validator))

		r.Get("/auth/sessions", authHandler.ListSessions)
	})

	// Operator routes - keyed, fail closed when no key is configured
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireOperatorKey(operatorKeyHash, logger))

		r.Get("/security/stats", securityHandler.Stats)
		r.Get("/security/events", securityHandler.Events)
		r.Patch("/security/config", securityHandler.UpdateConfig)
		r.Post("/security/sessions/{id}/terminate", securityHandler.TerminateSession)
	})
}
