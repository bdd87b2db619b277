package security

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/strandpine/warden/internal/config"
	"github.com/strandpine/warden/internal/devices"
	"github.com/strandpine/warden/internal/fingerprint"
	"github.com/strandpine/warden/internal/geo"
	"github.com/strandpine/warden/internal/identity"
	"github.com/strandpine/warden/internal/ledger"
	"github.com/strandpine/warden/internal/lockout"
	"github.com/strandpine/warden/internal/models"
	"github.com/strandpine/warden/internal/risk"
	"github.com/strandpine/warden/internal/session"
)

const (
	// genericLoginError is the only message a failed login ever carries.
	// Bad credentials and an active address block are indistinguishable
	// to the caller, so lockout state cannot be probed.
	genericLoginError = "Authentication failed"

	// recentEventsLimit caps the RecentSecurityEvents result.
	recentEventsLimit = 50

	// attemptWindow is the horizon for stats and risk history.
	attemptWindow = 24 * time.Hour
)

// RequestContext carries the request-derived attributes of a login
// call: the caller's network address and raw client signature (e.g.
// the User-Agent header). The manager derives the device signature
// from them.
type RequestContext struct {
	Address         string
	ClientSignature string
}

// LoginResult is the outcome of SecureLogin. On failure Error carries
// the generic message and FailureReason the internal taxonomy entry;
// the reason is never serialized to callers outside the process.
type LoginResult struct {
	Success       bool                  `json:"success"`
	Identity      string                `json:"identity,omitempty"`
	SessionID     string                `json:"session_id,omitempty"`
	Token         string                `json:"token,omitempty"`
	RequiresMFA   bool                  `json:"requires_mfa"`
	RiskScore     int                   `json:"risk_score"`
	Error         string                `json:"error,omitempty"`
	FailureReason *models.FailureReason `json:"-"`
}

// SecondFactor verifies a TOTP (or equivalent) code for an identity.
type SecondFactor interface {
	Validate(ctx context.Context, identity, code string) error
}

// Stats is the snapshot returned by SecurityStats.
type Stats struct {
	ActiveSessions   int   `json:"active_sessions"`
	AttemptsLast24h  int   `json:"attempts_last_24h"`
	BlockedAddresses int   `json:"blocked_addresses"`
	Incidents        int64 `json:"incidents"`
}

// Manager is the single entry point for login gating, session
// validation and the security query surface. It owns no store locks of
// its own: each component guards its own state, and the identity
// provider is always called with no lock held.
type Manager struct {
	cfg       *config.Holder
	ledger    *ledger.Ledger
	sessions  *session.Manager
	lockout   *lockout.Manager
	devices   *devices.Registry
	risk      *risk.Engine
	locator   geo.Resolver
	provider  identity.Provider
	second    SecondFactor
	delay     *TimingDelay
	logger    *slog.Logger
	sinks     []EventSink
	incidents atomic.Int64
}

// NewManager wires the security facade. second may be nil when no MFA
// backend is configured; VerifyMFA then fails with ErrMFANotEnrolled.
func NewManager(
	cfg *config.Holder,
	attempts *ledger.Ledger,
	sessions *session.Manager,
	locks *lockout.Manager,
	registry *devices.Registry,
	engine *risk.Engine,
	locator geo.Resolver,
	provider identity.Provider,
	second SecondFactor,
	delay *TimingDelay,
	logger *slog.Logger,
	sinks ...EventSink,
) *Manager {
	return &Manager{
		cfg:      cfg,
		ledger:   attempts,
		sessions: sessions,
		lockout:  locks,
		devices:  registry,
		risk:     engine,
		locator:  locator,
		provider: provider,
		second:   second,
		delay:    delay,
		logger:   logger,
		sinks:    sinks,
	}
}

// SecureLogin gates one login attempt:
//
//  1. derive the device signature from the request context
//  2. refuse blocked addresses before the provider is ever contacted
//  3. score the attempt against ledger and session history
//  4. verify credentials with the external provider (no locks held)
//  5. on failure, record the attempt and maybe block the address
//  6. on success, record the attempt, register the device and create
//     a session, evicting the least recently active one at the cap
//
// Every failure returns the same generic message; only the recorded
// ledger entry and the internal reason differ.
func (m *Manager) SecureLogin(ctx context.Context, principal, secret string, reqCtx RequestContext) LoginResult {
	start := time.Now()
	principal = strings.ToLower(strings.TrimSpace(principal))
	deviceSig := fingerprint.Derive(reqCtx.Address, reqCtx.ClientSignature)

	if m.lockout.IsBlocked(ctx, reqCtx.Address) {
		reason := models.FailureIPBlocked
		m.ledger.Record(ctx, &models.LoginAttempt{
			Identity:        principal,
			Address:         reqCtx.Address,
			ClientSignature: reqCtx.ClientSignature,
			DeviceSignature: deviceSig,
			Success:         false,
			FailureReason:   &reason,
			Blocked:         true,
		})
		m.logger.Warn("login rejected: address blocked", slog.String("address", reqCtx.Address))
		m.delay.Wait(start)
		return LoginResult{
			Success:       false,
			RiskScore:     risk.MaxScore,
			Error:         genericLoginError,
			FailureReason: &reason,
		}
	}

	now := time.Now()
	score, factors := m.risk.Score(risk.Input{
		Address:        reqCtx.Address,
		RecentFailures: m.ledger.CountFailures(principal, "", now.Add(-attemptWindow)),
		KnownAddress:   m.sessions.HasActiveAddress(principal, reqCtx.Address),
		DeviceKnown:    m.devices.KnownFor(deviceSig, principal),
		Now:            now,
	})
	if score >= m.cfg.Current().SuspiciousActivityThreshold {
		m.emitIncident(ctx, principal, reqCtx.Address, score, map[string]string{
			"factors": strings.Join(factors, ","),
		})
	}

	verified, err := m.provider.Verify(ctx, principal, secret)
	if err != nil {
		reason := categorizeProviderError(err)
		m.ledger.Record(ctx, &models.LoginAttempt{
			Identity:        principal,
			Address:         reqCtx.Address,
			ClientSignature: reqCtx.ClientSignature,
			DeviceSignature: deviceSig,
			Success:         false,
			FailureReason:   &reason,
			RiskFactors:     factors,
		})
		blocked, until := m.lockout.RecordFailureAndMaybeBlock(ctx, principal, reqCtx.Address)
		if blocked {
			m.emitIncident(ctx, principal, reqCtx.Address, score, map[string]string{
				"action":        "address_blocked",
				"blocked_until": until.UTC().Format(time.RFC3339),
			})
		}
		m.logger.Info("login failed",
			slog.String("reason", string(reason)),
			slog.Int("risk_score", score))
		m.delay.Wait(start)
		return LoginResult{
			Success:       false,
			RiskScore:     score,
			Error:         genericLoginError,
			FailureReason: &reason,
		}
	}

	m.ledger.Record(ctx, &models.LoginAttempt{
		Identity:        verified.Identity,
		Address:         reqCtx.Address,
		ClientSignature: reqCtx.ClientSignature,
		DeviceSignature: deviceSig,
		Success:         true,
		RiskFactors:     factors,
	})
	m.devices.Register(deviceSig, verified.Identity)

	requiresMFA := m.cfg.Current().RequireMFA || score >= risk.MFAThreshold
	sess, evicted, err := m.sessions.Create(ctx, verified.Identity, session.Context{
		Address:         reqCtx.Address,
		ClientSignature: reqCtx.ClientSignature,
		DeviceSignature: deviceSig,
		Location:        m.locator.Locate(reqCtx.Address),
	}, score, requiresMFA)
	if err != nil {
		m.logger.Error("failed to create session", slog.Any("error", err))
		return LoginResult{Success: false, RiskScore: score, Error: genericLoginError}
	}
	for _, old := range evicted {
		m.emitLogout(ctx, old, models.TerminationConcurrentLimit)
	}

	m.emit(ctx, models.SecurityEvent{
		ID:        uuid.New().String(),
		Type:      models.EventLogin,
		Identity:  sess.Identity,
		SessionID: sess.ID,
		Address:   sess.Address,
		RiskScore: score,
		Timestamp: time.Now().UTC(),
		Metadata: map[string]string{
			"location":     sess.Location,
			"requires_mfa": strconv.FormatBool(requiresMFA),
		},
	})
	m.logger.Info("login succeeded",
		slog.String("session_id", sess.ID),
		slog.Int("risk_score", score),
		slog.Bool("requires_mfa", requiresMFA))

	return LoginResult{
		Success:     true,
		Identity:    verified.Identity,
		SessionID:   sess.ID,
		Token:       verified.Token,
		RequiresMFA: requiresMFA,
		RiskScore:   score,
	}
}

// ValidateSession checks a session id, bumping its activity when
// valid. A session that timed out during the check is reported with
// reason session_timeout and a logout event is emitted for it.
func (m *Manager) ValidateSession(ctx context.Context, id string) session.ValidationResult {
	result := m.sessions.Validate(ctx, id)
	if !result.Valid && result.Reason == models.ValidationSessionTimeout {
		if sess, ok := m.sessions.Get(id); ok {
			m.emitLogout(ctx, sess, models.TerminationTimeout)
		}
	}
	return result
}

// TerminateSession marks the session inactive with the given reason
// and emits a logout event. Idempotent; the returned session is nil
// for an unknown id, and performed reports whether this call made the
// transition.
func (m *Manager) TerminateSession(ctx context.Context, id string, reason models.TerminationReason) (*models.SecuritySession, bool) {
	sess, performed := m.sessions.Terminate(ctx, id, reason)
	if performed {
		m.emitLogout(ctx, *sess, reason)
	}
	return sess, performed
}

// VerifyMFA validates the second-factor code for the session's
// identity and clears the session's pending flag.
func (m *Manager) VerifyMFA(ctx context.Context, sessionID, code string) (*models.SecuritySession, error) {
	sess, ok := m.sessions.Get(sessionID)
	if !ok || !sess.Active {
		return nil, models.ErrSessionNotFound
	}
	if !sess.MFAPending {
		return nil, models.ErrMFANotPending
	}
	if m.second == nil {
		return nil, models.ErrMFANotEnrolled
	}

	if err := m.second.Validate(ctx, sess.Identity, code); err != nil {
		m.logger.Warn("second factor rejected",
			slog.String("session_id", sessionID),
			slog.Any("error", err))
		return nil, err
	}

	updated, ok := m.sessions.ClearMFAPending(ctx, sessionID)
	if !ok {
		// Session was terminated between Get and the clear.
		return nil, models.ErrSessionNotFound
	}
	m.logger.Info("second factor verified", slog.String("session_id", sessionID))
	return updated, nil
}

// ActiveSessions returns the identity's active sessions, oldest login
// first.
func (m *Manager) ActiveSessions(identity string) []models.SecuritySession {
	return m.sessions.ActiveForIdentity(identity)
}

// SecurityStats summarizes the current security posture.
func (m *Manager) SecurityStats() Stats {
	return Stats{
		ActiveSessions:   m.sessions.ActiveCount(),
		AttemptsLast24h:  m.ledger.CountSince(time.Now().Add(-attemptWindow)),
		BlockedAddresses: m.lockout.BlockedCount(),
		Incidents:        m.incidents.Load(),
	}
}

// RecentSecurityEvents returns the last 50 login attempts of the past
// 24 hours, newest first.
func (m *Manager) RecentSecurityEvents() []models.LoginAttempt {
	return m.ledger.Recent(recentEventsLimit, time.Now().Add(-attemptWindow))
}

// UpdateConfig merges a partial config over the active one. The merged
// config is validated before it replaces the current value.
func (m *Manager) UpdateConfig(patch config.SecurityPatch) (config.SecurityConfig, error) {
	applied, err := m.cfg.Apply(patch)
	if err != nil {
		return applied, err
	}
	m.logger.Info("security config updated",
		slog.Int("max_login_attempts", applied.MaxLoginAttempts),
		slog.Duration("lockout_duration", applied.LockoutDuration),
		slog.Duration("session_timeout", applied.SessionTimeout),
		slog.Int("max_concurrent_sessions", applied.MaxConcurrentSessions),
		slog.Bool("require_mfa", applied.RequireMFA))
	return applied, nil
}

// NotifyTerminated emits logout events for sessions terminated by a
// background sweep.
func (m *Manager) NotifyTerminated(ctx context.Context, sessions []models.SecuritySession) {
	for _, sess := range sessions {
		reason := models.TerminationExpiredCleanup
		if sess.TerminationReason != nil {
			reason = *sess.TerminationReason
		}
		m.emitLogout(ctx, sess, reason)
	}
}

func (m *Manager) emit(ctx context.Context, event models.SecurityEvent) {
	for _, sink := range m.sinks {
		sink.Emit(ctx, event)
	}
}

func (m *Manager) emitLogout(ctx context.Context, sess models.SecuritySession, reason models.TerminationReason) {
	end := time.Now()
	if sess.TerminatedAt != nil {
		end = *sess.TerminatedAt
	}
	m.emit(ctx, models.SecurityEvent{
		ID:        uuid.New().String(),
		Type:      models.EventLogout,
		Identity:  sess.Identity,
		SessionID: sess.ID,
		Address:   sess.Address,
		Timestamp: time.Now().UTC(),
		Metadata: map[string]string{
			"reason":   string(reason),
			"duration": end.Sub(sess.LoginTime).String(),
		},
	})
}

func (m *Manager) emitIncident(ctx context.Context, principal, address string, score int, metadata map[string]string) {
	m.incidents.Add(1)
	m.emit(ctx, models.SecurityEvent{
		ID:        uuid.New().String(),
		Type:      models.EventSecurityIncident,
		Identity:  principal,
		Address:   address,
		RiskScore: score,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	})
}

// categorizeProviderError maps a provider failure onto the closed
// failure taxonomy. Context cancellation and unknown errors both
// become auth_error: the caller gets no retry hint.
func categorizeProviderError(err error) models.FailureReason {
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		return models.FailureInvalidCredentials
	case errors.Is(err, identity.ErrEmailUnconfirmed):
		return models.FailureEmailUnconfirmed
	case errors.Is(err, identity.ErrRateLimited):
		return models.FailureRateLimited
	default:
		return models.FailureAuthError
	}
}
