package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/strandpine/warden/internal/config"
	"github.com/strandpine/warden/internal/models"
)

// Context carries the request-derived attributes recorded on a new
// session.
type Context struct {
	Address         string
	ClientSignature string
	DeviceSignature string
	Location        string
}

// ValidationResult reports the outcome of validating a session id.
// Session is populated only when Valid.
type ValidationResult struct {
	Valid   bool
	Session *models.SecuritySession
	Reason  models.ValidationReason
}

// ConfigSource supplies the active security config.
type ConfigSource interface {
	Current() config.SecurityConfig
}

// Persister receives the full session collection after every mutation.
type Persister interface {
	SaveSessions(ctx context.Context, sessions []models.SecuritySession) error
}

// Manager owns the session store. Sessions transition from active to
// terminated exactly once and are never deleted, so terminated records
// stay queryable for audit.
type Manager struct {
	mu        sync.Mutex
	sessions  map[string]*models.SecuritySession
	cfg       ConfigSource
	persister Persister
	logger    *slog.Logger
}

func NewManager(cfg ConfigSource, persister Persister, logger *slog.Logger) *Manager {
	return &Manager{
		sessions:  make(map[string]*models.SecuritySession),
		cfg:       cfg,
		persister: persister,
		logger:    logger,
	}
}

// Create inserts a new active session for the identity. When the
// identity is at its concurrency cap the least recently active session
// is terminated first (ties broken by the lexicographically smaller
// id), synchronously, in the same critical section as the insert.
// Returns the created session and any sessions evicted to make room.
func (m *Manager) Create(ctx context.Context, identity string, reqCtx Context, riskScore int, mfaPending bool) (*models.SecuritySession, []models.SecuritySession, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, nil, fmt.Errorf("generate session id: %w", err)
	}

	cfg := m.cfg.Current()
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	var evicted []models.SecuritySession
	for m.activeCountForIdentityLocked(identity) >= cfg.MaxConcurrentSessions {
		victim := m.evictionCandidateLocked(identity)
		if victim == nil {
			break
		}
		m.terminateLocked(victim, models.TerminationConcurrentLimit, now)
		evicted = append(evicted, *victim)
	}

	created := &models.SecuritySession{
		ID:              id,
		Identity:        identity,
		DeviceSignature: reqCtx.DeviceSignature,
		Address:         reqCtx.Address,
		ClientSignature: reqCtx.ClientSignature,
		Location:        reqCtx.Location,
		LoginTime:       now,
		LastActivity:    now,
		Active:          true,
		RiskScore:       riskScore,
		MFAPending:      mfaPending,
	}
	m.sessions[id] = created

	m.persistLocked(ctx)

	out := *created
	return &out, evicted, nil
}

// Validate checks a session id. A timed-out session is terminated as a
// side effect; a valid one gets its last activity bumped.
func (m *Manager) Validate(ctx context.Context, id string) ValidationResult {
	now := time.Now().UTC()
	cfg := m.cfg.Current()

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return ValidationResult{Valid: false, Reason: models.ValidationSessionNotFound}
	}
	if !sess.Active {
		return ValidationResult{Valid: false, Reason: models.ValidationSessionInactive}
	}
	if sess.TimedOut(cfg.SessionTimeout, now) {
		m.terminateLocked(sess, models.TerminationTimeout, now)
		m.persistLocked(ctx)
		return ValidationResult{Valid: false, Reason: models.ValidationSessionTimeout}
	}

	sess.LastActivity = now
	m.persistLocked(ctx)

	out := *sess
	return ValidationResult{Valid: true, Session: &out}
}

// Terminate marks the session inactive with the given reason.
// Idempotent: terminating an already terminated or unknown session
// changes nothing. The bool reports whether this call performed the
// transition.
func (m *Manager) Terminate(ctx context.Context, id string, reason models.TerminationReason) (*models.SecuritySession, bool) {
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	if !sess.Active {
		out := *sess
		return &out, false
	}

	m.terminateLocked(sess, reason, now)
	m.persistLocked(ctx)

	out := *sess
	return &out, true
}

// ClearMFAPending marks the session's second factor as verified.
func (m *Manager) ClearMFAPending(ctx context.Context, id string) (*models.SecuritySession, bool) {
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok || !sess.Active || !sess.MFAPending {
		return nil, false
	}

	sess.MFAPending = false
	sess.MFAVerifiedAt = &now
	m.persistLocked(ctx)

	out := *sess
	return &out, true
}

// Get returns a copy of the session record, active or not.
func (m *Manager) Get(id string) (models.SecuritySession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return models.SecuritySession{}, false
	}
	return *sess, true
}

// ActiveForIdentity returns copies of the identity's active sessions,
// ordered by login time then id.
func (m *Manager) ActiveForIdentity(identity string) []models.SecuritySession {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.SecuritySession
	for _, sess := range m.sessions {
		if sess.Active && sess.Identity == identity {
			out = append(out, *sess)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LoginTime.Equal(out[j].LoginTime) {
			return out[i].LoginTime.Before(out[j].LoginTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// HasActiveAddress reports whether the address appears in any active
// session for the identity.
func (m *Manager) HasActiveAddress(identity, address string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sess := range m.sessions {
		if sess.Active && sess.Identity == identity && sess.Address == address {
			return true
		}
	}
	return false
}

// ActiveCount returns the number of active sessions across all
// identities.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, sess := range m.sessions {
		if sess.Active {
			count++
		}
	}
	return count
}

// SweepExpired terminates active sessions whose last activity predates
// the timeout horizon, with reason expired_cleanup. Returns copies of
// the sessions terminated by this sweep. Idempotent.
func (m *Manager) SweepExpired(ctx context.Context, now time.Time) []models.SecuritySession {
	cfg := m.cfg.Current()

	m.mu.Lock()
	defer m.mu.Unlock()

	var terminated []models.SecuritySession
	for _, sess := range m.sessions {
		if sess.Active && sess.TimedOut(cfg.SessionTimeout, now) {
			m.terminateLocked(sess, models.TerminationExpiredCleanup, now)
			terminated = append(terminated, *sess)
		}
	}
	if len(terminated) > 0 {
		m.persistLocked(ctx)
	}
	return terminated
}

// Restore replaces the session store from a persisted snapshot.
func (m *Manager) Restore(sessions []models.SecuritySession) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions = make(map[string]*models.SecuritySession, len(sessions))
	for i := range sessions {
		sess := sessions[i]
		m.sessions[sess.ID] = &sess
	}
}

// All returns copies of every session record, active and terminated.
func (m *Manager) All() []models.SecuritySession {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.SecuritySession, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, *sess)
	}
	return out
}

// activeCountForIdentityLocked counts the identity's active sessions.
// Callers must hold mu.
func (m *Manager) activeCountForIdentityLocked(identity string) int {
	count := 0
	for _, sess := range m.sessions {
		if sess.Active && sess.Identity == identity {
			count++
		}
	}
	return count
}

// evictionCandidateLocked selects the identity's active session with
// the smallest last activity, breaking timestamp ties by the smaller
// id. Callers must hold mu.
func (m *Manager) evictionCandidateLocked(identity string) *models.SecuritySession {
	var candidate *models.SecuritySession
	for _, sess := range m.sessions {
		if !sess.Active || sess.Identity != identity {
			continue
		}
		if candidate == nil {
			candidate = sess
			continue
		}
		if sess.LastActivity.Before(candidate.LastActivity) {
			candidate = sess
			continue
		}
		if sess.LastActivity.Equal(candidate.LastActivity) && sess.ID < candidate.ID {
			candidate = sess
		}
	}
	return candidate
}

// terminateLocked flips the session to terminated. Callers must hold
// mu and must not pass an already terminated session.
func (m *Manager) terminateLocked(sess *models.SecuritySession, reason models.TerminationReason, now time.Time) {
	sess.Active = false
	sess.TerminationReason = &reason
	sess.TerminatedAt = &now

	m.logger.Info("session terminated",
		slog.String("session_id", sess.ID),
		slog.String("reason", string(reason)),
		slog.Duration("duration", sess.Duration(now)))
}

func (m *Manager) persistLocked(ctx context.Context) {
	if m.persister == nil {
		return
	}
	snapshot := make([]models.SecuritySession, 0, len(m.sessions))
	for _, sess := range m.sessions {
		snapshot = append(snapshot, *sess)
	}
	if err := m.persister.SaveSessions(ctx, snapshot); err != nil {
		m.logger.Error("failed to persist sessions", slog.Any("error", err))
	}
}

// newSessionID returns 32 bytes of crypto/rand entropy, hex encoded.
func newSessionID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
