package models

import "time"

// TerminationReason is the closed taxonomy for why a session left the
// active state. Termination is terminal; a session never becomes
// active again.
type TerminationReason string

const (
	TerminationLogout          TerminationReason = "logout"
	TerminationTimeout         TerminationReason = "timeout"
	TerminationConcurrentLimit TerminationReason = "concurrent_limit_exceeded"
	TerminationExpiredCleanup  TerminationReason = "expired_cleanup"
)

// ValidationReason is returned when session validation fails.
type ValidationReason string

const (
	ValidationSessionNotFound ValidationReason = "session_not_found"
	ValidationSessionInactive ValidationReason = "session_inactive"
	ValidationSessionTimeout  ValidationReason = "session_timeout"
)

// SecuritySession is the server-side record of an authenticated
// interaction for one identity on one device. Sessions are marked
// inactive on termination but never deleted, so the record remains
// available for audit queries.
type SecuritySession struct {
	ID                string             `json:"id"`
	Identity          string             `json:"identity"`
	DeviceSignature   string             `json:"device_signature"`
	Address           string             `json:"address"`
	ClientSignature   string             `json:"client_signature"`
	Location          string             `json:"location,omitempty"`
	LoginTime         time.Time          `json:"login_time"`
	LastActivity      time.Time          `json:"last_activity"`
	Active            bool               `json:"active"`
	RiskScore         int                `json:"risk_score"`
	MFAPending        bool               `json:"mfa_pending"`
	MFAVerifiedAt     *time.Time         `json:"mfa_verified_at,omitempty"`
	TerminationReason *TerminationReason `json:"termination_reason,omitempty"`
	TerminatedAt      *time.Time         `json:"terminated_at,omitempty"`
}

// TimedOut reports whether the session's last activity predates the
// timeout horizon at the supplied instant.
func (s *SecuritySession) TimedOut(timeout time.Duration, now time.Time) bool {
	return now.Sub(s.LastActivity) > timeout
}

// Duration returns how long the session has been alive at the supplied
// instant, measured from login time.
func (s *SecuritySession) Duration(now time.Time) time.Duration {
	return now.Sub(s.LoginTime)
}
