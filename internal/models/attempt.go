package models

import "time"

// FailureReason is the closed taxonomy for why a login attempt failed.
type FailureReason string

const (
	FailureIPBlocked          FailureReason = "IP_BLOCKED"
	FailureInvalidCredentials FailureReason = "invalid_credentials"
	FailureEmailUnconfirmed   FailureReason = "email_unconfirmed"
	FailureRateLimited        FailureReason = "rate_limited"
	FailureAuthError          FailureReason = "auth_error"
)

// LoginAttempt is an immutable record of a single login attempt.
// Attempts are never mutated after recording; the ledger evicts the
// oldest entries once its retention cap is exceeded.
type LoginAttempt struct {
	ID              string         `json:"id"`
	Identity        string         `json:"identity"`
	Address         string         `json:"address"`
	ClientSignature string         `json:"client_signature"`
	DeviceSignature string         `json:"device_signature"`
	Timestamp       time.Time      `json:"timestamp"`
	Success         bool           `json:"success"`
	FailureReason   *FailureReason `json:"failure_reason,omitempty"`
	RiskFactors     []string       `json:"risk_factors,omitempty"`
	Blocked         bool           `json:"blocked"`
}

// Failed reports whether the attempt failed for the given reason.
func (a *LoginAttempt) Failed(reason FailureReason) bool {
	return !a.Success && a.FailureReason != nil && *a.FailureReason == reason
}

// FailureReasonPtr is a convenience for building attempt records.
func FailureReasonPtr(r FailureReason) *FailureReason {
	return &r
}
