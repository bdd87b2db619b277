package models

import "time"

// EventType classifies audit events emitted by the security manager.
type EventType string

const (
	EventLogin            EventType = "login"
	EventLogout           EventType = "logout"
	EventSecurityIncident EventType = "security_incident"
)

// SecurityEvent is the structured payload handed to audit sinks.
// Sinks are fire-and-forget; a sink failure never fails the operation
// that emitted the event.
type SecurityEvent struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Identity  string            `json:"identity,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	Address   string            `json:"address,omitempty"`
	RiskScore int               `json:"risk_score,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
