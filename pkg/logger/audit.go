package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent is one line in the security audit trail.
type AuditEvent struct {
	EventType string
	Identity  string
	SessionID string
	Address   string
	Success   bool
	Reason    string
	RiskScore int
	Metadata  map[string]string
}

// AuditLogger writes audit lines through a structured logger, masking
// identities on the way out.
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

// baseAttrs renders the fields shared by every audit line plus the
// populated optional ones. Metadata is flattened into the line.
func baseAttrs(auditType string, event AuditEvent) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("audit_type", auditType),
		slog.String("event_type", event.EventType),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.Identity != "" {
		attrs = append(attrs, slog.String("identity", SanitizedIdentity(event.Identity)))
	}
	if event.SessionID != "" {
		attrs = append(attrs, slog.String("session_id", event.SessionID))
	}
	if event.Address != "" {
		attrs = append(attrs, slog.String("address", event.Address))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	return attrs
}

func (al *AuditLogger) emit(level slog.Level, attrs []slog.Attr) {
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}

// LogAuthAttempt records a login attempt. Failures log at warn.
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	attrs := append(baseAttrs("auth", event),
		slog.Bool("success", event.Success),
		slog.Int("risk_score", event.RiskScore),
	)
	if event.Reason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.Reason))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.emit(level, attrs)
}

// LogSessionEvent records session lifecycle transitions.
func (al *AuditLogger) LogSessionEvent(event AuditEvent) {
	attrs := baseAttrs("session", event)
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}
	al.emit(slog.LevelInfo, attrs)
}

// LogSecurityIncident records high-risk activity at warn.
func (al *AuditLogger) LogSecurityIncident(event AuditEvent) {
	attrs := append(baseAttrs("incident", event),
		slog.Int("risk_score", event.RiskScore),
	)
	al.emit(slog.LevelWarn, attrs)
}
