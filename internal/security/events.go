package security

import (
	"context"

	"github.com/strandpine/warden/internal/models"
	pkglogger "github.com/strandpine/warden/pkg/logger"
)

// EventSink receives security events from the manager. Sinks are
// fire-and-forget: they must not block the calling operation for long
// and their failures never fail it. Slow transports should dispatch
// asynchronously inside Emit.
type EventSink interface {
	Emit(ctx context.Context, event models.SecurityEvent)
}

// AuditSink writes security events through the structured audit
// logger: logins as auth attempts, logouts as session events,
// incidents at warning level.
type AuditSink struct {
	audit *pkglogger.AuditLogger
}

func NewAuditSink(audit *pkglogger.AuditLogger) *AuditSink {
	return &AuditSink{audit: audit}
}

func (s *AuditSink) Emit(_ context.Context, event models.SecurityEvent) {
	switch event.Type {
	case models.EventLogin:
		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType: string(event.Type),
			Identity:  event.Identity,
			SessionID: event.SessionID,
			Address:   event.Address,
			Success:   true,
			RiskScore: event.RiskScore,
			Metadata:  event.Metadata,
		})
	case models.EventLogout:
		metadata := make(map[string]string, len(event.Metadata))
		for k, v := range event.Metadata {
			if k != "reason" {
				metadata[k] = v
			}
		}
		s.audit.LogSessionEvent(pkglogger.AuditEvent{
			EventType: string(event.Type),
			Identity:  event.Identity,
			SessionID: event.SessionID,
			Reason:    event.Metadata["reason"],
			Metadata:  metadata,
		})
	case models.EventSecurityIncident:
		s.audit.LogSecurityIncident(pkglogger.AuditEvent{
			EventType: string(event.Type),
			Identity:  event.Identity,
			Address:   event.Address,
			RiskScore: event.RiskScore,
			Metadata:  event.Metadata,
		})
	}
}
