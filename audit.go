package tanlink

import (
	"context"
	"time"

	"github.com/tanlink/tanlink/internal/audit"
)

// AuditEvent is re-exported so callers can consume events without
// importing the internal package.
type AuditEvent = audit.Event

// AuditSink receives emitted audit events.
type AuditSink = audit.Sink

// NoOpAuditSink drops audit events.
type NoOpAuditSink = audit.NoOpSink

// NewChannelAuditSink returns a sink backed by a buffered channel,
// mainly for tests and embedding.
func NewChannelAuditSink(buffer int) *audit.ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONAuditSink returns a sink that writes one JSON object per line.
var NewJSONAuditSink = audit.NewJSONWriterSink

const (
	auditLoginSuccess   = "login.success"
	auditLoginFailure   = "login.failure"
	auditLoginLocked    = "login.locked"
	auditSessionRevoked = "session.revoked"
	auditCsrfRejected   = "csrf.rejected"
	auditLinkCreated    = "link.created"
	auditLinksPurged    = "links.purged"
	auditUserCreated    = "user.created"
)

func (e *Engine) emitAudit(ctx context.Context, eventType, identity string, success bool, cause error, metadata map[string]string) {
	if e.auditor == nil {
		return
	}
	event := audit.Event{
		ID:        audit.NewEventID(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Identity:  identity,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	e.auditor.Emit(ctx, event)
}
