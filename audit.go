package authgate

import (
	"context"
	"time"

	internalaudit "github.com/authgate/authgate/internal/audit"
)

// Audit event types emitted by the engine.
const (
	EventRegisterSuccess   = "register_success"
	EventRegisterConflict  = "register_conflict"
	EventLoginSuccess      = "login_success"
	EventLoginFailure      = "login_failure"
	EventLoginRateLimited  = "login_rate_limited"
	EventRefreshSuccess    = "refresh_success"
	EventRefreshFailure    = "refresh_failure"
	EventRefreshReuse      = "refresh_reuse_detected"
	EventLogout            = "logout"
	EventLogoutAll         = "logout_all"
)

type auditDispatcher struct {
	inner *internalaudit.Dispatcher
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	return &auditDispatcher{
		inner: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Enabled,
			BufferSize: cfg.BufferSize,
			DropIfFull: cfg.DropIfFull,
		}, sink),
	}
}

func (d *auditDispatcher) emit(ctx context.Context, eventType string, success bool, identityID string, cause error, metadata map[string]string) {
	if d == nil || d.inner == nil {
		return
	}
	event := internalaudit.Event{
		Timestamp:  time.Now(),
		EventType:  eventType,
		IdentityID: identityID,
		IP:         clientIPFromContext(ctx),
		Success:    success,
		Metadata:   metadata,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	d.inner.Emit(ctx, event)
}

func (d *auditDispatcher) close() {
	if d != nil {
		d.inner.Close()
	}
}

func (d *auditDispatcher) dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.inner.Dropped()
}
