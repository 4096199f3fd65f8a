package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"idmask/pkg/attrs"
	"idmask/pkg/requestcontext"
)

// Record logs an audit event and forwards it to the publisher when one is
// configured. attrList is a slog-style key/value list; "key", "surface" and
// "path" become the event subject, "reason" and "error" its reason.
func Record(ctx context.Context, logger *slog.Logger, publisher Publisher, event AuditEvent, attrList ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attrList = append(attrList, "request_id", requestID)
	}

	if logger != nil {
		args := append(attrList, "event", string(event), "log_type", "audit")
		logger.InfoContext(ctx, string(event), args...)
	}

	if publisher == nil {
		return
	}
	e := Event{
		ID:        uuid.New(),
		Category:  event.Category(),
		Timestamp: requestcontext.Now(ctx),
		Action:    string(event),
		Subject:   first(attrList, "key", "surface", "path"),
		Reason:    first(attrList, "reason", "error"),
		RequestID: requestID,
		Actor:     requestcontext.Actor(ctx),
		Client:    requestcontext.ClientDevice(ctx),
		Severity:  event.Severity(),
		Attrs:     attrs.ToStringMap(attrList),
	}
	if id := requestcontext.CommandID(ctx); id != uuid.Nil {
		e.CommandID = id.String()
	}
	if err := publisher.Emit(ctx, e); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}

func first(attrList []any, keys ...string) string {
	for _, key := range keys {
		if val := attrs.ExtractString(attrList, key); val != "" {
			return val
		}
	}
	return ""
}
