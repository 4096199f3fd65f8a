package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventCategory classifies audit events by their primary purpose so sinks can
// route and retain them differently.
type EventCategory string

const (
	// CategoryConfiguration covers changes to the persisted override snapshot.
	CategoryConfiguration EventCategory = "configuration"

	// CategorySecurity covers surfaces the platform refused to rebind and
	// rejected administrative access.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine lifecycle activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        uuid.UUID         `json:"id"`
	Category  EventCategory     `json:"category"`
	Timestamp time.Time         `json:"timestamp"`
	Action    string            `json:"action"`
	Subject   string            `json:"subject,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	CommandID string            `json:"command_id,omitempty"`
	Actor     string            `json:"actor,omitempty"`
	Client    string            `json:"client,omitempty"`
	Severity  Severity          `json:"severity"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

type AuditEvent string

const (
	// Engine events
	EventOverridesInstalled AuditEvent = "overrides_installed"
	EventBindingRejected    AuditEvent = "binding_rejected"
	EventInstallRepeated    AuditEvent = "install_repeated"

	// Snapshot events
	EventSnapshotSaved       AuditEvent = "snapshot_saved"
	EventSnapshotRegenerated AuditEvent = "snapshot_regenerated"
	EventSnapshotRecovered   AuditEvent = "snapshot_recovered"
	EventAttributeUpdated    AuditEvent = "attribute_updated"

	// Collaborator events
	EventCommandHandled AuditEvent = "command_handled"
	EventScriptExported AuditEvent = "script_exported"
	EventAdminRejected  AuditEvent = "admin_rejected"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventSnapshotSaved:       CategoryConfiguration,
	EventSnapshotRegenerated: CategoryConfiguration,
	EventAttributeUpdated:    CategoryConfiguration,
	EventSnapshotRecovered:   CategoryConfiguration,

	EventBindingRejected: CategorySecurity,
	EventInstallRepeated: CategorySecurity,
	EventAdminRejected:   CategorySecurity,

	EventOverridesInstalled: CategoryOperations,
	EventCommandHandled:     CategoryOperations,
	EventScriptExported:     CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Severity levels, used by sinks for alert routing.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Severity returns the default severity for this audit event.
func (e AuditEvent) Severity() Severity {
	switch e {
	case EventBindingRejected, EventSnapshotRecovered, EventAdminRejected:
		return SeverityWarning
	case EventInstallRepeated:
		return SeverityCritical
	default:
		return SeverityInfo
	}
}

// Publisher receives audit events. Emit must not block the caller for long;
// implementations buffer or drop rather than fail the domain operation.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}
