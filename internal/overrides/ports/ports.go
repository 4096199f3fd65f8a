// Package ports defines the collaborators the overrides service depends on.
package ports

import (
	"context"

	"idmask/internal/identity/interception"
	"idmask/internal/identity/models"
	"idmask/pkg/platform/audit"
)

// SnapshotStore persists the override snapshot under one fixed slot.
//
// Load never fails on corrupt data: implementations return the empty snapshot
// and recovered=true. An error means the backing store could not be reached.
type SnapshotStore interface {
	Load(ctx context.Context) (snap models.Snapshot, recovered bool, err error)
	Save(ctx context.Context, snap models.Snapshot) error
}

// ExampleFetcher supplies a randomised example snapshot.
type ExampleFetcher interface {
	FetchRandomExample(ctx context.Context) (models.Snapshot, error)
}

// Engine is the identity override engine as seen by the service.
type Engine interface {
	Install(ctx context.Context, snap models.Snapshot) (interception.InstallResult, error)
	Verify(ctx context.Context, snap models.Snapshot) models.VerificationReport
	VerifyInstalled(ctx context.Context) models.VerificationReport
	Observe(ctx context.Context) []models.Observation
	InstalledSnapshot() (models.Snapshot, bool)
}

// AuditPublisher receives audit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
