// Package service is the front-end contract over the override engine: it
// loads and saves the snapshot, installs it at startup and reports on it.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"idmask/internal/identity/interception"
	"idmask/internal/identity/models"
	"idmask/internal/overrides/metrics"
	"idmask/internal/overrides/ports"
	dErrors "idmask/pkg/domain-errors"
	"idmask/pkg/platform/audit"
)

// Type aliases for shared interfaces.
type (
	Store          = ports.SnapshotStore
	Fetcher        = ports.ExampleFetcher
	Engine         = ports.Engine
	AuditPublisher = ports.AuditPublisher
)

// Status is the verification state shown to the front-end. RestartRequired is
// set when the stored snapshot differs from the one installed at startup.
type Status struct {
	Report          models.VerificationReport
	RestartRequired bool
}

type Service struct {
	store          Store
	engine         Engine
	fetcher        Fetcher
	auditPublisher AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store Store, engine Engine, fetcher Fetcher, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("snapshot store is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("override engine is required")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("example fetcher is required")
	}
	svc := &Service{
		store:   store,
		engine:  engine,
		fetcher: fetcher,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.New(slog.DiscardHandler)
	}
	return svc, nil
}

// Init loads the stored snapshot and installs it. Run it once at startup,
// before anything reads identity surfaces.
func (s *Service) Init(ctx context.Context) (interception.InstallResult, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return interception.InstallResult{}, err
	}
	result, err := s.engine.Install(ctx, snap)
	if err != nil {
		return result, dErrors.Wrap(err, dErrors.CodeConflict, "overrides already installed")
	}
	return result, nil
}

// Snapshot returns the stored snapshot.
func (s *Service) Snapshot(ctx context.Context) (models.Snapshot, error) {
	return s.load(ctx)
}

// SetAttribute updates one attribute and persists the new snapshot
// immediately. Unknown keys are rejected.
func (s *Service) SetAttribute(ctx context.Context, key, value string) (models.Snapshot, error) {
	k, err := models.ParseAttributeKey(key)
	if err != nil {
		return models.Snapshot{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, fmt.Sprintf("unknown attribute %q", key))
	}
	current, err := s.load(ctx)
	if err != nil {
		return models.Snapshot{}, err
	}
	next, err := current.With(k, value)
	if err != nil {
		return models.Snapshot{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid attribute")
	}
	if err := s.save(ctx, next, "attribute"); err != nil {
		return models.Snapshot{}, err
	}
	audit.Record(ctx, s.logger, s.auditPublisher, audit.EventAttributeUpdated,
		"key", k.String(),
		"cleared", value == "",
	)
	return next, nil
}

// Replace persists snap as the whole configuration.
func (s *Service) Replace(ctx context.Context, snap models.Snapshot) error {
	if err := s.save(ctx, snap, "replace"); err != nil {
		return err
	}
	audit.Record(ctx, s.logger, s.auditPublisher, audit.EventSnapshotSaved,
		"overrides", len(snap.Overrides()),
	)
	return nil
}

// Regenerate replaces the configuration with a fetched example. A failed
// fetch leaves the stored snapshot untouched and is not retried.
func (s *Service) Regenerate(ctx context.Context) (models.Snapshot, error) {
	snap, err := s.fetcher.FetchRandomExample(ctx)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncrementRegenerations(false)
		}
		s.logger.WarnContext(ctx, "example fetch failed", "error", err)
		return models.Snapshot{}, dErrors.Wrap(err, dErrors.CodeBadGateway, err.Error())
	}
	if err := s.save(ctx, snap, "regenerate"); err != nil {
		return models.Snapshot{}, err
	}
	if s.metrics != nil {
		s.metrics.IncrementRegenerations(true)
	}
	audit.Record(ctx, s.logger, s.auditPublisher, audit.EventSnapshotRegenerated,
		"overrides", len(snap.Overrides()),
	)
	return snap, nil
}

// Status verifies the snapshot installed at startup.
func (s *Service) Status(ctx context.Context) (Status, error) {
	stored, err := s.load(ctx)
	if err != nil {
		return Status{}, err
	}
	installed, ok := s.engine.InstalledSnapshot()
	return Status{
		Report:          s.engine.VerifyInstalled(ctx),
		RestartRequired: !ok || installed != stored,
	}, nil
}

// VerifyStored checks the stored snapshot against the live surfaces.
func (s *Service) VerifyStored(ctx context.Context) (models.VerificationReport, error) {
	stored, err := s.load(ctx)
	if err != nil {
		return models.VerificationReport{}, err
	}
	return s.engine.Verify(ctx, stored), nil
}

// Current returns what every identity surface yields now.
func (s *Service) Current(ctx context.Context) []models.Observation {
	return s.engine.Observe(ctx)
}

func (s *Service) load(ctx context.Context) (models.Snapshot, error) {
	snap, recovered, err := s.store.Load(ctx)
	if err != nil {
		return models.Snapshot{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load configuration")
	}
	if recovered {
		if s.metrics != nil {
			s.metrics.IncrementRecoveries()
		}
		audit.Record(ctx, s.logger, s.auditPublisher, audit.EventSnapshotRecovered,
			"reason", "stored snapshot failed to parse",
		)
	}
	return snap, nil
}

func (s *Service) save(ctx context.Context, snap models.Snapshot, origin string) error {
	if err := s.store.Save(ctx, snap); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to save configuration")
	}
	if s.metrics != nil {
		s.metrics.IncrementSaves(origin)
	}
	return nil
}
