// Package engine ties the attribute model, the compatibility table, the
// interceptor and the verifier to one surface host.
//
// Callers of the host process read identity through Engine.Read (or the host
// accessors directly) rather than through native platform accessors; that is
// what lets an installed override be observed.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"idmask/internal/identity/compat"
	"idmask/internal/identity/interception"
	"idmask/internal/identity/metrics"
	"idmask/internal/identity/models"
	"idmask/internal/identity/surface"
	"idmask/internal/identity/verifier"
	"idmask/pkg/platform/audit"
)

type Engine struct {
	host        *surface.Host
	table       *compat.Table
	interceptor *interception.Interceptor
	verifier    *verifier.Verifier
	logger      *slog.Logger
}

type options struct {
	logger    *slog.Logger
	publisher audit.Publisher
	metrics   *metrics.Metrics
}

type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(o *options) {
		o.publisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func New(host *surface.Host, table *compat.Table, opts ...Option) (*Engine, error) {
	if host == nil {
		return nil, fmt.Errorf("surface host is required")
	}
	if table == nil {
		return nil, fmt.Errorf("compatibility table is required")
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	interceptorOpts := []interception.Option{
		interception.WithLogger(o.logger),
		interception.WithAuditPublisher(o.publisher),
	}
	verifierOpts := []verifier.Option{verifier.WithLogger(o.logger)}
	if o.metrics != nil {
		interceptorOpts = append(interceptorOpts, interception.WithMetrics(o.metrics))
		verifierOpts = append(verifierOpts, verifier.WithMetrics(o.metrics))
	}

	in, err := interception.New(host, interceptorOpts...)
	if err != nil {
		return nil, err
	}
	v, err := verifier.New(host, verifierOpts...)
	if err != nil {
		return nil, err
	}
	return &Engine{
		host:        host,
		table:       table,
		interceptor: in,
		verifier:    v,
		logger:      o.logger,
	}, nil
}

// Resolve resolves surfaces for the host's platform version and grants.
func (e *Engine) Resolve() compat.Surfaces {
	return e.table.Resolve(e.host.PlatformVersion(), e.host.Granted())
}

// Install resolves surfaces and installs snap. See interception.Interceptor.
func (e *Engine) Install(ctx context.Context, snap models.Snapshot) (interception.InstallResult, error) {
	result, err := e.interceptor.Install(ctx, snap, e.Resolve())
	if err != nil {
		return result, err
	}
	for _, r := range result.Rejected {
		e.logger.WarnContext(ctx, "binding rejected", "key", r.Key.String(), "surface", r.Target.String(), "error", r.Err)
	}
	e.logger.InfoContext(ctx, "overrides installed",
		"bound", len(result.Bound),
		"skipped", len(result.Skipped),
		"rejected", len(result.Rejected),
	)
	return result, nil
}

// Verify checks snap against freshly resolved surfaces.
func (e *Engine) Verify(ctx context.Context, snap models.Snapshot) models.VerificationReport {
	return e.verifier.Verify(ctx, snap, e.Resolve())
}

// VerifyInstalled checks the snapshot active at install against the surfaces
// it was installed on. Before install the report is empty.
func (e *Engine) VerifyInstalled(ctx context.Context) models.VerificationReport {
	snap, surfaces, ok := e.interceptor.Installed()
	if !ok {
		return models.VerificationReport{}
	}
	return e.verifier.Verify(ctx, snap, surfaces)
}

// Observe returns what every surface currently yields.
func (e *Engine) Observe(ctx context.Context) []models.Observation {
	return e.verifier.Observe(ctx, e.Resolve())
}

// Read returns the value the host process sees for one attribute.
func (e *Engine) Read(key models.AttributeKey) (string, compat.Legibility, error) {
	if !key.IsValid() {
		return "", 0, models.ErrUnknownAttribute
	}
	desc := e.Resolve().Lookup(key)
	if !desc.Reachable() {
		return "", desc.Legibility, nil
	}
	v, err := e.host.Read(desc.Primary)
	return v, desc.Legibility, err
}

// State reports whether overrides were installed.
func (e *Engine) State() interception.State {
	return e.interceptor.State()
}

// InstalledSnapshot returns the snapshot active at install.
func (e *Engine) InstalledSnapshot() (models.Snapshot, bool) {
	snap, _, ok := e.interceptor.Installed()
	return snap, ok
}

func (e *Engine) Host() *surface.Host {
	return e.host
}
