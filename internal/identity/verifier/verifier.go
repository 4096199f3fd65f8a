// Package verifier re-reads configured overrides through the surfaces they
// were installed on and reports expected against observed values.
package verifier

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"idmask/internal/identity/compat"
	"idmask/internal/identity/metrics"
	"idmask/internal/identity/models"
	"idmask/internal/identity/surface"
)

// Observed values recorded for surfaces that cannot be read. They never equal
// a configured override.
const (
	UnreadableDenied      = "<unreadable: denied capability>"
	UnreadableUnreachable = "<unreadable: unreachable on platform>"
	UnreadableFailed      = "<unreadable: read failed>"
)

// Unreadable returns the sentinel for a legibility state, or "" for Reachable.
func Unreadable(l compat.Legibility) string {
	switch l {
	case compat.Reachable:
		return ""
	case compat.DeniedCapability:
		return UnreadableDenied
	default:
		return UnreadableUnreachable
	}
}

// Verifier is read-only and safe for concurrent use.
type Verifier struct {
	host    *surface.Host
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Verifier)

func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		v.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Verifier) {
		v.metrics = m
	}
}

func New(host *surface.Host, opts ...Option) (*Verifier, error) {
	if host == nil {
		return nil, fmt.Errorf("surface host is required")
	}
	v := &Verifier{
		host:   host,
		tracer: otel.Tracer("idmask/verifier"),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = slog.New(slog.DiscardHandler)
	}
	return v, nil
}

// Verify reports one entry per non-empty override in snap, in declared
// attribute order.
func (v *Verifier) Verify(ctx context.Context, snap models.Snapshot, surfaces compat.Surfaces) models.VerificationReport {
	ctx, span := v.tracer.Start(ctx, "verifier.Verify")
	defer span.End()

	overrides := snap.Overrides()
	report := models.VerificationReport{Entries: make([]models.VerificationEntry, 0, len(overrides))}
	for _, o := range overrides {
		entry := models.VerificationEntry{
			Key:      o.Key,
			Name:     o.Key.Label(),
			Expected: o.Value,
			Observed: v.read(ctx, surfaces.Lookup(o.Key)),
		}
		report.Entries = append(report.Entries, entry)
		if v.metrics != nil {
			v.metrics.ObserveVerification(entry.Passed())
		}
	}

	span.SetAttributes(
		attribute.Int("entries", len(report.Entries)),
		attribute.Int("passed", report.PassedCount()),
	)
	return report
}

// Observe reads every attribute's current value, configured or not. Illegible
// surfaces carry their unreadable sentinel.
func (v *Verifier) Observe(ctx context.Context, surfaces compat.Surfaces) []models.Observation {
	keys := models.AllKeys()
	out := make([]models.Observation, 0, len(keys))
	for _, k := range keys {
		desc := surfaces.Lookup(k)
		out = append(out, models.Observation{
			Key:        k,
			Name:       k.Label(),
			Value:      v.read(ctx, desc),
			Legibility: desc.Legibility.String(),
		})
	}
	return out
}

func (v *Verifier) read(ctx context.Context, desc compat.SurfaceDescriptor) string {
	if !desc.Reachable() {
		return Unreadable(desc.Legibility)
	}
	value, err := v.host.Read(desc.Primary)
	if err != nil {
		v.logger.WarnContext(ctx, "surface read failed",
			"key", desc.Key.String(),
			"surface", desc.Primary.String(),
			"error", err,
		)
		return UnreadableFailed
	}
	return value
}
