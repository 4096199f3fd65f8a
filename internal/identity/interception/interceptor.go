// Package interception installs override bindings on identity surfaces.
//
// Installation happens at most once per Interceptor. Each bind attempt is
// isolated: a surface the platform refuses to rebind is collected in the
// result and never stops the remaining bindings.
package interception

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"idmask/internal/identity/compat"
	"idmask/internal/identity/metrics"
	"idmask/internal/identity/models"
	"idmask/internal/identity/surface"
	"idmask/pkg/platform/audit"
	"idmask/pkg/platform/sentinel"
)

var (
	// ErrBindingRejected is wrapped by every BindingError.
	ErrBindingRejected = errors.New("binding rejected")
	// ErrDuplicateTarget is returned when two attributes resolve to the same
	// surface within one install.
	ErrDuplicateTarget = errors.New("surface already bound in this install")
	// ErrAlreadyInstalled is returned by every Install after the first.
	ErrAlreadyInstalled = fmt.Errorf("overrides already installed: %w", sentinel.ErrAlreadyUsed)
)

// BindingError records one refused bind attempt.
type BindingError struct {
	Key    models.AttributeKey
	Target surface.Target
	Err    error
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("bind %s to %s: %v", e.Key, e.Target, e.Err)
}

func (e *BindingError) Unwrap() []error {
	return []error{ErrBindingRejected, e.Err}
}

// Binding is one override installed on one surface.
type Binding struct {
	Key    models.AttributeKey
	Target surface.Target
}

// Skip is a configured override left unbound because its surface is not
// reachable.
type Skip struct {
	Key        models.AttributeKey
	Legibility compat.Legibility
}

// InstallResult lists what Install did, in declared attribute order.
type InstallResult struct {
	Bound    []Binding
	Skipped  []Skip
	Rejected []*BindingError
}

// Err joins every rejection, or returns nil.
func (r InstallResult) Err() error {
	if len(r.Rejected) == 0 {
		return nil
	}
	errs := make([]error, len(r.Rejected))
	for i, be := range r.Rejected {
		errs[i] = be
	}
	return errors.Join(errs...)
}

// State is the lifecycle of an Interceptor.
type State uint8

const (
	Uninstalled State = iota
	Installed
)

func (s State) String() string {
	if s == Installed {
		return "installed"
	}
	return "uninstalled"
}

type Interceptor struct {
	host *surface.Host

	mu       sync.Mutex
	state    State
	snapshot models.Snapshot
	surfaces compat.Surfaces

	logger    *slog.Logger
	publisher audit.Publisher
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(*Interceptor)

func WithLogger(logger *slog.Logger) Option {
	return func(i *Interceptor) {
		i.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(i *Interceptor) {
		i.publisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Interceptor) {
		i.metrics = m
	}
}

func New(host *surface.Host, opts ...Option) (*Interceptor, error) {
	if host == nil {
		return nil, fmt.Errorf("surface host is required")
	}
	i := &Interceptor{
		host:   host,
		tracer: otel.Tracer("idmask/interception"),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.logger == nil {
		i.logger = slog.New(slog.DiscardHandler)
	}
	return i, nil
}

// Install binds every non-empty override whose surface is reachable. It runs
// once; later calls return ErrAlreadyInstalled and bind nothing. The error
// return is reserved for that case: refused bindings are reported in the
// result.
func (i *Interceptor) Install(ctx context.Context, snap models.Snapshot, surfaces compat.Surfaces) (InstallResult, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state == Installed {
		audit.Record(ctx, i.logger, i.publisher, audit.EventInstallRepeated, "reason", "install already ran")
		return InstallResult{}, ErrAlreadyInstalled
	}

	ctx, span := i.tracer.Start(ctx, "interception.Install")
	defer span.End()
	start := time.Now()

	var result InstallResult
	claimed := make(map[surface.Target]models.AttributeKey)

	for _, o := range snap.Overrides() {
		desc := surfaces.Lookup(o.Key)
		if !desc.Reachable() {
			result.Skipped = append(result.Skipped, Skip{Key: o.Key, Legibility: desc.Legibility})
			if i.metrics != nil {
				i.metrics.IncrementSkipped(desc.Legibility.String())
			}
			i.logger.DebugContext(ctx, "override left unbound",
				"key", o.Key.String(),
				"legibility", desc.Legibility.String(),
			)
			continue
		}

		for _, target := range desc.Bindings {
			if owner, taken := claimed[target]; taken {
				if owner != o.Key {
					i.reject(ctx, &result, o.Key, target, fmt.Errorf("%w by %s", ErrDuplicateTarget, owner))
				}
				continue
			}
			if err := i.bind(target, o.Value); err != nil {
				i.reject(ctx, &result, o.Key, target, err)
				continue
			}
			claimed[target] = o.Key
			result.Bound = append(result.Bound, Binding{Key: o.Key, Target: target})
			if i.metrics != nil {
				i.metrics.IncrementInstalled(target.Kind.String())
			}
		}
	}

	i.state = Installed
	i.snapshot = snap
	i.surfaces = surfaces

	if i.metrics != nil {
		i.metrics.ObserveInstallDuration(time.Since(start).Seconds())
	}
	span.SetAttributes(
		attribute.Int("bindings.bound", len(result.Bound)),
		attribute.Int("bindings.skipped", len(result.Skipped)),
		attribute.Int("bindings.rejected", len(result.Rejected)),
	)
	if len(result.Rejected) > 0 {
		span.SetStatus(codes.Error, "some bindings rejected")
	}

	audit.Record(ctx, i.logger, i.publisher, audit.EventOverridesInstalled,
		"bound", len(result.Bound),
		"skipped", len(result.Skipped),
		"rejected", len(result.Rejected),
		"keys", boundKeys(result.Bound),
	)
	return result, nil
}

func (i *Interceptor) bind(target surface.Target, value string) error {
	acc, err := surface.AccessorFor(target.Kind)
	if err != nil {
		return err
	}
	return acc.Bind(i.host, target, value)
}

func (i *Interceptor) reject(ctx context.Context, result *InstallResult, key models.AttributeKey, target surface.Target, err error) {
	be := &BindingError{Key: key, Target: target, Err: err}
	result.Rejected = append(result.Rejected, be)
	if i.metrics != nil {
		i.metrics.IncrementRejected(target.Kind.String())
	}
	audit.Record(ctx, i.logger, i.publisher, audit.EventBindingRejected,
		"key", key.String(),
		"surface", target.String(),
		"reason", err.Error(),
	)
}

// State returns the lifecycle state.
func (i *Interceptor) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Installed returns the snapshot and surfaces the install ran with. ok is
// false before Install.
func (i *Interceptor) Installed() (snap models.Snapshot, surfaces compat.Surfaces, ok bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state != Installed {
		return models.Snapshot{}, nil, false
	}
	return i.snapshot, i.surfaces, true
}

func boundKeys(bound []Binding) string {
	seen := make(map[models.AttributeKey]bool, len(bound))
	var keys []string
	for _, b := range bound {
		if !seen[b.Key] {
			seen[b.Key] = true
			keys = append(keys, b.Key.String())
		}
	}
	return strings.Join(keys, ",")
}
