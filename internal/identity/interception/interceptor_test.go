package interception

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"idmask/internal/identity/compat"
	"idmask/internal/identity/metrics"
	"idmask/internal/identity/models"
	"idmask/internal/identity/surface"
	"idmask/pkg/platform/audit"
	auditmemory "idmask/pkg/platform/audit/store/memory"
	"idmask/pkg/platform/sentinel"
)

type InterceptorSuite struct {
	suite.Suite
	ctx     context.Context
	host    *surface.Host
	table   *compat.Table
	audit   *auditmemory.InMemoryStore
	metrics *metrics.Metrics
	sut     *Interceptor
}

func TestInterceptorSuite(t *testing.T) {
	suite.Run(t, new(InterceptorSuite))
}

func profile(version int, caps ...surface.Capability) surface.Profile {
	return surface.Profile{
		Platform:     surface.Platform{Version: version},
		Capabilities: caps,
		Fields: map[string]string{
			surface.FieldBrand:       "google",
			surface.FieldModel:       "Pixel 2",
			surface.FieldFingerprint: "google/walleye/walleye:8.1.0/OPM1/1:user/release-keys",
		},
		Operations: map[string][]string{
			surface.OpGetImei:         {"356938035643809", "356938035643817"},
			surface.OpGetDeviceID:     {"356938035643809", "356938035643817"},
			surface.OpGetLine1Number:  {"+15550100"},
			surface.OpGetSubscriberID: {"310260000000000"},
		},
		Hardened: []string{surface.FieldFingerprint},
	}
}

func (s *InterceptorSuite) SetupTest() {
	s.ctx = context.Background()
	s.setup(profile(27, surface.CapReadPhoneState))
}

func (s *InterceptorSuite) setup(p surface.Profile) {
	var err error
	s.host = surface.NewHost(p)
	s.table, err = compat.New()
	s.Require().NoError(err)
	s.audit = auditmemory.NewInMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.sut, err = New(s.host,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(s.audit),
		WithMetrics(s.metrics),
	)
	s.Require().NoError(err)
}

func (s *InterceptorSuite) surfaces() compat.Surfaces {
	return s.table.Resolve(s.host.PlatformVersion(), s.host.Granted())
}

func (s *InterceptorSuite) snapshot(values map[models.AttributeKey]string) models.Snapshot {
	snap, err := models.NewSnapshot(values)
	s.Require().NoError(err)
	return snap
}

func (s *InterceptorSuite) TestNew() {
	_, err := New(nil)
	s.Error(err)
}

func (s *InterceptorSuite) TestInstall() {
	s.Run("fields are written before install returns", func() {
		snap := s.snapshot(map[models.AttributeKey]string{models.KeyBrand: "Acme"})
		result, err := s.sut.Install(s.ctx, snap, s.surfaces())
		s.Require().NoError(err)
		s.Equal([]Binding{{Key: models.KeyBrand, Target: surface.Field(surface.FieldBrand)}}, result.Bound)

		v, err := s.host.ReadField(surface.FieldBrand)
		s.Require().NoError(err)
		s.Equal("Acme", v)

		v, err = s.host.ReadField(surface.FieldModel)
		s.Require().NoError(err)
		s.Equal("Pixel 2", v)
		s.Equal(Installed, s.sut.State())
	})
}

func (s *InterceptorSuite) TestEveryOverloadIsBound() {
	snap := s.snapshot(map[models.AttributeKey]string{models.KeyIMEI: "123456789012345"})
	result, err := s.sut.Install(s.ctx, snap, s.surfaces())
	s.Require().NoError(err)
	s.Len(result.Bound, 4)

	for _, call := range []struct {
		name string
		args []int
	}{
		{surface.OpGetImei, nil},
		{surface.OpGetImei, []int{0}},
		{surface.OpGetImei, []int{1}},
		{surface.OpGetDeviceID, nil},
		{surface.OpGetDeviceID, []int{1}},
	} {
		v, err := s.host.Invoke(call.name, call.args...)
		s.Require().NoError(err)
		s.Equal("123456789012345", v, "%s%v leaked the genuine value", call.name, call.args)
	}
}

func (s *InterceptorSuite) TestIllegibleSurfacesSkipped() {
	s.Run("unreachable platform", func() {
		s.setup(profile(29, surface.CapReadPhoneState))
		snap := s.snapshot(map[models.AttributeKey]string{models.KeyIMEI: "123456789012345"})
		result, err := s.sut.Install(s.ctx, snap, s.surfaces())
		s.Require().NoError(err)
		s.Empty(result.Bound)
		s.Equal([]Skip{{Key: models.KeyIMEI, Legibility: compat.UnreachablePlatform}}, result.Skipped)

		v, err := s.host.Invoke(surface.OpGetImei)
		s.Require().NoError(err)
		s.Equal("356938035643809", v)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.SurfacesSkipped.WithLabelValues("unreachable_platform")))
	})

	s.Run("denied capability", func() {
		s.setup(profile(27))
		snap := s.snapshot(map[models.AttributeKey]string{models.KeyIMEI: "123456789012345"})
		result, err := s.sut.Install(s.ctx, snap, s.surfaces())
		s.Require().NoError(err)
		s.Equal([]Skip{{Key: models.KeyIMEI, Legibility: compat.DeniedCapability}}, result.Skipped)
	})
}

func (s *InterceptorSuite) TestRejectedBindingDoesNotAbort() {
	snap := s.snapshot(map[models.AttributeKey]string{
		models.KeyBrand:       "Acme",
		models.KeyFingerprint: "acme/x1/x1:10/QP1A/1:user/release-keys",
		models.KeySimIMSI:     "310260123456789",
	})
	result, err := s.sut.Install(s.ctx, snap, s.surfaces())
	s.Require().NoError(err)

	s.Require().Len(result.Rejected, 1)
	rejected := result.Rejected[0]
	s.Equal(models.KeyFingerprint, rejected.Key)
	s.True(errors.Is(rejected, ErrBindingRejected))
	s.True(errors.Is(rejected, surface.ErrHardened))
	s.True(errors.Is(result.Err(), surface.ErrHardened))
	s.Len(result.Bound, 2)

	v, err := s.host.Invoke(surface.OpGetSubscriberID)
	s.Require().NoError(err)
	s.Equal("310260123456789", v)

	events, err := s.audit.ListByAction(s.ctx, audit.EventBindingRejected)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal("FINGERPRINT", events[0].Subject)
	s.Equal(audit.CategorySecurity, events[0].Category)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.BindingsRejected.WithLabelValues("mutable_field")))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.BindingsInstalled.WithLabelValues("post_invocation_result")))
}

func (s *InterceptorSuite) TestSecondInstallNeverRebinds() {
	first := s.snapshot(map[models.AttributeKey]string{models.KeyPhoneNumber: "+15550111"})
	_, err := s.sut.Install(s.ctx, first, s.surfaces())
	s.Require().NoError(err)

	second := s.snapshot(map[models.AttributeKey]string{
		models.KeyPhoneNumber: "+15550222",
		models.KeyBrand:       "Other",
	})
	result, err := s.sut.Install(s.ctx, second, s.surfaces())
	s.True(errors.Is(err, ErrAlreadyInstalled))
	s.True(errors.Is(err, sentinel.ErrAlreadyUsed))
	s.Empty(result.Bound)

	v, err := s.host.Invoke(surface.OpGetLine1Number)
	s.Require().NoError(err)
	s.Equal("+15550111", v)
	brand, err := s.host.ReadField(surface.FieldBrand)
	s.Require().NoError(err)
	s.Equal("google", brand)

	snap, _, ok := s.sut.Installed()
	s.True(ok)
	s.Equal(first, snap)

	repeated, err := s.audit.ListByAction(s.ctx, audit.EventInstallRepeated)
	s.Require().NoError(err)
	s.Len(repeated, 1)
}

func (s *InterceptorSuite) TestDuplicateTargetRejected() {
	table, err := compat.New(compat.WithRows([]compat.Row{
		{Key: models.KeySimIMSI, Primary: surface.Op(surface.OpGetLine1Number, 0)},
	}))
	s.Require().NoError(err)
	surfaces := table.Resolve(s.host.PlatformVersion(), s.host.Granted())

	snap := s.snapshot(map[models.AttributeKey]string{
		models.KeyPhoneNumber: "+15550111",
		models.KeySimIMSI:     "310260123456789",
	})
	result, err := s.sut.Install(s.ctx, snap, surfaces)
	s.Require().NoError(err)
	s.Require().Len(result.Rejected, 1)
	s.Equal(models.KeySimIMSI, result.Rejected[0].Key)
	s.True(errors.Is(result.Rejected[0], ErrDuplicateTarget))

	v, err := s.host.Invoke(surface.OpGetLine1Number)
	s.Require().NoError(err)
	s.Equal("+15550111", v)
}

func (s *InterceptorSuite) TestInstalledBeforeInstall() {
	_, _, ok := s.sut.Installed()
	s.False(ok)
	s.Equal(Uninstalled, s.sut.State())
	s.Equal("uninstalled", s.sut.State().String())
}

func (s *InterceptorSuite) TestInstallAudited() {
	snap := s.snapshot(map[models.AttributeKey]string{models.KeyBrand: "Acme", models.KeyModel: "X1"})
	_, err := s.sut.Install(s.ctx, snap, s.surfaces())
	s.Require().NoError(err)

	events, err := s.audit.ListByAction(s.ctx, audit.EventOverridesInstalled)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal("BRAND,MODEL", events[0].Attrs["keys"])
	s.Equal("2", events[0].Attrs["bound"])
}
