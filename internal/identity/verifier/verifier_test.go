package verifier

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idmask/internal/identity/compat"
	"idmask/internal/identity/metrics"
	"idmask/internal/identity/models"
	"idmask/internal/identity/surface"
)

func newHost(version int) *surface.Host {
	return surface.NewHost(surface.Profile{
		Platform:     surface.Platform{Version: version},
		Capabilities: []surface.Capability{surface.CapReadPhoneState},
		Fields:       map[string]string{surface.FieldBrand: "google", surface.FieldModel: "Pixel"},
		Operations: map[string][]string{
			surface.OpGetImei:        {"356938035643809"},
			surface.OpGetLine1Number: {"+15550100"},
		},
	})
}

func resolve(t *testing.T, h *surface.Host) compat.Surfaces {
	table, err := compat.New()
	require.NoError(t, err)
	return table.Resolve(h.PlatformVersion(), h.Granted())
}

func TestVerify(t *testing.T) {
	ctx := context.Background()

	t.Run("empty snapshot yields sentinel summary", func(t *testing.T) {
		h := newHost(27)
		v, err := New(h)
		require.NoError(t, err)
		report := v.Verify(ctx, models.EmptySnapshot(), resolve(t, h))
		assert.Empty(t, report.Entries)
		assert.Equal(t, models.NoOverridesSummary, report.Summary())
	})

	t.Run("compares configured values against what the surface returns", func(t *testing.T) {
		h := newHost(27)
		reg := prometheus.NewRegistry()
		m := metrics.New(reg)
		v, err := New(h, WithMetrics(m))
		require.NoError(t, err)
		require.NoError(t, h.WriteField(surface.FieldBrand, "Acme"))

		snap, err := models.NewSnapshot(map[models.AttributeKey]string{
			models.KeyPhoneNumber: "+15550199",
			models.KeyBrand:       "Acme",
		})
		require.NoError(t, err)

		report := v.Verify(ctx, snap, resolve(t, h))
		require.Len(t, report.Entries, 2)
		assert.Equal(t, models.VerificationEntry{Key: models.KeyBrand, Name: "Brand", Expected: "Acme", Observed: "Acme"}, report.Entries[0])
		assert.Equal(t, "+15550100", report.Entries[1].Observed)
		assert.False(t, report.Entries[1].Passed())
		assert.Equal(t, "1/2 values spoofed correctly", report.Summary())
		assert.Equal(t, 1.0, testutil.ToFloat64(m.VerificationEntries.WithLabelValues("passed")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.VerificationEntries.WithLabelValues("failed")))
	})

	t.Run("illegible surfaces report their sentinel", func(t *testing.T) {
		h := newHost(29)
		v, err := New(h)
		require.NoError(t, err)
		snap, err := models.NewSnapshot(map[models.AttributeKey]string{models.KeyIMEI: "123456789012345"})
		require.NoError(t, err)

		report := v.Verify(ctx, snap, resolve(t, h))
		require.Len(t, report.Entries, 1)
		assert.Equal(t, UnreadableUnreachable, report.Entries[0].Observed)
		assert.False(t, report.AllPassed())
	})

	t.Run("surfaces missing from the map are unreachable", func(t *testing.T) {
		h := newHost(27)
		v, err := New(h)
		require.NoError(t, err)
		snap, err := models.NewSnapshot(map[models.AttributeKey]string{models.KeyBrand: "Acme"})
		require.NoError(t, err)
		report := v.Verify(ctx, snap, compat.Surfaces{})
		assert.Equal(t, UnreadableUnreachable, report.Entries[0].Observed)
	})
}

func TestObserve(t *testing.T) {
	h := surface.NewHost(surface.Profile{
		Platform: surface.Platform{Version: 27},
		Fields:   map[string]string{surface.FieldBrand: "google"},
	})
	v, err := New(h)
	require.NoError(t, err)

	obs := v.Observe(context.Background(), resolve(t, h))
	require.Len(t, obs, len(models.AllKeys()))
	assert.Equal(t, "google", obs[0].Value)
	assert.Equal(t, "reachable", obs[0].Legibility)

	byKey := make(map[models.AttributeKey]models.Observation)
	for _, o := range obs {
		byKey[o.Key] = o
	}
	assert.Equal(t, UnreadableDenied, byKey[models.KeyIMEI].Value)
	assert.Equal(t, "denied_capability", byKey[models.KeyIMEI].Legibility)
	assert.Equal(t, UnreadableDenied, byKey[models.KeyHardwareSerial].Value)
}

func TestUnreadable(t *testing.T) {
	assert.Empty(t, Unreadable(compat.Reachable))
	assert.Equal(t, UnreadableDenied, Unreadable(compat.DeniedCapability))
	assert.Equal(t, UnreadableUnreachable, Unreadable(compat.UnreachablePlatform))
}
