package examples

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idmask/internal/examples/metrics"
	"idmask/internal/identity/models"
)

// zeroSource always yields the lower bound of every range.
type zeroSource struct{}

func (zeroSource) Int64N(int64) int64 { return 0 }

const fullPage = `<html><body><div class="info">
<p>Brand : <span class="v">samsung</span></p>
<p>Model : <span class="v">SM-G991B</span></p>
<p>Device : <span class="v">o1s</span></p>
<p>Build ID : <span class="v">TP1A.220624.014</span></p>
<p>Manufacturer : <span class="v">Samsung</span></p>
<p>Product : <span class="v">o1sxxx</span></p>
<p>Fingerprint : <span class="v">samsung/o1sxxx/o1s:13/TP1A.220624.014/G991BXXU5DVKB:user/release-keys</span></p>
<p>IMEI : <span class="v">356938035643809</span></p>
</div></body></html>`

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchRandomExampleFullPage(t *testing.T) {
	srv := serve(t, http.StatusOK, fullPage)
	m := metrics.New(prometheus.NewRegistry())

	snap, err := New(srv.URL, WithSource(zeroSource{}), WithMetrics(m)).FetchRandomExample(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "samsung", snap.Get(models.KeyBrand))
	assert.Equal(t, "SM-G991B", snap.Get(models.KeyModel))
	assert.Equal(t, "TP1A.220624.014", snap.Get(models.KeyBuildID))
	assert.Equal(t, "356938035643809", snap.Get(models.KeyIMEI))
	assert.Equal(t, "HW1000000", snap.Get(models.KeyHardwareSerial))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fetches.WithLabelValues("ok")))
	assert.Equal(t, 0, testutil.CollectAndCount(m.FieldFallbacks))
}

func TestFetchRandomExampleBrandOnly(t *testing.T) {
	srv := serve(t, http.StatusOK, `<div>Brand : <span>Acme</span></div>`)

	snap, err := New(srv.URL, WithSource(zeroSource{})).FetchRandomExample(context.Background())
	require.NoError(t, err)

	want, err := models.NewSnapshot(map[models.AttributeKey]string{
		models.KeyBrand:          "Acme",
		models.KeyModel:          "Generic Model",
		models.KeyDevice:         "generic_device",
		models.KeyManufacturer:   "Generic",
		models.KeyProduct:        "generic_product",
		models.KeyBuildID:        "ID100000",
		models.KeyFingerprint:    "generic/device/id:android/release/keys",
		models.KeyBootloader:     "BL100000",
		models.KeyBoard:          "board_100",
		models.KeyDisplayID:      "ID.100000",
		models.KeyHardwareSerial: "HW1000000",
		models.KeyIMEI:           "861000000000",
		models.KeyPhoneNumber:    "+12000000000",
		models.KeySimIMSI:        "310261000000000",
	})
	require.NoError(t, err)
	assert.Equal(t, want, snap)
}

func TestFetchRandomExampleFailures(t *testing.T) {
	t.Run("non-success status", func(t *testing.T) {
		srv := serve(t, http.StatusServiceUnavailable, "down")
		m := metrics.New(prometheus.NewRegistry())

		_, err := New(srv.URL, WithMetrics(m)).FetchRandomExample(context.Background())

		var fe *FetchError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, CategoryBadStatus, fe.Category)
		assert.Equal(t, "Failed to fetch fake device info: 503", fe.Error())
		assert.Equal(t, 1.0, testutil.ToFloat64(m.Fetches.WithLabelValues("bad_status")))
	})

	t.Run("transport failure", func(t *testing.T) {
		srv := serve(t, http.StatusOK, "")
		url := srv.URL
		srv.Close()

		_, err := New(url).FetchRandomExample(context.Background())

		var fe *FetchError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, CategoryTransport, fe.Category)
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		_, err := New(srv.URL, WithTimeout(50*time.Millisecond)).FetchRandomExample(context.Background())

		var fe *FetchError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, CategoryTimeout, fe.Category)
	})
}

func TestParse(t *testing.T) {
	cases := []struct {
		name  string
		page  string
		key   models.AttributeKey
		value string
	}{
		{"label wrapped in inline tag", `<p><b>Model</b> : <span>Pixel 8</span></p>`, models.KeyModel, "Pixel 8"},
		{"no space before colon", `<p>Device: <span>husky</span></p>`, models.KeyDevice, "husky"},
		{"first occurrence wins", `<p>Brand : <span>one</span></p><p>Brand : <span>two</span></p>`, models.KeyBrand, "one"},
		{"empty span falls back", `<p>Brand : <span> </span></p>`, models.KeyBrand, "Generic"},
		{"label inside a word is ignored", `<p>AndroidID : <span>abc</span></p>`, models.KeyBuildID, "ID100000"},
		{"value whitespace trimmed", "<p>IMEI : <span>\n 490154203237518 \n</span></p>", models.KeyIMEI, "490154203237518"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snap, _ := Parse([]byte(tc.page), zeroSource{})
			assert.Equal(t, tc.value, snap.Get(tc.key))
		})
	}

	t.Run("missing lists fallbacks in label order", func(t *testing.T) {
		_, missing := Parse([]byte(`<p>Model : <span>X</span></p>`), zeroSource{})
		assert.Equal(t, []models.AttributeKey{
			models.KeyBrand, models.KeyDevice, models.KeyBuildID, models.KeyManufacturer,
			models.KeyProduct, models.KeyFingerprint, models.KeyIMEI,
		}, missing)
	})

	t.Run("garbage input still yields a full snapshot", func(t *testing.T) {
		snap, missing := Parse([]byte("\x00<<<not html"), zeroSource{})
		assert.Len(t, missing, len(labelled))
		assert.Len(t, snap.Overrides(), len(models.AllKeys()))
	})
}
