// Package examples fetches a randomised example configuration from a public
// device-information page and scrapes it into a snapshot.
package examples

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"idmask/internal/examples/metrics"
	"idmask/internal/identity/models"
)

const (
	// DefaultURL serves one randomised Android device per request.
	DefaultURL = "https://www.myfakeinfo.com/mobile/get-android-device-information.php"

	// DefaultTimeout bounds connect, request and body read together.
	DefaultTimeout = 30 * time.Second

	maxBodyBytes = 2 << 20
)

var tracer = otel.Tracer("idmask/examples")

type Fetcher struct {
	url     string
	client  *http.Client
	source  Source
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Fetcher)

// WithTimeout replaces the client timeout. Ignored when not positive.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// WithSource fixes the random source used for fallback values.
func WithSource(src Source) Option {
	return func(f *Fetcher) {
		f.source = src
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

// New builds a fetcher for url, or DefaultURL when url is empty.
func New(url string, opts ...Option) *Fetcher {
	if url == "" {
		url = DefaultURL
	}
	f := &Fetcher{
		url:    url,
		client: &http.Client{Timeout: DefaultTimeout},
		source: rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.New(slog.DiscardHandler)
	}
	return f
}

// FetchRandomExample requests one example page and returns a complete
// snapshot. Missing labels fall back to generated values; only transport
// failures and non-2xx statuses are errors, always as *FetchError. There is
// no retry.
func (f *Fetcher) FetchRandomExample(ctx context.Context) (models.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "examples.FetchRandomExample")
	defer span.End()
	start := time.Now()

	snap, err := f.fetch(ctx)
	if f.metrics != nil {
		f.metrics.ObserveFetchDuration(time.Since(start).Seconds())
	}
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			span.SetAttributes(attribute.String("fetch.category", string(fe.Category)))
			if f.metrics != nil {
				f.metrics.IncrementFetch(string(fe.Category))
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		f.logger.WarnContext(ctx, "example fetch failed", "url", f.url, "error", err)
		return models.Snapshot{}, err
	}
	if f.metrics != nil {
		f.metrics.IncrementFetch("ok")
	}
	return snap, nil
}

func (f *Fetcher) fetch(ctx context.Context) (models.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return models.Snapshot{}, newFetchError(CategoryTransport, err, "invalid example source URL: %v", err)
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", "idmask/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return models.Snapshot{}, newFetchError(CategoryTimeout, err, "Timed out fetching fake device info after %s", f.client.Timeout)
		}
		return models.Snapshot{}, newFetchError(CategoryTransport, err, "Failed to reach fake device info source: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return models.Snapshot{}, newFetchError(CategoryBadStatus, nil, "Failed to fetch fake device info: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if isTimeout(err) {
			return models.Snapshot{}, newFetchError(CategoryTimeout, err, "Timed out reading fake device info after %s", f.client.Timeout)
		}
		return models.Snapshot{}, newFetchError(CategoryReadBody, err, "Failed to read fake device info: %v", err)
	}

	snap, missing := Parse(body, f.source)
	for _, k := range missing {
		if f.metrics != nil {
			f.metrics.IncrementFallback(k.Field())
		}
	}
	if len(missing) > 0 {
		f.logger.DebugContext(ctx, "example response missing labels", "missing", fmt.Sprint(missing))
	}
	return snap, nil
}

// Parse scrapes an example page. It never fails: every absent label gets a
// generated fallback, listed in missing.
func Parse(body []byte, src Source) (snap models.Snapshot, missing []models.AttributeKey) {
	return buildSnapshot(scanLabels(bytes.NewReader(body)), src)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
