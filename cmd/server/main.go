package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"idmask/internal/commands"
	"idmask/internal/examples"
	examplesmetrics "idmask/internal/examples/metrics"
	"idmask/internal/export"
	"idmask/internal/identity/compat"
	"idmask/internal/identity/engine"
	identitymetrics "idmask/internal/identity/metrics"
	"idmask/internal/identity/surface"
	"idmask/internal/overrides/handler"
	overridesmetrics "idmask/internal/overrides/metrics"
	"idmask/internal/overrides/service"
	"idmask/internal/platform/config"
	"idmask/internal/platform/httpserver"
	"idmask/internal/platform/kafka"
	"idmask/internal/platform/logger"
	httpmetrics "idmask/internal/platform/metrics"
	"idmask/internal/platform/middleware"
	"idmask/internal/platform/otel"
	"idmask/pkg/platform/audit"
	"idmask/pkg/platform/audit/publisher"
	"idmask/pkg/platform/audit/store/memory"
	"idmask/pkg/requestcontext"
)

// main wires dependencies, installs the stored overrides before anything else
// can read identity, then serves HTTP and the optional command listener.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("idmask stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	shutdownTracing, err := otel.Setup(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var producer *kafka.Producer
	if cfg.Kafka.Enabled() {
		producer, err = kafka.NewProducer(cfg.Kafka.Brokers)
		if err != nil {
			return err
		}
		defer producer.Close()
	}

	var auditProducer publisher.Producer
	if producer != nil {
		auditProducer = producer
	}
	auditPub, trail, closeAudit := buildAuditPublisher(cfg, auditProducer, reg, log)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), auditCloseTimeout)
		defer cancel()
		if err := closeAudit(closeCtx); err != nil {
			log.Warn("audit events still queued at shutdown were dropped", "error", err)
		}
	}()

	host, err := buildHost(cfg.Identity)
	if err != nil {
		return err
	}
	table, err := buildTable(cfg.Identity)
	if err != nil {
		return err
	}
	eng, err := engine.New(host, table,
		engine.WithLogger(log),
		engine.WithAuditPublisher(auditPub),
		engine.WithMetrics(identitymetrics.New(reg)),
	)
	if err != nil {
		return err
	}

	snapshots, ready, closeStore, err := buildStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	fetcher := examples.New(cfg.Examples.URL,
		examples.WithTimeout(cfg.Examples.Timeout),
		examples.WithLogger(log),
		examples.WithMetrics(examplesmetrics.New(reg)),
	)
	svc, err := service.New(snapshots, eng, fetcher,
		service.WithLogger(log),
		service.WithAuditPublisher(auditPub),
		service.WithMetrics(overridesmetrics.New(reg)),
	)
	if err != nil {
		return err
	}

	startupCtx := requestcontext.WithActor(ctx, "startup")
	result, err := svc.Init(startupCtx)
	if err != nil {
		return fmt.Errorf("install overrides: %w", err)
	}
	log.Info("overrides installed",
		"bound", len(result.Bound),
		"skipped", len(result.Skipped),
		"rejected", len(result.Rejected),
		"platform_version", host.PlatformVersion(),
	)

	receiver, err := commands.New(svc, commands.WithLogger(log), commands.WithAuditPublisher(auditPub))
	if err != nil {
		return err
	}
	exporter := export.New(cfg.Export.Dir, export.WithLogger(log), export.WithAuditPublisher(auditPub))

	router := newRouter(cfg, handler.New(svc, receiver, exporter, log), ready, trail, httpmetrics.New(reg), reg, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, httpserver.New(cfg.Server.Addr, router), log)
	})
	if cfg.Server.MetricsAddr != "" {
		g.Go(func() error {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			return httpserver.Run(gctx, httpserver.New(cfg.Server.MetricsAddr, mux), log)
		})
	}
	if producer != nil {
		consumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, cfg.Kafka.CommandTopic, log)
		if err != nil {
			return err
		}
		listener := commands.NewListener(receiver, producer, cfg.Kafka.ResultTopic, log)
		g.Go(func() error {
			log.Info("command listener started", "topic", cfg.Kafka.CommandTopic)
			return consumer.Run(gctx, listener)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newRouter(cfg config.Config, h *handler.Handler, ready readiness, trail *memory.InMemoryStore, m *httpmetrics.Metrics, reg *prometheus.Registry, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(log, m))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := ready(r.Context()); err != nil {
			log.WarnContext(r.Context(), "snapshot store not ready", "error", err)
			http.Error(w, "snapshot store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	if cfg.Server.MetricsAddr == "" {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	h.Register(r)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdminToken(cfg.Server.AdminToken, log))
		h.RegisterAdmin(r)
		r.Get("/api/v1/audit", auditTrail(trail))
	})
	return r
}

func buildHost(cfg config.Identity) (*surface.Host, error) {
	profile := surface.Profile{Platform: surface.Platform{Version: 34, Release: "14"}}
	if cfg.ProfilePath != "" {
		p, err := surface.LoadProfile(cfg.ProfilePath)
		if err != nil {
			return nil, err
		}
		profile = p
	}
	if cfg.ReadDMI {
		profile = surface.FillFromDMI(profile, cfg.DMIRoot)
	}
	return surface.NewHost(profile), nil
}

func buildTable(cfg config.Identity) (*compat.Table, error) {
	opts := []compat.Option{compat.WithThresholds(compat.Thresholds{
		Telephony: compat.Tiers{First: cfg.TelephonyThresholds[0], Second: cfg.TelephonyThresholds[1]},
		Serial:    compat.Tiers{First: cfg.SerialThresholds[0], Second: cfg.SerialThresholds[1]},
	})}
	if cfg.CompatTablePath != "" {
		rows, err := compat.LoadRows(cfg.CompatTablePath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, compat.WithRows(rows))
	}
	return compat.New(opts...)
}

// buildAuditPublisher records every event in the bounded in-memory trail.
// With kafka configured, events are also shipped to the audit topic through
// an async buffer and a circuit breaker that only guard the kafka sink.
func buildAuditPublisher(cfg config.Config, producer publisher.Producer, reg prometheus.Registerer, log *slog.Logger) (audit.Publisher, *memory.InMemoryStore, func(context.Context) error) {
	trail := memory.NewInMemoryStore(memory.WithCapacity(auditTrailCapacity))
	if producer == nil {
		return trail, trail, func(context.Context) error { return nil }
	}
	remote := publisher.NewPublisher(publisher.NewKafkaSink(producer, cfg.Kafka.AuditTopic),
		publisher.WithAsyncBuffer(256),
		publisher.WithDeliveryTimeout(auditDeliveryTimeout),
		publisher.WithCircuitBreaker(5, time.Minute),
		publisher.WithLogger(log),
		publisher.WithMetrics(publisher.NewMetrics(reg)),
	)
	return publisher.Fanout{trail, remote}, trail, remote.Close
}
