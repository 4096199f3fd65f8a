package main

import (
	"context"
	"fmt"
	"log/slog"

	"idmask/internal/overrides/ports"
	"idmask/internal/overrides/store"
	"idmask/internal/platform/config"
	"idmask/internal/platform/redis"
	"idmask/internal/platform/sqldb"
)

// readiness reports whether the snapshot backend answers.
type readiness func(ctx context.Context) error

// buildStore opens the configured snapshot backend. The returned func releases
// its connections.
func buildStore(ctx context.Context, cfg config.Config, log *slog.Logger) (ports.SnapshotStore, readiness, func(), error) {
	opts := []store.Option{store.WithSlot(cfg.Store.Slot), store.WithLogger(log)}

	switch cfg.Store.Driver {
	case config.DriverSQLite, config.DriverPostgres:
		dialect, err := store.ParseDialect(cfg.Store.Driver)
		if err != nil {
			return nil, nil, nil, err
		}
		db, err := sqldb.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return nil, nil, nil, err
		}
		s := store.NewSQL(db, dialect, opts...)
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, nil, fmt.Errorf("migrate snapshot table: %w", err)
		}
		log.Info("snapshot store ready", "driver", cfg.Store.Driver, "slot", cfg.Store.Slot)
		return s, db.PingContext, func() { _ = db.Close() }, nil

	case config.DriverRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, nil, err
		}
		log.Info("snapshot store ready", "driver", "redis", "slot", cfg.Store.Slot)
		return store.NewRedis(client.Client, opts...), client.Health, func() { _ = client.Close() }, nil

	case config.DriverMemory:
		log.Warn("snapshot store is in memory; overrides will not survive a restart")
		return store.NewInMemoryStore(opts...), func(context.Context) error { return nil }, func() {}, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}
