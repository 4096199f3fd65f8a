package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"idmask/internal/identity/models"
)

// Dialect selects placeholder syntax for the SQL store.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// ParseDialect maps a configured store driver onto a dialect.
func ParseDialect(s string) (Dialect, error) {
	switch Dialect(s) {
	case DialectSQLite, DialectPostgres:
		return Dialect(s), nil
	default:
		return "", fmt.Errorf("unsupported sql dialect %q", s)
	}
}

const createTable = `CREATE TABLE IF NOT EXISTS idmask_snapshots (
	slot       TEXT PRIMARY KEY,
	blob       TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

// SQLStore persists the snapshot in the idmask_snapshots table.
type SQLStore struct {
	db       *sql.DB
	dialect  Dialect
	settings settings

	selectQuery string
	upsertQuery string
}

// NewSQL constructs a SQL-backed store. Call Migrate before first use.
func NewSQL(db *sql.DB, dialect Dialect, opts ...Option) *SQLStore {
	s := &SQLStore{db: db, dialect: dialect, settings: newSettings(opts)}
	if dialect == DialectPostgres {
		s.selectQuery = `SELECT blob FROM idmask_snapshots WHERE slot = $1`
		s.upsertQuery = `INSERT INTO idmask_snapshots (slot, blob, updated_at) VALUES ($1, $2, $3)
			ON CONFLICT (slot) DO UPDATE SET blob = EXCLUDED.blob, updated_at = EXCLUDED.updated_at`
	} else {
		s.selectQuery = `SELECT blob FROM idmask_snapshots WHERE slot = ?`
		s.upsertQuery = `INSERT INTO idmask_snapshots (slot, blob, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (slot) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at`
	}
	return s
}

// Migrate creates the snapshot table if it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create snapshot table: %w", err)
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context) (models.Snapshot, bool, error) {
	ctx, span := tracer.Start(ctx, "store.sql.Load")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", string(s.dialect)))

	var blob string
	err := s.db.QueryRowContext(ctx, s.selectQuery, s.settings.slot).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return models.EmptySnapshot(), false, nil
	}
	if err != nil {
		span.RecordError(err)
		return models.Snapshot{}, false, fmt.Errorf("load snapshot: %w", err)
	}

	snap, err := decode([]byte(blob))
	if err != nil {
		s.settings.recoverCorrupt(ctx, string(s.dialect), err)
		return snap, true, nil
	}
	return snap, false, nil
}

func (s *SQLStore) Save(ctx context.Context, snap models.Snapshot) error {
	ctx, span := tracer.Start(ctx, "store.sql.Save")
	defer span.End()

	data, err := encode(snap)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.upsertQuery, s.settings.slot, string(data), time.Now().UTC()); err != nil {
		span.RecordError(err)
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// SetRaw writes a blob verbatim, bypassing encoding.
func (s *SQLStore) SetRaw(ctx context.Context, data []byte) error {
	_, err := s.db.ExecContext(ctx, s.upsertQuery, s.settings.slot, string(data), time.Now().UTC())
	return err
}
