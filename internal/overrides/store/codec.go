// Package store persists the override snapshot as a single JSON blob under a
// fixed slot in memory, SQL (sqlite or postgres) or redis.
package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"

	"idmask/internal/identity/models"
)

// DefaultSlot is the storage slot name used when none is configured.
const DefaultSlot = "device_info"

// ErrSnapshotCorrupt describes a stored blob that failed to decode. Load
// recovers from it and never returns it; it is exposed for logging.
var ErrSnapshotCorrupt = errors.New("stored snapshot is corrupt")

var tracer = otel.Tracer("idmask/overrides/store")

func encode(snap models.Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// decode returns the empty snapshot for empty data and, together with a
// wrapped ErrSnapshotCorrupt, for data that does not parse.
func decode(data []byte) (models.Snapshot, error) {
	if len(data) == 0 {
		return models.EmptySnapshot(), nil
	}
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return models.EmptySnapshot(), fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}
	return snap, nil
}
