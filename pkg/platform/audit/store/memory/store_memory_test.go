package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idmask/pkg/platform/audit"
)

func TestCapacityKeepsNewest(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore(WithCapacity(2))
	for _, action := range []audit.AuditEvent{audit.EventSnapshotSaved, audit.EventAttributeUpdated, audit.EventSnapshotRegenerated} {
		require.NoError(t, s.Emit(ctx, audit.Event{Action: string(action)}))
	}

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, string(audit.EventAttributeUpdated), all[0].Action)
	assert.Equal(t, string(audit.EventSnapshotRegenerated), all[1].Action)

	recent, err := s.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, string(audit.EventSnapshotRegenerated), recent[0].Action)

	saved, err := s.ListByAction(ctx, audit.EventSnapshotSaved)
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestListRecentLimitLargerThanTrail(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	require.NoError(t, s.Emit(ctx, audit.Event{Action: string(audit.EventSnapshotSaved)}))

	recent, err := s.ListRecent(ctx, 50)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}
