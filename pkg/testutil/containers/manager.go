//go:build integration

package containers

import (
	"context"
	"sync"
	"testing"
)

// Manager starts each container once per test binary and shares it across
// suites. Ryuk removes the containers when the binary exits.
type Manager struct {
	mu       sync.Mutex
	redis    *RedisContainer
	postgres *PostgresContainer
}

var (
	managerOnce sync.Once
	manager     *Manager
)

func GetManager() *Manager {
	managerOnce.Do(func() {
		manager = &Manager{}
	})
	return manager
}

func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redis == nil {
		rc, err := startRedis(context.Background())
		if err != nil {
			t.Fatalf("failed to start redis container: %v", err)
		}
		m.redis = rc
	}
	return m.redis
}

func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postgres == nil {
		pc, err := startPostgres(context.Background())
		if err != nil {
			t.Fatalf("failed to start postgres container: %v", err)
		}
		m.postgres = pc
	}
	return m.postgres
}
