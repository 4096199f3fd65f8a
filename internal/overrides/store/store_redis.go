package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"idmask/internal/identity/models"
)

const redisKeyPrefix = "idmask:snapshot:"

// RedisStore keeps the snapshot blob under idmask:snapshot:<slot>.
type RedisStore struct {
	client   *redis.Client
	settings settings
}

func NewRedis(client *redis.Client, opts ...Option) *RedisStore {
	return &RedisStore{client: client, settings: newSettings(opts)}
}

func (s *RedisStore) key() string {
	return redisKeyPrefix + s.settings.slot
}

func (s *RedisStore) Load(ctx context.Context) (models.Snapshot, bool, error) {
	ctx, span := tracer.Start(ctx, "store.redis.Load")
	defer span.End()

	data, err := s.client.Get(ctx, s.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.EmptySnapshot(), false, nil
	}
	if err != nil {
		span.RecordError(err)
		return models.Snapshot{}, false, fmt.Errorf("load snapshot: %w", err)
	}

	snap, err := decode(data)
	if err != nil {
		s.settings.recoverCorrupt(ctx, "redis", err)
		return snap, true, nil
	}
	return snap, false, nil
}

func (s *RedisStore) Save(ctx context.Context, snap models.Snapshot) error {
	ctx, span := tracer.Start(ctx, "store.redis.Save")
	defer span.End()

	data, err := encode(snap)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(), data, 0).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
