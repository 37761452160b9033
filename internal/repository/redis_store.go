package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ema-residences/service-reservation/internal/application"
	"github.com/ema-residences/service-reservation/internal/platform/redisx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const idempotencyPending = "pending"

// RedisIdempotencyStore keeps Idempotency-Key state in Redis.
type RedisIdempotencyStore struct {
	rdb redis.UniversalClient
}

func NewRedisIdempotencyStore(rdb redis.UniversalClient) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{rdb: rdb}
}

// Reserve claims key for scope with SETNX. A key that is already held reports the completed
// reservation id, or nothing while the first request is still running.
func (s *RedisIdempotencyStore) Reserve(ctx context.Context, scope, key string) (application.IdempotencyRecord, error) {
	k := redisx.Key(redisx.KeyIdemReservationCreate, scope, key)
	ok, err := s.rdb.SetNX(ctx, k, idempotencyPending, redisx.TTLIdempotency).Result()
	if err != nil {
		return application.IdempotencyRecord{}, fmt.Errorf("reserve idempotency key: %w", err)
	}
	if ok {
		return application.IdempotencyRecord{Reserved: true}, nil
	}

	val, err := s.rdb.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) || val == idempotencyPending {
		return application.IdempotencyRecord{}, nil
	}
	if err != nil {
		return application.IdempotencyRecord{}, fmt.Errorf("read idempotency key: %w", err)
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return application.IdempotencyRecord{}, fmt.Errorf("corrupt idempotency key %s: %w", k, err)
	}
	return application.IdempotencyRecord{ReservationID: id}, nil
}

// Complete stores the created reservation id under the key.
func (s *RedisIdempotencyStore) Complete(ctx context.Context, scope, key string, reservationID uuid.UUID) error {
	k := redisx.Key(redisx.KeyIdemReservationCreate, scope, key)
	return s.rdb.Set(ctx, k, reservationID.String(), redisx.TTLIdempotency).Err()
}

// Release drops the key so the client may retry.
func (s *RedisIdempotencyStore) Release(ctx context.Context, scope, key string) error {
	return s.rdb.Del(ctx, redisx.Key(redisx.KeyIdemReservationCreate, scope, key)).Err()
}

// RedisDeduplicator remembers processed event ids per consumer.
type RedisDeduplicator struct {
	rdb redis.UniversalClient
}

func NewRedisDeduplicator(rdb redis.UniversalClient) *RedisDeduplicator {
	return &RedisDeduplicator{rdb: rdb}
}

// MarkProcessed returns false when id was already marked for consumer.
func (d *RedisDeduplicator) MarkProcessed(ctx context.Context, consumer, id string) (bool, error) {
	return d.rdb.SetNX(ctx, redisx.Key(redisx.KeyDedup, consumer, id), "1", redisx.TTLDedup).Result()
}

// Forget removes the mark so the event can be processed again.
func (d *RedisDeduplicator) Forget(ctx context.Context, consumer, id string) error {
	return d.rdb.Del(ctx, redisx.Key(redisx.KeyDedup, consumer, id)).Err()
}
