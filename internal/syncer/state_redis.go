package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStates - checkpointy współdzielone między instancjami, TTL = maks. czas przebiegu
type RedisStates struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStates(client *redis.Client, prefix string, ttl time.Duration) *RedisStates {
	if prefix == "" {
		prefix = "woo2mag:sync:"
	}
	return &RedisStates{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisStates) key(k string) string { return r.prefix + k }

func (r *RedisStates) Load(ctx context.Context, key string) (*SyncState, error) {
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get state: %w", err)
	}
	var st SyncState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode state %q: %w", key, err)
	}
	return &st, nil
}

// Save - optimistic lock przez WATCH/MULTI
func (r *RedisStates) Save(ctx context.Context, key string, st *SyncState) error {
	k := r.key(key)
	expected := st.Version

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		var current int64
		raw, err := tx.Get(ctx, k).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var stored SyncState
			if err := json.Unmarshal(raw, &stored); err != nil {
				return err
			}
			current = stored.Version
		}
		if current != expected {
			return ErrVersionConflict
		}

		next := *st
		next.Version = expected + 1
		payload, err := json.Marshal(&next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, payload, r.ttl)
			return nil
		})
		return err
	}, k)

	switch {
	case err == nil:
		st.Version = expected + 1
		return nil
	case errors.Is(err, ErrVersionConflict), errors.Is(err, redis.TxFailedErr):
		return ErrVersionConflict
	default:
		return fmt.Errorf("redis save state: %w", err)
	}
}

func (r *RedisStates) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}
