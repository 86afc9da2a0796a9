package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "hitlchat:checkpoint:"

// RedisStore keeps one JSON-encoded checkpoint per key.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// OpenRedis connects to cfg.Addr.
func OpenRedis(ctx context.Context, cfg Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return NewRedisStore(client, cfg.Prefix, time.Duration(cfg.TTLSeconds)*time.Second), nil
}

// NewRedisStore wraps an existing client. A zero ttl keeps checkpoints forever.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(threadID string) string { return s.prefix + threadID }

func (s *RedisStore) Get(ctx context.Context, threadID string) (*Checkpoint, error) {
	data, err := s.client.Get(ctx, s.key(threadID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get checkpoint %q: %w", threadID, err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint %q: %w", threadID, err)
	}
	return &cp, nil
}

func (s *RedisStore) Put(ctx context.Context, cp *Checkpoint) error {
	stamp(cp)
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint %q: %w", cp.ThreadID, err)
	}
	if err := s.client.Set(ctx, s.key(cp.ThreadID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("put checkpoint %q: %w", cp.ThreadID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, threadID string) error {
	n, err := s.client.Del(ctx, s.key(threadID)).Result()
	if err != nil {
		return fmt.Errorf("delete checkpoint %q: %w", threadID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]Checkpoint, error) {
	var out []Checkpoint
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		threadID := strings.TrimPrefix(iter.Val(), s.prefix)
		cp, err := s.Get(ctx, threadID)
		if errors.Is(err, ErrNotFound) {
			continue // expired between SCAN and GET
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *cp)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan checkpoints: %w", err)
	}
	sortByRecency(out)
	return out, nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
