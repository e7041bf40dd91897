package idempotency

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store marks keys as taken with SET NX so that only the first caller wins. It backs
// both Kafka message dedup and the reminder ledger.
type Store struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl, prefix: "idem"}
}

// WithPrefix returns a store sharing the same client under another key namespace.
func (s *Store) WithPrefix(prefix string, ttl time.Duration) *Store {
	return &Store{rdb: s.rdb, ttl: ttl, prefix: prefix}
}

func (s *Store) Key(topic string, partition int, offset int64) string {
	return fmt.Sprintf("%s:%s:%d:%d", s.prefix, topic, partition, offset)
}

// Seen reports whether key was already taken, taking it if not.
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.Claim(ctx, key)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Claim takes key and reports whether this caller got it.
func (s *Store) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, s.namespaced(key), "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return ok, nil
}

// Release gives a claimed key back, e.g. when the work it guarded failed.
func (s *Store) Release(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.namespaced(key)).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

func (s *Store) namespaced(key string) string {
	if strings.HasPrefix(key, s.prefix+":") {
		return key
	}
	return s.prefix + ":" + key
}
