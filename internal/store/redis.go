package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/advisor/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	// Redis key prefix for sessions
	sessionKeyPrefix = "advisor:session:"
	// Default TTL for session keys (24 hours)
	defaultRedisTTL = 24 * time.Hour
)

// RedisStore implements Repository on Redis, one JSON document per session.
// Saves use WATCH/MULTI/EXEC for the version check. Keys expire after the
// configured idle TTL, refreshed on every read and write.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedis creates a Redis-backed repository.
func NewRedis(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisStore {
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{client: client, ttl: ttl, logger: logger}
}

// GetOrCreate implements Repository.
func (s *RedisStore) GetOrCreate(ctx context.Context, id string) (*domain.Session, error) {
	sess := domain.NewSession(id)
	stamp(sess, time.Now())
	sess.Version = 1
	val, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}

	created, err := s.client.SetNX(ctx, s.key(id), val, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if created {
		return sess, nil
	}

	loaded, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if loaded == nil {
		// Expired between SETNX and GET.
		return s.GetOrCreate(ctx, id)
	}
	return loaded, nil
}

// Get implements Repository. It returns nil if the session is not found
// and refreshes the TTL on every read.
func (s *RedisStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	key := s.key(id)
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}

	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		s.logger.Warn("failed to refresh session ttl", "session_id", id, "error", err)
	}
	return &sess, nil
}

// Save implements Repository.
func (s *RedisStore) Save(ctx context.Context, sess *domain.Session) error {
	key := s.key(sess.ID)
	now := time.Now()

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			if sess.Version != 0 {
				return ErrNotFound
			}
		case err != nil:
			return err
		default:
			var stored domain.Session
			if err := json.Unmarshal([]byte(val), &stored); err != nil {
				return fmt.Errorf("decode stored session: %w", err)
			}
			if stored.Version != sess.Version {
				return ErrVersionConflict
			}
			if len(sess.Messages) < len(stored.Messages) {
				return ErrMessageLogShrunk
			}
		}

		next := sess.Clone()
		stamp(next, now)
		next.Version++
		newVal, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newVal, s.ttl)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrVersionConflict
	}
	if err != nil {
		return err
	}

	stamp(sess, now)
	sess.Version++
	return nil
}

// Delete implements Repository.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

// Ping implements Repository.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements Repository.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// key constructs the Redis key for a session ID.
func (s *RedisStore) key(id string) string {
	return sessionKeyPrefix + id
}
