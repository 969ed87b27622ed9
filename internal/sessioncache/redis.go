package sessioncache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	redisdb *redis.Client
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisStore(cfg RedisConfig) *RedisStore {
	redisdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return &RedisStore{redisdb: redisdb}
}

// Ping checks redis connectivity at startup.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redisdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.redisdb.Close()
}

func (s *RedisStore) SaveSession(ctx context.Context, pair TokenPair) error {
	raw, err := json.Marshal(pair)

	if err != nil {
		return err
	}

	// Keep the mirror around slightly past token expiry so the refresh
	// token can still be picked up at next boot.
	ttl := time.Until(pair.ExpiresAt) + 24*time.Hour

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return s.redisdb.Set(ctx, KeySession, raw, ttl).Err()
}

func (s *RedisStore) LoadSession(ctx context.Context) (TokenPair, error) {
	raw, err := s.redisdb.Get(ctx, KeySession).Bytes()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return TokenPair{}, ErrNotFound
		}
		return TokenPair{}, err
	}

	var pair TokenPair

	if err := json.Unmarshal(raw, &pair); err != nil {
		return TokenPair{}, err
	}

	return pair, nil
}

func (s *RedisStore) ClearSession(ctx context.Context) error {
	return s.redisdb.Del(ctx, KeySession).Err()
}

func (s *RedisStore) SaveFallbackAdmin(ctx context.Context, rec FallbackAdmin) error {
	raw, err := json.Marshal(rec)

	if err != nil {
		return err
	}

	// no TTL: the record survives until sign-out or re-provisioning
	return s.redisdb.Set(ctx, KeyFallbackAdmin, raw, 0).Err()
}

func (s *RedisStore) LoadFallbackAdmin(ctx context.Context) (FallbackAdmin, error) {
	raw, err := s.redisdb.Get(ctx, KeyFallbackAdmin).Bytes()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return FallbackAdmin{}, ErrNotFound
		}
		return FallbackAdmin{}, err
	}

	var rec FallbackAdmin

	if err := json.Unmarshal(raw, &rec); err != nil {
		return FallbackAdmin{}, err
	}

	return rec, nil
}

func (s *RedisStore) ClearFallbackAdmin(ctx context.Context) error {
	return s.redisdb.Del(ctx, KeyFallbackAdmin).Err()
}

var _ Store = (*RedisStore)(nil)
