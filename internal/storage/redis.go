package storage

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix namespaces connection keys in a shared Redis
const DefaultRedisKeyPrefix = "fairy:conn:"

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisConnectionStore keeps connections in Redis as plain string keys
type RedisConnectionStore struct {
	client *redis.Client
	prefix string
}

// NewRedisConnectionStore creates a Redis-backed store
func NewRedisConnectionStore(config RedisConfig) *RedisConnectionStore {
	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisConnectionStore{
		client: redis.NewClient(&redis.Options{
			Addr:     config.Addr,
			Password: config.Password,
			DB:       config.DB,
		}),
		prefix: prefix,
	}
}

func (s *RedisConnectionStore) Initialize(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "failed to connect to redis")
	}
	return nil
}

func (s *RedisConnectionStore) Close() error {
	return s.client.Close()
}

func (s *RedisConnectionStore) LookupMirror(ctx context.Context, originTS string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.prefix+originTS).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "failed to lookup connection")
	}
	return v, true, nil
}

func (s *RedisConnectionStore) CreateConnection(ctx context.Context, originTS, mirrorTS string) error {
	if err := s.client.Set(ctx, s.prefix+originTS, mirrorTS, 0).Err(); err != nil {
		return errors.Wrap(err, "failed to store connection")
	}
	return nil
}

func (s *RedisConnectionStore) DeleteConnection(ctx context.Context, originTS string) error {
	if err := s.client.Del(ctx, s.prefix+originTS).Err(); err != nil {
		return errors.Wrap(err, "failed to delete connection")
	}
	return nil
}

func (s *RedisConnectionStore) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "redis ping failed")
	}
	return nil
}
