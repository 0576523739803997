package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chatterbox/pkg/interfaces"
)

// RedisOptions configures RedisStore
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore keeps sessions in Redis so they survive a server restart.
// Keys are "<prefix><token>" with no TTL; an index set "<prefix>index" backs
// Count.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

var _ interfaces.SessionStore = (*RedisStore)(nil)

// NewRedisStore connects and pings the server before returning
func NewRedisStore(ctx context.Context, opts RedisOptions, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", opts.Addr, err)
	}

	return newRedisStoreWithClient(client, opts.KeyPrefix, logger), nil
}

func newRedisStoreWithClient(client *redis.Client, prefix string, logger *zap.Logger) *RedisStore {
	if prefix == "" {
		prefix = "chatterbox:session:"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: logger.Named("session.redis"),
	}
}

func (s *RedisStore) tokenKey(token string) string {
	return s.prefix + "token:" + token
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "index"
}

// Issue stores a new token for username
func (s *RedisStore) Issue(ctx context.Context, username string) (string, error) {
	if username == "" {
		return "", ErrInvalidUsername
	}

	token := uuid.New().String()
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.tokenKey(token), username, 0)
		pipe.SAdd(ctx, s.indexKey(), token)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	s.logger.Info("session issued", zap.String("username", username))
	return token, nil
}

// Resolve looks up the username for token
func (s *RedisStore) Resolve(ctx context.Context, token string) (string, bool, error) {
	username, err := s.client.Get(ctx, s.tokenKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to resolve session: %w", err)
	}
	return username, true, nil
}

// Count returns the number of issued tokens
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return int(n), nil
}

// Close releases the client connection pool
func (s *RedisStore) Close() error {
	if err := s.client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("failed to close redis client: %w", err)
	}
	return nil
}
