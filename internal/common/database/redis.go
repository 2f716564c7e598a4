package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"baws-workers/internal/common/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisClient wraps the Redis client
type RedisClient struct {
	Client redis.Cmdable
	closer func() error
}

// NewRedis creates a new Redis client
func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	return &RedisClient{Client: rdb, closer: rdb.Close}, nil
}

// NewRedisFromClient wraps an existing client, e.g. one pointed at miniredis
// or a redismock client.
func NewRedisFromClient(c redis.Cmdable) *RedisClient {
	return &RedisClient{Client: c}
}

// Ping tests the Redis connection
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisClient) Close() error {
	if c.closer != nil {
		return c.closer()
	}
	return nil
}

// ErrLockHeld is returned by AcquireLock when another owner holds the key.
var ErrLockHeld = errors.New("lock held by another owner")

// Lock is an acquired run lock. Release only deletes the key while it still
// carries this owner's token.
type Lock struct {
	Key   string
	token string
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// AcquireLock sets key with SETNX semantics and a TTL.
func (c *RedisClient) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	token := uuid.NewString()
	ok, err := c.Client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lock{Key: key, token: token}, nil
}

// ReleaseLock reports whether the key was still owned and got deleted.
func (c *RedisClient) ReleaseLock(ctx context.Context, l *Lock) (bool, error) {
	n, err := releaseScript.Run(ctx, c.Client, []string{l.Key}, l.token).Int()
	if err != nil {
		return false, fmt.Errorf("release lock %s: %w", l.Key, err)
	}
	return n == 1, nil
}

// AnalysisLockKey scopes a run lock to a (document, conversation) pair.
// conversationID 0 means no conversation.
func AnalysisLockKey(documentID, conversationID int64) string {
	return fmt.Sprintf("analysis:lock:%d:%d", documentID, conversationID)
}
