package scrap

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/parlance/pkg/perrors"
)

// redisKeyPrefix namespaces archive keys in a shared Redis instance.
const redisKeyPrefix = "parlance:scrap:"

// RedisStore keeps archives in Redis, for deployments where several editor
// seats share one recycle bin.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis using a URL (redis://host:port/db) and
// verifies the connection with a ping.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(key string) string {
	return redisKeyPrefix + key
}

// Load reads the archive for key. A missing key yields nil entries.
func (s *RedisStore) Load(ctx context.Context, key string) ([]Entry, error) {
	if err := perrors.ValidateFileKey(key); err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeStorage, err, "read scrap archive %s", key)
	}

	var a archive
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeDecode, err, "parse scrap archive %s", key)
	}
	if a.Version > FormatVersion {
		return nil, perrors.New(perrors.ErrCodeDecode, "scrap archive %s has unsupported version %d", key, a.Version)
	}
	return a.Entries, nil
}

// Save writes the archive for key, removing the key when entries is empty.
func (s *RedisStore) Save(ctx context.Context, key string, entries []Entry) error {
	if err := perrors.ValidateFileKey(key); err != nil {
		return err
	}
	if len(entries) == 0 {
		return s.Delete(ctx, key)
	}
	data, err := json.Marshal(archive{Version: FormatVersion, Entries: entries})
	if err != nil {
		return perrors.Wrap(perrors.ErrCodeStorage, err, "marshal scrap archive %s", key)
	}
	if err := s.client.Set(ctx, redisKey(key), data, 0).Err(); err != nil {
		return perrors.Wrap(perrors.ErrCodeStorage, err, "write scrap archive %s", key)
	}
	return nil
}

// Delete removes the archive for key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := perrors.ValidateFileKey(key); err != nil {
		return err
	}
	if err := s.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return perrors.Wrap(perrors.ErrCodeStorage, err, "remove scrap archive %s", key)
	}
	return nil
}

// Keys lists file keys with stored archives.
func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	raw, err := s.client.Keys(ctx, redisKeyPrefix+"*").Result()
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeStorage, err, "list scrap archives")
	}
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		keys = append(keys, strings.TrimPrefix(k, redisKeyPrefix))
	}
	return keys, nil
}

// Ping verifies the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
