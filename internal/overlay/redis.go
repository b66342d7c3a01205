package overlay

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisPrefix namespaces overlay hashes.
const DefaultRedisPrefix = "quotewatch:overlay"

const scanCount = 100

// RedisBackend stores each record as one hash, <prefix>:<key>, with one hash
// field per overlay field. HSET makes single-field upserts atomic, so several
// processes can share the store.
type RedisBackend struct {
	rdb    redis.Cmdable
	prefix string
}

// NewRedisBackend returns a backend over rdb. An empty prefix uses
// DefaultRedisPrefix.
func NewRedisBackend(rdb redis.Cmdable, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisBackend{rdb: rdb, prefix: prefix}
}

func (b *RedisBackend) Name() string { return "redis" }

func (b *RedisBackend) hashKey(k Key) string {
	return b.prefix + ":" + url.PathEscape(k.String())
}

func (b *RedisBackend) Load(ctx context.Context, key Key) (Fields, error) {
	m, err := b.rdb.HGetAll(ctx, b.hashKey(key)).Result()
	if err != nil {
		return nil, err
	}
	out := make(Fields, len(m))
	for name, raw := range m {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("field %s of %s: %w", name, key, err)
		}
		out[name] = v
	}
	return out, nil
}

func (b *RedisBackend) SetField(ctx context.Context, key Key, name string, value float64) error {
	return b.rdb.HSet(ctx, b.hashKey(key), name, value).Err()
}

func (b *RedisBackend) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := b.rdb.Scan(ctx, cursor, b.prefix+":*", scanCount).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := b.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}
