package ranking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/stackforum/internal/model"
)

// Cache はエンコード済みのランキングを保存する。ミスは (nil, false, nil)。
//
// エントリはクエリ実行前に読んだバージョンの下に書き込む。
// Invalidate はすべての読み手を新しいバージョンへ移すため、
// 書き込み前に計算したランキングが書き込み後に返ることはない。
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Version(ctx context.Context) (int64, error)
	Invalidate(ctx context.Context) error
}

// RedisCache はRedisをバックエンドとする Cache。
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache はキーが prefix で始まる RedisCache を生成する。
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

// Get はキャッシュされた値を返す。
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return data, true, nil
}

// Set は value を ttl 付きで保存する。
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Version は現在のエントリのバージョンを返す。最初の Invalidate までは0。
func (c *RedisCache) Version(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, c.prefix+versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get version: %w", err)
	}
	return v, nil
}

// Invalidate はバージョンを進める。古いエントリはTTLで失効する。
func (c *RedisCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, c.prefix+versionKey).Err(); err != nil {
		return fmt.Errorf("redis incr version: %w", err)
	}
	return nil
}

const versionKey = "version"

// windowKey は期間の正確な境界でキャッシュ上の名前を決める。
func windowKey(w *model.DateWindow) string {
	if w == nil {
		return "all"
	}
	return w.Start.UTC().Format(time.RFC3339Nano) + "_" + w.End.UTC().Format(time.RFC3339Nano)
}

func entryKey(version int64, window string) string {
	return "v" + strconv.FormatInt(version, 10) + ":" + window
}
