package ranking

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestRedisCache_ImplementsCache(t *testing.T) {
	var _ Cache = (*RedisCache)(nil)
}

func TestRedisCache_GetSet(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set (skipping)")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("invalid TEST_REDIS_URL: %v", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	ctx := context.Background()
	cache := NewRedisCache(client, "stackforum:test:ranking:")
	key := t.Name()
	defer client.Del(ctx, "stackforum:test:ranking:"+key)

	if _, ok, err := cache.Get(ctx, key); err != nil || ok {
		t.Fatalf("Get before Set = %v, %v; want miss", ok, err)
	}
	if err := cache.Set(ctx, key, []byte(`[]`), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	data, ok, err := cache.Get(ctx, key)
	if err != nil || !ok || string(data) != "[]" {
		t.Errorf("Get after Set = %q, %v, %v", data, ok, err)
	}
}

func TestRedisCache_InvalidateBumpsVersion(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set (skipping)")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("invalid TEST_REDIS_URL: %v", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	ctx := context.Background()
	prefix := "stackforum:test:" + t.Name() + ":"
	cache := NewRedisCache(client, prefix)
	defer client.Del(ctx, prefix+versionKey)

	before, err := cache.Version(ctx)
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}
	if err := cache.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	after, err := cache.Version(ctx)
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}
	if after != before+1 {
		t.Errorf("version = %d after %d, want +1", after, before)
	}
}
