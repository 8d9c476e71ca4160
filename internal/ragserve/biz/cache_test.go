package biz

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ragserve/internal/model"
)

// 辅助函数：创建测试用 Redis 客户端
func setupTestRedis(t *testing.T) *goredis.Client {
	client := goredis.NewClient(&goredis.Options{
		Addr: "localhost:6379",
		DB:   15, // 使用测试专用数据库
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis 不可用，跳过测试")
	}

	client.FlushDB(ctx)
	return client
}

func testCacheConfig() *AnswerCacheConfig {
	return &AnswerCacheConfig{
		Enabled:   true,
		TTL:       1 * time.Hour,
		KeyPrefix: "test:answer:",
	}
}

func TestNewAnswerCacheWithNilConfig(t *testing.T) {
	cache := NewAnswerCache(nil, nil)
	require.NotNil(t, cache)
	assert.False(t, cache.config.Enabled)
	assert.Equal(t, 1*time.Hour, cache.config.TTL)
	assert.Equal(t, "ragserve:answer:", cache.config.KeyPrefix)
}

func TestAnswerCacheKey(t *testing.T) {
	cache := NewAnswerCache(nil, testCacheConfig())

	// 相同输入产生相同键，任一维度变化产生不同键。
	key := cache.cacheKey("doc1", "question", 5)
	assert.Equal(t, key, cache.cacheKey("doc1", "question", 5))
	assert.NotEqual(t, key, cache.cacheKey("doc2", "question", 5))
	assert.NotEqual(t, key, cache.cacheKey("doc1", "other", 5))
	assert.NotEqual(t, key, cache.cacheKey("doc1", "question", 3))
}

func TestAnswerCacheSetAndGet(t *testing.T) {
	client := setupTestRedis(t)
	defer func() { _ = client.Close() }()

	cache := NewAnswerCache(client, testCacheConfig())
	ctx := context.Background()

	answer := &model.Answer{
		Text:       "cached answer",
		FullPrompt: "prompt",
	}
	require.NoError(t, cache.Set(ctx, "doc1", "question", 5, answer))

	got, err := cache.Get(ctx, "doc1", "question", 5)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "cached answer", got.Text)
	assert.Equal(t, "prompt", got.FullPrompt)
}

func TestAnswerCacheMiss(t *testing.T) {
	client := setupTestRedis(t)
	defer func() { _ = client.Close() }()

	cache := NewAnswerCache(client, testCacheConfig())

	got, err := cache.Get(context.Background(), "doc1", "never asked", 5)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAnswerCacheClearAndStats(t *testing.T) {
	client := setupTestRedis(t)
	defer func() { _ = client.Close() }()

	cache := NewAnswerCache(client, testCacheConfig())
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "doc1", "q1", 5, &model.Answer{Text: "a1"}))
	require.NoError(t, cache.Set(ctx, "doc1", "q2", 5, &model.Answer{Text: "a2"}))

	stats, err := cache.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats["key_count"])

	require.NoError(t, cache.Clear(ctx))

	stats, err = cache.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats["key_count"])
}
