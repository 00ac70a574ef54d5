package cache

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildpulse/guildpulse/pkg/observability"
)

type payload struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	return New(client, logger, "guildpulse", 16, time.Minute), mr
}

func TestCache_SetGetRoundtrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "dashboard:g1", payload{Name: "g1", Count: 42})

	var got payload
	require.True(t, c.Get(ctx, "dashboard:g1", &got))
	assert.Equal(t, payload{Name: "g1", Count: 42}, got)
}

func TestCache_Miss(t *testing.T) {
	c, _ := newTestCache(t)

	var got payload
	assert.False(t, c.Get(context.Background(), "missing", &got))
}

func TestCache_RedisHitPromotesToLocal(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "k", payload{Count: 7})
	// Simulate a fresh replica with a cold local tier
	c.local.Purge()

	var got payload
	require.True(t, c.Get(ctx, "k", &got))
	assert.EqualValues(t, 7, got.Count)

	_, ok := c.local.Get("k")
	assert.True(t, ok)
}

func TestCache_Invalidate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "k", payload{Count: 1})
	c.Invalidate(ctx, "k")

	var got payload
	assert.False(t, c.Get(ctx, "k", &got))
}

func TestCache_EntriesExpireInRedis(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "k", payload{Count: 1})
	c.local.Purge()
	mr.FastForward(2 * time.Minute)

	var got payload
	assert.False(t, c.Get(ctx, "k", &got))
}

func TestCache_RedisDownDegradesToMiss(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "k", payload{Count: 1})
	c.local.Purge()
	mr.Close()

	var got payload
	assert.False(t, c.Get(ctx, "k", &got))
	// Writes must not panic either
	c.Set(ctx, "k2", payload{Count: 2})
}
