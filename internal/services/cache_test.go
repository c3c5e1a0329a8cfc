package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()
	c := NewRedisCache(client, time.Minute)

	type entry struct {
		Name string `json:"name"`
	}
	key := CacheKey("profile", "ada")
	var got entry
	assert.False(t, c.Get(ctx, key, &got))

	c.Set(ctx, key, entry{Name: "Ada"})
	require.True(t, c.Get(ctx, key, &got))
	assert.Equal(t, "Ada", got.Name)
	assert.True(t, mr.Exists("cache:profile:ada"))

	mr.FastForward(2 * time.Minute)
	assert.False(t, c.Get(ctx, key, &got))

	c.Set(ctx, key, entry{Name: "Ada"})
	c.Delete(ctx, key)
	assert.False(t, c.Get(ctx, key, &got))
}

func TestRedisCache_UndecodableIsMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	require.NoError(t, mr.Set("cache:profile:bob", "{not json"))

	var dest map[string]string
	assert.False(t, NewRedisCache(client, 0).Get(context.Background(), "profile:bob", &dest))
}
