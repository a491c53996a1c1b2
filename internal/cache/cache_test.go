package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	memoryStorage "github.com/gofiber/storage/memory/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	u "svgserve/internal/utils"
)

func TestEncodeDecodeEnvelope(t *testing.T) {
	entry := &Entry{LastModified: 1700000000, Body: []byte("<svg/>")}

	decoded, ok := decode(encode(entry))
	assert.True(t, ok)
	assert.Equal(t, entry.LastModified, decoded.LastModified)
	assert.Equal(t, entry.Body, decoded.Body)

	// Empty body is a valid entry.
	decoded, ok = decode(encode(&Entry{LastModified: 5}))
	assert.True(t, ok)
	assert.Equal(t, int64(5), decoded.LastModified)
	assert.Empty(t, decoded.Body)

	// Truncated values are treated as misses.
	_, ok = decode([]byte("short"))
	assert.False(t, ok)
	_, ok = decode(nil)
	assert.False(t, ok)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedis(rdb, time.Minute)
	ctx := context.Background()

	assert.False(t, store.Exists(ctx, "k"))
	_, ok := store.Load(ctx, "k")
	assert.False(t, ok)

	store.Save(ctx, "k", &Entry{LastModified: 42, Body: []byte("<svg/>")})

	assert.True(t, store.Exists(ctx, "k"))
	entry, ok := store.Load(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, int64(42), entry.LastModified)
	assert.Equal(t, []byte("<svg/>"), entry.Body)
}

func TestRedisStoreUnavailableDegradesToMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedis(rdb, time.Minute)
	ctx := context.Background()

	mr.Close()

	assert.False(t, store.Exists(ctx, "k"))
	_, ok := store.Load(ctx, "k")
	assert.False(t, ok)
	// Save must be a silent no-op, not a panic or error.
	store.Save(ctx, "k", &Entry{Body: []byte("x")})
}

func TestStorageStoreRoundTrip(t *testing.T) {
	store := NewStorage(memoryStorage.New(), time.Minute)
	ctx := context.Background()

	_, ok := store.Load(ctx, "k")
	assert.False(t, ok)

	store.Save(ctx, "k", &Entry{LastModified: 7, Body: []byte("body")})

	assert.True(t, store.Exists(ctx, "k"))
	entry, ok := store.Load(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, int64(7), entry.LastModified)
	assert.Equal(t, []byte("body"), entry.Body)
}

func TestNoopStore(t *testing.T) {
	store := Noop{}
	ctx := context.Background()

	store.Save(ctx, "k", &Entry{Body: []byte("x")})
	assert.False(t, store.Exists(ctx, "k"))
	_, ok := store.Load(ctx, "k")
	assert.False(t, ok)
}

func TestNewPicksBackend(t *testing.T) {
	var cfg u.Config
	cfg.Cache.SVGCacheEnabled = false
	assert.IsType(t, Noop{}, New(cfg, nil))

	cfg.Cache.SVGCacheEnabled = true
	cfg.Cache.SVGCacheTTL = u.Duration(time.Minute)
	assert.IsType(t, &storageStore{}, New(cfg, nil))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	assert.IsType(t, &redisStore{}, New(cfg, rdb))
}
