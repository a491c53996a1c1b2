// Package cache stores rendered SVG bytes together with the style's
// last-modified timestamp, so cache hits can still emit a correct
// Last-Modified header.
package cache

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/gofiber/fiber/v2"
	memoryStorage "github.com/gofiber/storage/memory/v2"
	"github.com/redis/go-redis/v9"

	u "svgserve/internal/utils"
)

// Entry is the cached value for one key.
type Entry struct {
	LastModified int64
	Body         []byte
}

// Store is the byte-cache collaborator. Implementations must be safe for
// concurrent use and must degrade to miss / no-op when the backend is
// unavailable; they never fail a request.
type Store interface {
	Exists(ctx context.Context, key string) bool
	Load(ctx context.Context, key string) (*Entry, bool)
	Save(ctx context.Context, key string, entry *Entry)
}

// New picks a store for the given configuration: redis when a client is
// supplied, an in-process store otherwise, and a no-op store when caching is
// disabled.
func New(cfg u.Config, rdb *redis.Client) Store {
	if !cfg.Cache.SVGCacheEnabled {
		return Noop{}
	}
	if rdb != nil {
		return NewRedis(rdb, cfg.Cache.SVGCacheTTL.Std())
	}
	return NewStorage(memoryStorage.New(), cfg.Cache.SVGCacheTTL.Std())
}

// encode prefixes the body with the 8-byte big-endian timestamp.
func encode(entry *Entry) []byte {
	buf := make([]byte, 8+len(entry.Body))
	binary.BigEndian.PutUint64(buf, uint64(entry.LastModified))
	copy(buf[8:], entry.Body)
	return buf
}

func decode(raw []byte) (*Entry, bool) {
	if len(raw) < 8 {
		return nil, false
	}
	return &Entry{
		LastModified: int64(binary.BigEndian.Uint64(raw)),
		Body:         raw[8:],
	}, true
}

type redisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis returns a redis-backed store with per-operation timeouts.
func NewRedis(rdb *redis.Client, ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &redisStore{rdb: rdb, ttl: ttl}
}

func (s *redisStore) Exists(ctx context.Context, key string) bool {
	opCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	n, err := s.rdb.Exists(opCtx, key).Result()
	if err != nil {
		u.Warn("Redis exists failed", "error", err)
		return false
	}
	return n > 0
}

func (s *redisStore) Load(ctx context.Context, key string) (*Entry, bool) {
	opCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	raw, err := s.rdb.Get(opCtx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		u.Warn("Redis read failed", "error", err)
		return nil, false
	}
	return decode(raw)
}

func (s *redisStore) Save(ctx context.Context, key string, entry *Entry) {
	opCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := s.rdb.Set(opCtx, key, encode(entry), s.ttl).Err(); err != nil {
		u.Warn("Redis write failed", "error", err)
	}
}

type storageStore struct {
	storage fiber.Storage
	ttl     time.Duration
}

// NewStorage adapts any fiber.Storage into a Store.
func NewStorage(storage fiber.Storage, ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &storageStore{storage: storage, ttl: ttl}
}

func (s *storageStore) Exists(ctx context.Context, key string) bool {
	_, ok := s.Load(ctx, key)
	return ok
}

func (s *storageStore) Load(_ context.Context, key string) (*Entry, bool) {
	raw, err := s.storage.Get(key)
	if err != nil {
		u.Warn("Cache storage read failed", "error", err)
		return nil, false
	}
	if raw == nil {
		return nil, false
	}
	return decode(raw)
}

func (s *storageStore) Save(_ context.Context, key string, entry *Entry) {
	if err := s.storage.Set(key, encode(entry), s.ttl); err != nil {
		u.Warn("Cache storage write failed", "error", err)
	}
}

// Noop is the always-miss store used when caching is disabled.
type Noop struct{}

func (Noop) Exists(context.Context, string) bool         { return false }
func (Noop) Load(context.Context, string) (*Entry, bool) { return nil, false }
func (Noop) Save(context.Context, string, *Entry)        {}
