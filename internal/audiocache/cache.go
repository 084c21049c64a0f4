// Package audiocache maps deterministic keys to cached announcement audio.
// Artifacts live in object storage; a redis index avoids storage round-trips
// on the hot path and holds the warm-up marker.
package audiocache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ruteravelar/filavoz/internal/storage"
)

// ErrMiss is returned when no artifact is cached for a key.
var ErrMiss = errors.New("audio not cached")

const (
	indexPrefix  = "filavoz:audio:"
	warmedMarker = "filavoz:precache:done"
	indexTTL     = 30 * 24 * time.Hour
)

type Cache struct {
	store     storage.Storage
	rdb       *redis.Client
	bucket    string
	namespace string
}

func New(store storage.Storage, rdb *redis.Client, bucket, namespace string) *Cache {
	return &Cache{store: store, rdb: rdb, bucket: bucket, namespace: namespace}
}

// ArtifactPath returns the storage path for a cache key.
func (c *Cache) ArtifactPath(key string) string {
	return fmt.Sprintf("%s/%s.mp3", c.namespace, key)
}

// ArtifactURL returns the public playback URL for a cache key.
func (c *Cache) ArtifactURL(key string) string {
	return c.store.PublicURL(c.bucket, c.ArtifactPath(key))
}

// Get fetches the cached artifact for key, or ErrMiss. The redis index is
// consulted first; on index miss the object store is probed directly so a
// flushed index never forces re-synthesis.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	indexed, err := c.rdb.Exists(ctx, indexPrefix+key).Result()
	if err == nil && indexed == 0 {
		exists, err := c.store.Exists(ctx, c.bucket, c.ArtifactPath(key))
		if err != nil {
			return nil, fmt.Errorf("probe artifact %s: %w", key, err)
		}
		if !exists {
			return nil, ErrMiss
		}
	}

	rc, err := c.store.Download(ctx, c.bucket, c.ArtifactPath(key))
	if err != nil {
		return nil, ErrMiss
	}
	defer rc.Close()

	audio, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", key, err)
	}

	c.rdb.Set(ctx, indexPrefix+key, 1, indexTTL)
	return audio, nil
}

// Put writes an artifact. Entries are immutable once written; callers only
// overwrite via an explicit forced re-cache (Invalidate first).
func (c *Cache) Put(ctx context.Context, key string, audio []byte) error {
	err := c.store.Upload(ctx, c.bucket, c.ArtifactPath(key), bytes.NewReader(audio), "audio/mpeg")
	if err != nil {
		return fmt.Errorf("cache artifact %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, indexPrefix+key, 1, indexTTL).Err(); err != nil {
		return fmt.Errorf("index artifact %s: %w", key, err)
	}
	return nil
}

// Invalidate drops a key from the index and storage.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	c.rdb.Del(ctx, indexPrefix+key)
	return c.store.Delete(ctx, c.bucket, c.ArtifactPath(key))
}

// Warmed reports whether a previous warm-up run completed successfully.
func (c *Cache) Warmed(ctx context.Context) (bool, error) {
	n, err := c.rdb.Exists(ctx, warmedMarker).Result()
	if err != nil {
		return false, fmt.Errorf("check warmed marker: %w", err)
	}
	return n > 0, nil
}

// SetWarmed records a successful warm-up run.
func (c *Cache) SetWarmed(ctx context.Context) error {
	return c.rdb.Set(ctx, warmedMarker, time.Now().Format(time.RFC3339), 0).Err()
}

// ClearWarmed removes the marker so the next warm-up runs in full.
func (c *Cache) ClearWarmed(ctx context.Context) error {
	return c.rdb.Del(ctx, warmedMarker).Err()
}
