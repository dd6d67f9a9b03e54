package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"policy-qa-service/internal/rag"
	"policy-qa-service/utils"

	"github.com/andybalholm/brotli"
	"github.com/redis/go-redis/v9"
)

const indexKeyPrefix = "rag:index:"

// RedisIndexCache shares built indexes between service instances. Entries
// are brotli-compressed JSON snapshots that expire after ttl.
type RedisIndexCache struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

var _ rag.IndexCache = (*RedisIndexCache)(nil)

func NewRedisIndexCache(rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger) *RedisIndexCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisIndexCache{rdb: rdb, ttl: ttl, logger: logger}
}

// Get reports a miss on any Redis or decoding failure.
func (c *RedisIndexCache) Get(ctx context.Context, key rag.CacheKey) (*rag.VectorIndex, bool) {
	ctx, cancel := utils.WithShortTimeout(ctx)
	defer cancel()

	raw, err := c.rdb.Get(ctx, indexKeyPrefix+key.String()).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("index cache read failed", "error", err)
		}
		return nil, false
	}

	index, err := decodeSnapshot(raw)
	if err != nil {
		c.logger.Warn("index cache entry unreadable", "key", key.ContentHash, "error", err)
		return nil, false
	}
	return index, true
}

func (c *RedisIndexCache) Put(ctx context.Context, key rag.CacheKey, index *rag.VectorIndex) error {
	raw, err := encodeSnapshot(index.Snapshot())
	if err != nil {
		return err
	}

	ctx, cancel := utils.WithShortTimeout(ctx)
	defer cancel()
	if err := c.rdb.Set(ctx, indexKeyPrefix+key.String(), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("store index: %w", err)
	}
	return nil
}

func encodeSnapshot(s rag.IndexSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	if err := json.NewEncoder(w).Encode(s); err != nil {
		return nil, fmt.Errorf("encode index: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress index: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeSnapshot(raw []byte) (*rag.VectorIndex, error) {
	data, err := io.ReadAll(brotli.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return nil, fmt.Errorf("decompress index: %w", err)
	}
	var s rag.IndexSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	return rag.RestoreIndex(s)
}
