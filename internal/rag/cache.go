package rag

import (
	"context"
	"fmt"
	"sync"

	"policy-qa-service/utils"

	"github.com/golang/groupcache/lru"
)

// CacheKey addresses a built index by document content and the settings that
// shaped it, so a changed model or chunk size never reuses stale vectors.
type CacheKey struct {
	ContentHash    string
	Model          string
	MaxChunkLength int
	OverlapLength  int
}

// NewCacheKey hashes the document bytes into a key.
func NewCacheKey(data []byte, model string, maxChunkLength, overlap int) CacheKey {
	return CacheKey{
		ContentHash:    utils.ContentHash(data),
		Model:          model,
		MaxChunkLength: maxChunkLength,
		OverlapLength:  overlap,
	}
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%s:%s:%d:%d", k.ContentHash, k.Model, k.MaxChunkLength, k.OverlapLength)
}

// IndexCache stores built indexes across requests. Implementations must be
// safe for concurrent use. Get reports a miss on any backend failure.
type IndexCache interface {
	Get(ctx context.Context, key CacheKey) (*VectorIndex, bool)
	Put(ctx context.Context, key CacheKey, index *VectorIndex) error
}

// MemoryIndexCache is a size-bounded LRU of indexes held in process.
type MemoryIndexCache struct {
	mu    sync.Mutex
	cache *lru.Cache
}

// NewMemoryIndexCache keeps at most maxEntries indexes (minimum 1).
func NewMemoryIndexCache(maxEntries int) *MemoryIndexCache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &MemoryIndexCache{cache: lru.New(maxEntries)}
}

func (m *MemoryIndexCache) Get(_ context.Context, key CacheKey) (*VectorIndex, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.cache.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*VectorIndex), true
}

func (m *MemoryIndexCache) Put(_ context.Context, key CacheKey, index *VectorIndex) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Add(key, index)
	return nil
}

// Len returns the number of cached indexes.
func (m *MemoryIndexCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Len()
}
