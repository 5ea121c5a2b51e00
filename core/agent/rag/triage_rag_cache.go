package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"triage_server/core/port/out"
)

// =============================================================================
// Embedding Cache
// =============================================================================

// EmbeddingCache caches embeddings by content fingerprint to avoid redundant
// API calls. The mapping is unbounded and cleared on demand; concurrent reads
// are safe and colliding writers follow writer-wins.
type EmbeddingCache struct {
	cache map[string][]float32
	mu    sync.RWMutex

	// Metrics
	hits   int64
	misses int64
}

// NewEmbeddingCache creates an empty embedding cache.
func NewEmbeddingCache() *EmbeddingCache {
	return &EmbeddingCache{
		cache: make(map[string][]float32),
	}
}

// Get retrieves an embedding by content fingerprint.
func (c *EmbeddingCache) Get(text string) ([]float32, bool) {
	key := fingerprint(text)

	c.mu.RLock()
	embedding, ok := c.cache[key]
	c.mu.RUnlock()

	c.mu.Lock()
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()

	return embedding, ok
}

// Set stores an embedding. On collision the latest writer wins.
func (c *EmbeddingCache) Set(text string, embedding []float32) {
	key := fingerprint(text)

	c.mu.Lock()
	c.cache[key] = embedding
	c.mu.Unlock()
}

// Clear drops every cached embedding.
func (c *EmbeddingCache) Clear() {
	c.mu.Lock()
	c.cache = make(map[string][]float32)
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *EmbeddingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Stats returns cache hit statistics.
func (c *EmbeddingCache) Stats() (hits, misses int64, hitRate float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hits = c.hits
	misses = c.misses
	total := hits + misses
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return
}

func fingerprint(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:16])
}

// =============================================================================
// Cached Embedder
// =============================================================================

// CachedEmbedder wraps an embedding oracle with the fingerprint cache.
type CachedEmbedder struct {
	oracle out.EmbeddingOracle
	cache  *EmbeddingCache
}

// NewCachedEmbedder creates a caching embedder.
func NewCachedEmbedder(oracle out.EmbeddingOracle, cache *EmbeddingCache) *CachedEmbedder {
	if cache == nil {
		cache = NewEmbeddingCache()
	}
	return &CachedEmbedder{oracle: oracle, cache: cache}
}

// Embed returns an embedding, consulting the cache first.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if embedding, ok := e.cache.Get(text); ok {
		return embedding, nil
	}

	embedding, err := e.oracle.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	e.cache.Set(text, embedding)
	return embedding, nil
}

// EmbedBatch embeds texts, reusing cached entries and filling misses in one
// oracle call.
func (e *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		if embedding, ok := e.cache.Get(text); ok {
			result[i] = embedding
		} else {
			missing = append(missing, text)
			missingIdx = append(missingIdx, i)
		}
	}

	if len(missing) == 0 {
		return result, nil
	}

	embeddings, err := e.oracle.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}

	for i, embedding := range embeddings {
		idx := missingIdx[i]
		result[idx] = embedding
		e.cache.Set(texts[idx], embedding)
	}

	return result, nil
}
