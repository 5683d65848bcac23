package embedder

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// DefaultCacheEntries bounds the embedding cache. Embeddings for this
// system's scale fit comfortably; the bound guards pathological hosts.
const DefaultCacheEntries = 16384

// Cached wraps an Embedder with a ristretto cache keyed by input text.
// The cache is an explicit object owned by whoever constructs it, not a
// package-level global, so two providers never share or clobber state.
type Cached struct {
	inner Embedder
	cache *ristretto.Cache
}

// NewCached creates a caching wrapper around inner holding up to
// maxEntries embeddings (DefaultCacheEntries when <= 0).
func NewCached(inner Embedder, maxEntries int64) (*Cached, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	return &Cached{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text, embedding and caching on miss.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v.([]float32), nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.Set(text, vec, 1)
	return vec, nil
}

// EmbedBatch serves cached items and forwards only the misses to the
// inner backend's batch endpoint when it has one.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var misses []string

	for i, text := range texts {
		if v, ok := c.cache.Get(text); ok {
			out[i] = v.([]float32)
			continue
		}
		missIdx = append(missIdx, i)
		misses = append(misses, text)
	}

	if len(misses) == 0 {
		return out, nil
	}

	var vecs [][]float32
	if be, ok := c.inner.(BatchEmbedder); ok {
		var err error
		vecs, err = be.EmbedBatch(ctx, misses)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(misses) {
			return nil, fmt.Errorf("cached embedder: expected %d vectors, got %d", len(misses), len(vecs))
		}
	} else {
		vecs = make([][]float32, len(misses))
		for i, text := range misses {
			vec, err := c.inner.Embed(ctx, text)
			if err != nil {
				return nil, err
			}
			vecs[i] = vec
		}
	}

	for i, idx := range missIdx {
		out[idx] = vecs[i]
		c.cache.Set(texts[idx], vecs[i], 1)
	}
	return out, nil
}

// Dimensions returns the inner backend's vector size.
func (c *Cached) Dimensions() int {
	return c.inner.Dimensions()
}

// Close releases the cache.
func (c *Cached) Close() {
	c.cache.Close()
}
