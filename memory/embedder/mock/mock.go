// Package mock provides a deterministic hash-based pseudo-embedder.
//
// It stands in for a real embedding model in tests and offline use: the
// vectors carry no semantic meaning, but identical text always maps to
// the identical unit vector, so dedup and plumbing behave realistically.
// Selecting it over a real backend is a construction-time decision; the
// two share the same Embedder contract.
package mock

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/engramlabs/engram-go/vector"
)

// DefaultDimensions matches the all-MiniLM-L6-v2 vector size used by
// the real local backend.
const DefaultDimensions = 384

// Embedder generates deterministic embeddings from a text hash.
type Embedder struct {
	dimensions int
}

// New creates a mock embedder with DefaultDimensions.
func New() *Embedder {
	return NewWithDimensions(DefaultDimensions)
}

// NewWithDimensions creates a mock embedder producing vectors of the
// given size.
func NewWithDimensions(dims int) *Embedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &Embedder{dimensions: dims}
}

// Embed creates a deterministic unit vector from the text's FNV hash.
func (m *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))

	// LCG seeded by the hash gives a stable pseudo-random vector.
	seed := h.Sum64()
	embedding := make([]float32, m.dimensions)
	for i := 0; i < m.dimensions; i++ {
		seed = seed*6364136223846793005 + 1442695040888963407
		embedding[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	return vector.Normalize(embedding), nil
}

// Dimensions returns the embedding size.
func (m *Embedder) Dimensions() int {
	return m.dimensions
}
