// Package embedder provides the plumbing shared by embedding backends:
// a load-once gate for backends with an expensive model load, a batch
// pipeline with bounded concurrency and per-item failure isolation, and
// a cache wrapper.
//
// Backend implementations live in subpackages (openai, onnx, mock).
package embedder

import (
	"context"
	"errors"
	"sync"
)

// ErrModelNotLoaded indicates an embedding was requested before the
// backend's one-time load step completed.
var ErrModelNotLoaded = errors.New("embedding model not loaded")

// Embedder converts text to a fixed-dimension vector. This mirrors
// memory.Embedder so backends satisfy both without importing memory.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// BatchEmbedder is optionally implemented by backends with a native
// multi-text endpoint. Batch uses it when available.
type BatchEmbedder interface {
	// EmbedBatch returns one vector per input text, aligned by index.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Gate guards a backend's one-time load. Do is idempotent and
// concurrency-safe: concurrent callers share a single in-flight load
// instead of triggering redundant ones, and a failed load may be
// retried by a later caller.
type Gate struct {
	mu       sync.Mutex
	loaded   bool
	err      error
	inflight chan struct{}
}

// Do runs load unless a previous call already succeeded. When another
// goroutine's load is in flight, Do waits for it and returns its result.
func (g *Gate) Do(ctx context.Context, load func(context.Context) error) error {
	g.mu.Lock()
	if g.loaded {
		g.mu.Unlock()
		return nil
	}

	if ch := g.inflight; ch != nil {
		g.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.loaded {
			return nil
		}
		return g.err
	}

	ch := make(chan struct{})
	g.inflight = ch
	g.mu.Unlock()

	err := load(ctx)

	g.mu.Lock()
	g.loaded = err == nil
	g.err = err
	g.inflight = nil
	g.mu.Unlock()
	close(ch)

	return err
}

// Ready reports whether a load has completed successfully.
func (g *Gate) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loaded
}
