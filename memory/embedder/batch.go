package embedder

import (
	"context"
	"log"
	"sync"
)

// Batch pipeline defaults, tuned for API-backed embedders.
const (
	DefaultBatchSize     = 8
	DefaultMaxConcurrent = 2
)

// Batch embeds texts in groups of batchSize with up to maxConcurrent
// groups in flight. The result is aligned to the input: position i holds
// the vector for texts[i], or nil when that item could not be embedded.
//
// A group that fails as a whole degrades to sequential per-item
// embedding for just that group, so one bad item never poisons its
// neighbours and the call never aborts the whole batch. Groups start in
// input order; completion order is irrelevant because results are
// written by index.
func Batch(ctx context.Context, e Embedder, texts []string, batchSize, maxConcurrent int) [][]float32 {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}

	results := make([][]float32, len(texts))
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup

	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(start, end int) {
			defer wg.Done()
			defer func() { <-sem }()
			embedGroup(ctx, e, texts[start:end], results[start:end], start)
		}(start, end)
	}

	wg.Wait()
	return results
}

// embedGroup fills out with vectors for group, falling back to
// sequential per-item embedding when the group attempt fails.
func embedGroup(ctx context.Context, e Embedder, group []string, out [][]float32, offset int) {
	if be, ok := e.(BatchEmbedder); ok {
		vecs, err := be.EmbedBatch(ctx, group)
		if err == nil && len(vecs) == len(group) {
			copy(out, vecs)
			return
		}
		if err != nil {
			log.Printf("[EMBED] Group at %d failed (%v), retrying items sequentially", offset, err)
		}
		embedSequential(ctx, e, group, out, offset)
		return
	}

	// No native batch endpoint: embed items concurrently within the
	// group, then retry failures one by one.
	var wg sync.WaitGroup
	failed := make([]bool, len(group))
	for i := range group {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			vec, err := e.Embed(ctx, group[i])
			if err != nil {
				failed[i] = true
				return
			}
			out[i] = vec
		}(i)
	}
	wg.Wait()

	for i := range group {
		if !failed[i] {
			continue
		}
		vec, err := e.Embed(ctx, group[i])
		if err != nil {
			log.Printf("[EMBED] Item %d failed after retry: %v", offset+i, err)
			out[i] = nil
			continue
		}
		out[i] = vec
	}
}

// embedSequential embeds group items one at a time, recording nil for
// items that fail.
func embedSequential(ctx context.Context, e Embedder, group []string, out [][]float32, offset int) {
	for i, text := range group {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			log.Printf("[EMBED] Item %d failed: %v", offset+i, err)
			out[i] = nil
			continue
		}
		out[i] = vec
	}
}
