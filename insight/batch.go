package insight

import (
	"context"
	"sync"
	"time"
)

// BatchResult pairs one input's extraction outcome with its position in
// the original slice.
type BatchResult struct {
	Index    int
	Insights []string
	Err      error
}

// ExtractBatch extracts insights from many texts, batchSize at a time,
// with a short pause between batches. One text failing never aborts the
// rest; its result carries the error. Results are ordered by input
// index.
func (e *Extractor) ExtractBatch(ctx context.Context, texts []string, batchSize int) []BatchResult {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	results := make([]BatchResult, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				insights, err := e.Extract(ctx, texts[i])
				results[i] = BatchResult{Index: i, Insights: insights, Err: err}
			}(i)
		}
		wg.Wait()

		if end < len(texts) {
			select {
			case <-ctx.Done():
				for i := end; i < len(texts); i++ {
					results[i] = BatchResult{Index: i, Err: ctx.Err()}
				}
				return results
			case <-time.After(e.batchDelay):
			}
		}
	}
	return results
}
