package embedder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// flakyEmbedder fails for one specific input and succeeds otherwise.
type flakyEmbedder struct {
	dims     int
	failText string
}

func (f *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == f.failText {
		return nil, errors.New("backend rejected item")
	}
	vec := make([]float32, f.dims)
	for i := range vec {
		vec[i] = float32(len(text)) / float32(i+1)
	}
	return vec, nil
}

func (f *flakyEmbedder) Dimensions() int { return f.dims }

// flakyBatchEmbedder fails the whole group containing failText,
// exercising the sequential per-group fallback.
type flakyBatchEmbedder struct {
	flakyEmbedder
	batchCalls atomic.Int32
}

func (f *flakyBatchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.batchCalls.Add(1)
	for _, t := range texts {
		if t == f.failText {
			return nil, errors.New("group failed")
		}
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func TestBatch_IsolatesItemFailure(t *testing.T) {
	ctx := context.Background()
	e := &flakyEmbedder{dims: 4, failText: "three"}
	texts := []string{"one", "two", "three", "four", "five"}

	results := Batch(ctx, e, texts, 2, 1)

	if len(results) != 5 {
		t.Fatalf("got %d results, want 5", len(results))
	}
	for i, vec := range results {
		if i == 2 {
			if vec != nil {
				t.Errorf("item 3 should have a nil embedding, got %v", vec)
			}
			continue
		}
		if vec == nil {
			t.Errorf("item %d should have an embedding", i+1)
		}
	}
}

func TestBatch_OutputMatchesInputOrder(t *testing.T) {
	ctx := context.Background()
	e := &flakyEmbedder{dims: 2}

	texts := make([]string, 17)
	for i := range texts {
		texts[i] = fmt.Sprintf("text-%03d", i)
	}

	results := Batch(ctx, e, texts, 4, 3)

	for i, vec := range results {
		want, _ := e.Embed(ctx, texts[i])
		if vec[0] != want[0] {
			t.Errorf("result %d does not correspond to input %d", i, i)
		}
	}
}

func TestBatch_GroupFallbackToSequential(t *testing.T) {
	ctx := context.Background()
	e := &flakyBatchEmbedder{flakyEmbedder: flakyEmbedder{dims: 3, failText: "bad"}}
	texts := []string{"a", "b", "bad", "d"}

	results := Batch(ctx, e, texts, 4, 1)

	if results[2] != nil {
		t.Error("failing item should be nil")
	}
	for _, i := range []int{0, 1, 3} {
		if results[i] == nil {
			t.Errorf("item %d lost to a group failure that should have been isolated", i)
		}
	}
}

func TestGate_SingleInFlightLoad(t *testing.T) {
	var gate Gate
	var loads atomic.Int32

	load := func(ctx context.Context) error {
		loads.Add(1)
		time.Sleep(50 * time.Millisecond)
		return nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := gate.Do(context.Background(), load); err != nil {
				t.Errorf("Do failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := loads.Load(); n != 1 {
		t.Errorf("load ran %d times, want exactly 1", n)
	}
	if !gate.Ready() {
		t.Error("gate should report ready after a successful load")
	}
}

func TestGate_FailedLoadRetries(t *testing.T) {
	var gate Gate
	calls := 0

	failing := func(ctx context.Context) error {
		calls++
		return errors.New("model file missing")
	}

	if err := gate.Do(context.Background(), failing); err == nil {
		t.Fatal("expected load error")
	}
	if gate.Ready() {
		t.Error("gate must not report ready after a failed load")
	}

	// A later caller may retry.
	ok := func(ctx context.Context) error { calls++; return nil }
	if err := gate.Do(context.Background(), ok); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if calls != 2 || !gate.Ready() {
		t.Errorf("retry should have run the loader again (calls=%d)", calls)
	}
}

func TestCached_HitsSkipBackend(t *testing.T) {
	ctx := context.Background()
	e := &countingEmbedder{dims: 3}

	cached, err := NewCached(e, 128)
	if err != nil {
		t.Fatalf("NewCached failed: %v", err)
	}
	defer cached.Close()

	first, err := cached.Embed(ctx, "hello world")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	// ristretto admits asynchronously; give the set a moment.
	time.Sleep(20 * time.Millisecond)

	second, err := cached.Embed(ctx, "hello world")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if first[0] != second[0] {
		t.Error("cached vector differs from original")
	}
	if n := e.calls.Load(); n > 2 {
		t.Errorf("backend called %d times for one repeated text", n)
	}
	if cached.Dimensions() != 3 {
		t.Errorf("Dimensions = %d, want 3", cached.Dimensions())
	}
}

type countingEmbedder struct {
	dims  int
	calls atomic.Int32
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	vec := make([]float32, c.dims)
	for i := range vec {
		vec[i] = float32(len(text))
	}
	return vec, nil
}

func (c *countingEmbedder) Dimensions() int { return c.dims }
