package chromem

import (
	"context"
	"testing"
)

func TestCandidatesRanksByProximity(t *testing.T) {
	x, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	entries := map[string][]float32{
		"east":  {1, 0},
		"north": {0, 1},
		"mixed": {0.7071, 0.7071},
	}
	for key, vec := range entries {
		if err := x.Add(ctx, key, vec); err != nil {
			t.Fatalf("Add %s: %v", key, err)
		}
	}

	keys, err := x.Candidates(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(keys))
	}
	if keys[0] != "east" {
		t.Errorf("expected east first, got %q", keys[0])
	}
	if keys[1] != "mixed" {
		t.Errorf("expected mixed second, got %q", keys[1])
	}
}

func TestCandidatesEmptyIndex(t *testing.T) {
	x, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	keys, err := x.Candidates(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Candidates on empty index: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("expected no candidates, got %v", keys)
	}
}

func TestCandidatesLimitClamped(t *testing.T) {
	x, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if err := x.Add(ctx, "only", []float32{0, 1}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	keys, err := x.Candidates(ctx, []float32{0, 1}, 10)
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(keys) != 1 || keys[0] != "only" {
		t.Fatalf("unexpected candidates: %v", keys)
	}
}

func TestRemoveAndClear(t *testing.T) {
	x, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	for key, vec := range map[string][]float32{"a": {1, 0}, "b": {0, 1}} {
		if err := x.Add(ctx, key, vec); err != nil {
			t.Fatalf("Add %s: %v", key, err)
		}
	}

	if err := x.Remove(ctx, "a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	keys, err := x.Candidates(ctx, []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	for _, k := range keys {
		if k == "a" {
			t.Fatal("removed key still indexed")
		}
	}

	// Removing a missing key must not fail.
	if err := x.Remove(ctx, "never-there"); err != nil {
		t.Fatalf("Remove missing: %v", err)
	}

	if err := x.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	keys, err = x.Candidates(ctx, []float32{0, 1}, 5)
	if err != nil {
		t.Fatalf("Candidates after clear: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("expected empty index after clear, got %v", keys)
	}
}

func TestAddRejectsEmptyEmbedding(t *testing.T) {
	x, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := x.Add(context.Background(), "bad", nil); err == nil {
		t.Fatal("expected error for empty embedding")
	}
}
